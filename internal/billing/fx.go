package billing

import (
	"go.uber.org/fx"

	"github.com/everafterhq/everafter/internal/billing/repository"
	"github.com/everafterhq/everafter/internal/billing/service"
)

var Module = fx.Module("billing",
	fx.Provide(
		repository.New,
		service.New,
	),
)
