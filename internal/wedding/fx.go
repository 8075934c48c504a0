package wedding

import (
	"go.uber.org/fx"

	"github.com/everafterhq/everafter/internal/wedding/repository"
)

var Module = fx.Module("wedding",
	fx.Provide(repository.New),
)
