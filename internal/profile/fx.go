package profile

import (
	"go.uber.org/fx"

	"github.com/everafterhq/everafter/internal/profile/repository"
)

var Module = fx.Module("profile",
	fx.Provide(repository.New),
)
