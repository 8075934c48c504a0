package identity

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/everafterhq/everafter/internal/config"
	identitydomain "github.com/everafterhq/everafter/internal/identity/domain"
	"github.com/everafterhq/everafter/internal/identity/gotrue"
)

var Module = fx.Module("identity",
	fx.Provide(newGateway),
)

func newGateway(cfg config.Config, log *zap.Logger) identitydomain.Gateway {
	return gotrue.NewClient(cfg.Identity.BaseURL, cfg.Identity.ServiceRoleKey, log)
}
