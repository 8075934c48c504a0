package payment

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/everafterhq/everafter/internal/config"
	paymentdomain "github.com/everafterhq/everafter/internal/payment/domain"
	"github.com/everafterhq/everafter/internal/payment/stripe"
)

var Module = fx.Module("payment",
	fx.Provide(newGateway),
)

func newGateway(cfg config.Config, log *zap.Logger) paymentdomain.Gateway {
	return stripe.NewClient(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, log)
}
