package signup

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/everafterhq/everafter/internal/config"
	"github.com/everafterhq/everafter/internal/signup/domain"
	"github.com/everafterhq/everafter/internal/signup/repository"
	"github.com/everafterhq/everafter/internal/signup/service"
)

var Module = fx.Module("signup",
	fx.Provide(
		repository.New,
		service.New,
	),
	fx.Invoke(startSweeper),
)

// startSweeper periodically clears expired, uncompleted reservations so
// abandoned checkouts release their slugs.
func startSweeper(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, repo domain.Repository) {
	interval := time.Duration(cfg.Signup.SweepIntervalMin) * time.Minute
	if interval <= 0 {
		return
	}

	log = log.Named("signup.sweeper")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						n, err := repo.DeleteExpired(ctx, time.Now().UTC())
						if err != nil {
							log.Warn("sweep failed", zap.Error(err))
							continue
						}
						if n > 0 {
							log.Info("expired reservations removed", zap.Int64("count", n))
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
