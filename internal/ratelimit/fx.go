package ratelimit

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/everafterhq/everafter/internal/config"
)

var Module = fx.Module("rate.limit",
	fx.Provide(newLimiter),
)

func newLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Limiter {
	if cfg.RateLimit.Backend != "redis" || cfg.RedisAddr == "" {
		return NewMemoryLimiter()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ctx
			return client.Close()
		},
	})

	log.Info("rate limiter using redis backend", zap.String("addr", cfg.RedisAddr))
	return NewRedisLimiter(client)
}
