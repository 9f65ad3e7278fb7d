package locker

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/trackpilot/revsync/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("locker",
	fx.Provide(provideClient),
	fx.Provide(New),
)

// provideClient returns nil when redis is not configured; the accumulator
// degrades to atomic increments without cross-delivery serialization.
func provideClient(cfg config.Config, log *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		log.Warn("redis not configured, per-order lock disabled")
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
