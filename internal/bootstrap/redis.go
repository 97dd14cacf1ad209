package bootstrap

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/channel-analyzer/internal/config"
	"github.com/jonesrussell/channel-analyzer/internal/events"
	"github.com/jonesrussell/channel-analyzer/internal/logger"
)

// SetupEventPublisher creates the optional lifecycle event publisher.
// Returns nil when Redis is not configured or unreachable; the pipeline
// runs fine without it.
func SetupEventPublisher(cfg *config.Config, log logger.Logger) *events.Publisher {
	if cfg.Redis.Addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis not available, lifecycle events disabled",
			logger.String("addr", cfg.Redis.Addr),
			logger.Error(err))
		_ = client.Close()
		return nil
	}

	log.Info("event publisher initialized",
		logger.String("addr", cfg.Redis.Addr),
		logger.String("stream", cfg.Redis.Stream))
	return events.NewPublisher(client, cfg.Redis.Stream, log)
}
