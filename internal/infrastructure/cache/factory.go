package cache

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/config"
)

// NewIdempotencyStore picks the store for the configured queue driver. The
// asynq driver already depends on Redis, so Redis is required there. The
// in-process driver tries Redis and falls back to memory.
func NewIdempotencyStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (shared.IdempotencyStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := NewRedisIdempotencyStore(ctx, cfg.Redis)
	if err == nil {
		logger.Info("Using Redis idempotency store", zap.String("addr", cfg.Redis.Addr()))
		return store, nil
	}
	if cfg.Queue.Driver == config.QueueDriverAsynq {
		return nil, fmt.Errorf("redis required by the asynq queue driver: %w", err)
	}

	logger.Warn("Redis unavailable, using in-memory idempotency store", zap.Error(err))
	return NewInMemoryIdempotencyStore(), nil
}
