package queue

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/retailpos/backend/internal/infrastructure/config"
)

// New builds the callback queue for the configured driver
func New(cfg *config.Config, processor CallbackProcessor, logger *zap.Logger) (CallbackQueue, error) {
	sweep := SweepSettings{
		Interval: cfg.Queue.SweepInterval,
		Grace:    cfg.Queue.SweepGrace,
		Batch:    cfg.Queue.SweepBatch,
	}
	switch cfg.Queue.Driver {
	case config.QueueDriverAsynq:
		return NewAsynqCallbackQueue(AsynqConfig{
			Redis:       cfg.Redis,
			Concurrency: cfg.Queue.Concurrency,
			MaxRetry:    cfg.Queue.MaxRetries,
			Sweep:       sweep,
		}, processor, logger), nil
	case config.QueueDriverInProcess, "":
		return NewInProcessCallbackQueue(InProcessConfig{
			Concurrency: cfg.Queue.Concurrency,
			MaxRetry:    cfg.Queue.MaxRetries,
			Sweep:       sweep,
		}, processor, logger), nil
	default:
		return nil, fmt.Errorf("queue: unknown driver %q", cfg.Queue.Driver)
	}
}
