package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/retailpos/backend/internal/infrastructure/config"
)

// AsynqCallbackQueue enqueues callbacks on Redis and, when run, serves them
// with an asynq server plus a scheduler that triggers the sweep
type AsynqCallbackQueue struct {
	redisOpt    asynq.RedisClientOpt
	client      *asynq.Client
	processor   CallbackProcessor
	concurrency int
	maxRetry    int
	sweep       SweepSettings
	logger      *zap.Logger

	mu        sync.Mutex
	server    *asynq.Server
	scheduler *asynq.Scheduler
}

// AsynqConfig collects what the asynq queue needs
type AsynqConfig struct {
	Redis       config.RedisConfig
	Concurrency int
	MaxRetry    int
	Sweep       SweepSettings
}

// NewAsynqCallbackQueue creates the queue. processor may be nil for
// producer-only use; Run requires it.
func NewAsynqCallbackQueue(cfg AsynqConfig, processor CallbackProcessor, logger *zap.Logger) *AsynqCallbackQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	opt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	return &AsynqCallbackQueue{
		redisOpt:    opt,
		client:      asynq.NewClient(opt),
		processor:   processor,
		concurrency: cfg.Concurrency,
		maxRetry:    cfg.MaxRetry,
		sweep:       cfg.Sweep,
		logger:      logger.Named("queue"),
	}
}

// EnqueueCallback queues one stored callback. A callback that is already
// queued is not an error.
func (q *AsynqCallbackQueue) EnqueueCallback(ctx context.Context, callbackID uuid.UUID) error {
	task, err := NewProcessCallbackTask(callbackID, asynq.MaxRetry(q.maxRetry))
	if err != nil {
		return err
	}
	_, err = q.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		q.logger.Debug("Callback already queued", zap.String("callback_id", callbackID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue callback %s: %w", callbackID, err)
	}
	return nil
}

// Run serves callback and sweep tasks until ctx is cancelled
func (q *AsynqCallbackQueue) Run(ctx context.Context) error {
	if q.processor == nil {
		return errors.New("queue: asynq worker has no callback processor")
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskProcessCallback, q.handleProcess)
	mux.HandleFunc(TaskSweepCallbacks, q.handleSweep)

	server := asynq.NewServer(q.redisOpt, asynq.Config{
		Concurrency: q.concurrency,
		Queues:      map[string]int{QueueCallbacks: 1},
		Logger:      q.logger.Sugar(),
		LogLevel:    asynq.WarnLevel,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			q.logger.Warn("Callback task failed",
				zap.String("type", task.Type()),
				zap.Int("retry", retried),
				zap.Int("max_retry", maxRetry),
				zap.Error(err))
		}),
		ShutdownTimeout: 10 * time.Second,
	})

	var scheduler *asynq.Scheduler
	if q.sweep.Interval > 0 {
		scheduler = asynq.NewScheduler(q.redisOpt, &asynq.SchedulerOpts{Location: time.UTC, Logger: q.logger.Sugar(), LogLevel: asynq.WarnLevel})
		cronspec := fmt.Sprintf("@every %s", q.sweep.Interval)
		if _, err := scheduler.Register(cronspec, NewSweepCallbacksTask()); err != nil {
			return fmt.Errorf("register callback sweep: %w", err)
		}
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}
	if err := server.Start(mux); err != nil {
		if scheduler != nil {
			scheduler.Shutdown()
		}
		return fmt.Errorf("start asynq server: %w", err)
	}

	q.mu.Lock()
	q.server, q.scheduler = server, scheduler
	q.mu.Unlock()

	q.logger.Info("Callback worker started",
		zap.String("driver", config.QueueDriverAsynq),
		zap.Int("concurrency", q.concurrency),
		zap.Duration("sweep_interval", q.sweep.Interval))

	<-ctx.Done()
	q.stop()
	return nil
}

// Close stops a running worker and closes the producer connection
func (q *AsynqCallbackQueue) Close() error {
	q.stop()
	return q.client.Close()
}

func (q *AsynqCallbackQueue) stop() {
	q.mu.Lock()
	server, scheduler := q.server, q.scheduler
	q.server, q.scheduler = nil, nil
	q.mu.Unlock()

	if scheduler != nil {
		scheduler.Shutdown()
	}
	if server != nil {
		server.Shutdown()
		q.logger.Info("Callback worker stopped")
	}
}

func (q *AsynqCallbackQueue) handleProcess(ctx context.Context, task *asynq.Task) error {
	id, err := ParseProcessCallbackTask(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return processLabelled(ctx, q.processor, id)
}

func (q *AsynqCallbackQueue) handleSweep(ctx context.Context, _ *asynq.Task) error {
	_, err := q.processor.Sweep(ctx, q.sweep.Grace, q.sweep.Batch)
	if err != nil {
		// the next tick retries; individual failures are already logged
		q.logger.Warn("Callback sweep incomplete", zap.Int("errors", len(multierr.Errors(err))))
	}
	return nil
}
