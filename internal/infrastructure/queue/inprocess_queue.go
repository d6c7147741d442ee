package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/retailpos/backend/internal/infrastructure/config"
)

const (
	defaultBufferSize = 1024
	baseRetryDelay    = 500 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
)

// InProcessCallbackQueue is a buffered channel drained by an errgroup of
// workers. Work still buffered at shutdown is recovered by the sweep on the
// next start, since every callback is persisted before it is enqueued.
type InProcessCallbackQueue struct {
	processor   CallbackProcessor
	jobs        chan uuid.UUID
	concurrency int
	maxRetry    int
	sweep       SweepSettings
	logger      *zap.Logger

	// sleep waits between attempts; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error

	closeOnce sync.Once
	closed    chan struct{}
}

// InProcessConfig collects what the in-process queue needs
type InProcessConfig struct {
	Concurrency int
	MaxRetry    int
	BufferSize  int
	Sweep       SweepSettings
}

// NewInProcessCallbackQueue creates the queue
func NewInProcessCallbackQueue(cfg InProcessConfig, processor CallbackProcessor, logger *zap.Logger) *InProcessCallbackQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = defaultBufferSize
	}
	return &InProcessCallbackQueue{
		processor:   processor,
		jobs:        make(chan uuid.UUID, cfg.BufferSize),
		concurrency: cfg.Concurrency,
		maxRetry:    cfg.MaxRetry,
		sweep:       cfg.Sweep,
		logger:      logger.Named("queue"),
		sleep:       sleepCtx,
		closed:      make(chan struct{}),
	}
}

// EnqueueCallback buffers the callback id without blocking
func (q *InProcessCallbackQueue) EnqueueCallback(ctx context.Context, callbackID uuid.UUID) error {
	select {
	case <-q.closed:
		return errors.New("queue: closed")
	default:
	}
	select {
	case q.jobs <- callbackID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run starts the workers and the sweeper and blocks until ctx is cancelled
// or Close is called
func (q *InProcessCallbackQueue) Run(ctx context.Context) error {
	if q.processor == nil {
		return errors.New("queue: in-process worker has no callback processor")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-q.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < q.concurrency; i++ {
		g.Go(func() error {
			q.work(ctx)
			return nil
		})
	}
	if q.sweep.Interval > 0 {
		g.Go(func() error {
			q.sweepLoop(ctx)
			return nil
		})
	}

	q.logger.Info("Callback worker started",
		zap.String("driver", config.QueueDriverInProcess),
		zap.Int("concurrency", q.concurrency),
		zap.Duration("sweep_interval", q.sweep.Interval))

	err := g.Wait()
	q.logger.Info("Callback worker stopped", zap.Int("abandoned", len(q.jobs)))
	return err
}

// Close stops Run. Safe to call more than once.
func (q *InProcessCallbackQueue) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })
	return nil
}

func (q *InProcessCallbackQueue) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-q.jobs:
			q.processWithRetry(ctx, id)
		}
	}
}

// processWithRetry retries infrastructure failures with exponential backoff.
// Callbacks that exhaust their retries stay unprocessed for the sweeper.
func (q *InProcessCallbackQueue) processWithRetry(ctx context.Context, id uuid.UUID) {
	delay := baseRetryDelay
	for attempt := 0; ; attempt++ {
		err := processLabelled(ctx, q.processor, id)
		if err == nil {
			return
		}
		if attempt >= q.maxRetry || ctx.Err() != nil {
			q.logger.Error("Callback processing gave up",
				zap.String("callback_id", id.String()),
				zap.Int("attempts", attempt+1),
				zap.Error(err))
			return
		}
		q.logger.Warn("Callback processing failed, retrying",
			zap.String("callback_id", id.String()),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if q.sleep(ctx, delay) != nil {
			return
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

func (q *InProcessCallbackQueue) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(q.sweep.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := q.processor.Sweep(ctx, q.sweep.Grace, q.sweep.Batch); err != nil && ctx.Err() == nil {
				q.logger.Warn("Callback sweep incomplete", zap.Error(err))
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
