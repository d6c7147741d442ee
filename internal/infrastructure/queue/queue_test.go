package queue

import (
	"context"
	"errors"
	"runtime/pprof"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/retailpos/backend/internal/infrastructure/config"
	"github.com/retailpos/backend/tests/testutil"
)

// recordingProcessor fails the first failures[id] attempts for an id
type recordingProcessor struct {
	mu       sync.Mutex
	calls    map[uuid.UUID]int
	failures map[uuid.UUID]int
	sweeps   int
	labels   []string
	done     chan uuid.UUID
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{
		calls:    make(map[uuid.UUID]int),
		failures: make(map[uuid.UUID]int),
		done:     make(chan uuid.UUID, 16),
	}
}

func (p *recordingProcessor) Process(ctx context.Context, id uuid.UUID) error {
	p.mu.Lock()
	p.calls[id]++
	if op, ok := pprof.Label(ctx, "operation"); ok {
		p.labels = append(p.labels, op)
	}
	fail := p.calls[id] <= p.failures[id]
	p.mu.Unlock()
	if fail {
		return errors.New("database unavailable")
	}
	p.done <- id
	return nil
}

func (p *recordingProcessor) Sweep(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	p.mu.Lock()
	p.sweeps++
	p.mu.Unlock()
	return 0, nil
}

func (p *recordingProcessor) callCount(id uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestProcessCallbackTask_RoundTrip(t *testing.T) {
	id := uuid.New()
	task, err := NewProcessCallbackTask(id)
	require.NoError(t, err)
	assert.Equal(t, TaskProcessCallback, task.Type())

	got, err := ParseProcessCallbackTask(task)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseProcessCallbackTask(asynq.NewTask(TaskProcessCallback, []byte(`{}`)))
	assert.Error(t, err)
}

func TestInProcessCallbackQueue(t *testing.T) {
	t.Run("processes enqueued callbacks", func(t *testing.T) {
		proc := newRecordingProcessor()
		q := NewInProcessCallbackQueue(InProcessConfig{Concurrency: 2, MaxRetry: 3}, proc, nil)
		q.sleep = noSleep

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error, 1)
		go func() { errCh <- q.Run(ctx) }()

		id := uuid.New()
		require.NoError(t, q.EnqueueCallback(ctx, id))
		select {
		case got := <-proc.done:
			assert.Equal(t, id, got)
		case <-time.After(2 * time.Second):
			t.Fatal("callback was not processed")
		}

		require.NoError(t, q.Close())
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return after Close")
		}
	})

	t.Run("retries infrastructure failures", func(t *testing.T) {
		proc := newRecordingProcessor()
		id := uuid.New()
		proc.failures[id] = 2
		q := NewInProcessCallbackQueue(InProcessConfig{MaxRetry: 3}, proc, nil)
		q.sleep = noSleep

		q.processWithRetry(context.Background(), id)
		assert.Equal(t, 3, proc.callCount(id))
		assert.Equal(t, []string{"process", "process", "process"}, proc.labels, "each attempt runs under profiling labels")
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		proc := newRecordingProcessor()
		id := uuid.New()
		proc.failures[id] = 10
		q := NewInProcessCallbackQueue(InProcessConfig{MaxRetry: 2}, proc, nil)
		q.sleep = noSleep

		q.processWithRetry(context.Background(), id)
		assert.Equal(t, 3, proc.callCount(id))
	})

	t.Run("full buffer is reported", func(t *testing.T) {
		q := NewInProcessCallbackQueue(InProcessConfig{BufferSize: 1}, newRecordingProcessor(), nil)
		require.NoError(t, q.EnqueueCallback(context.Background(), uuid.New()))
		assert.ErrorIs(t, q.EnqueueCallback(context.Background(), uuid.New()), ErrQueueFull)
	})

	t.Run("closed queue rejects work", func(t *testing.T) {
		q := NewInProcessCallbackQueue(InProcessConfig{}, newRecordingProcessor(), nil)
		require.NoError(t, q.Close())
		assert.Error(t, q.EnqueueCallback(context.Background(), uuid.New()))
	})

	t.Run("sweeper runs on its interval", func(t *testing.T) {
		proc := newRecordingProcessor()
		q := NewInProcessCallbackQueue(InProcessConfig{Sweep: SweepSettings{Interval: 10 * time.Millisecond, Grace: time.Minute, Batch: 10}}, proc, nil)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- q.Run(ctx) }()

		testutil.RequireEventually(t, func() bool {
			proc.mu.Lock()
			defer proc.mu.Unlock()
			return proc.sweeps >= 2
		}, 2*time.Second, 5*time.Millisecond, "sweeper did not run twice")

		cancel()
		require.NoError(t, <-errCh)
	})
}

func TestAsynqCallbackQueue_Enqueue(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	q := NewAsynqCallbackQueue(AsynqConfig{
		Redis:    config.RedisConfig{Host: mr.Host(), Port: port},
		MaxRetry: 5,
	}, nil, nil)
	defer q.Close()

	id := uuid.New()
	require.NoError(t, q.EnqueueCallback(context.Background(), id))
	assert.True(t, mr.Exists("asynq:{"+QueueCallbacks+"}:t:"+id.String()))

	// a second enqueue of the same callback is absorbed
	require.NoError(t, q.EnqueueCallback(context.Background(), id))
	pending, err := mr.List("asynq:{" + QueueCallbacks + "}:pending")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestAsynqCallbackQueue_Handlers(t *testing.T) {
	proc := newRecordingProcessor()
	q := &AsynqCallbackQueue{processor: proc, sweep: SweepSettings{Grace: time.Minute, Batch: 5}, logger: zap.NewNop()}

	id := uuid.New()
	task, err := NewProcessCallbackTask(id)
	require.NoError(t, err)
	require.NoError(t, q.handleProcess(context.Background(), task))
	assert.Equal(t, 1, proc.callCount(id))

	err = q.handleProcess(context.Background(), asynq.NewTask(TaskProcessCallback, []byte("not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	require.NoError(t, q.handleSweep(context.Background(), NewSweepCallbacksTask()))
	assert.Equal(t, 1, proc.sweeps)
}

func TestAsynqCallbackQueue_RunWithoutProcessor(t *testing.T) {
	q := NewAsynqCallbackQueue(AsynqConfig{Redis: config.RedisConfig{Host: "127.0.0.1", Port: 1}}, nil, nil)
	defer q.Close()
	assert.Error(t, q.Run(context.Background()))
}

func TestNew(t *testing.T) {
	cfg := &config.Config{Queue: config.QueueConfig{Driver: config.QueueDriverInProcess, Concurrency: 2}}
	q, err := New(cfg, newRecordingProcessor(), nil)
	require.NoError(t, err)
	assert.IsType(t, &InProcessCallbackQueue{}, q)

	cfg.Queue.Driver = config.QueueDriverAsynq
	cfg.Redis = config.RedisConfig{Host: "127.0.0.1", Port: 6379}
	q, err = New(cfg, newRecordingProcessor(), nil)
	require.NoError(t, err)
	assert.IsType(t, &AsynqCallbackQueue{}, q)
	_ = q.Close()

	cfg.Queue.Driver = "kafka"
	_, err = New(cfg, nil, nil)
	assert.Error(t, err)
}
