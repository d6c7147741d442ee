// Package queue delivers stored payment callbacks to the reconciler, either
// through asynq on Redis or through an in-process worker pool.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/retailpos/backend/internal/infrastructure/telemetry"
)

// Task types
const (
	TaskProcessCallback = "payment:callback:process"
	TaskSweepCallbacks  = "payment:callback:sweep"
)

// QueueCallbacks is the asynq queue callbacks are processed on
const QueueCallbacks = "callbacks"

// ErrQueueFull is returned when the in-process buffer cannot take more work
var ErrQueueFull = errors.New("queue: buffer full")

// CallbackProcessor applies stored callbacks to payments
type CallbackProcessor interface {
	Process(ctx context.Context, callbackID uuid.UUID) error
	Sweep(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// CallbackQueue is a queue that can be run as a worker and shut down
type CallbackQueue interface {
	EnqueueCallback(ctx context.Context, callbackID uuid.UUID) error
	Run(ctx context.Context) error
	Close() error
}

// SweepSettings controls periodic recovery of callbacks that were never delivered
type SweepSettings struct {
	Interval time.Duration
	Grace    time.Duration
	Batch    int
}

type processCallbackPayload struct {
	CallbackID uuid.UUID `json:"callback_id"`
}

// NewProcessCallbackTask builds the task for one stored callback. The task
// id is the callback id so a callback is queued at most once at a time.
func NewProcessCallbackTask(callbackID uuid.UUID, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(processCallbackPayload{CallbackID: callbackID})
	if err != nil {
		return nil, fmt.Errorf("marshal callback task: %w", err)
	}
	opts = append([]asynq.Option{asynq.TaskID(callbackID.String()), asynq.Queue(QueueCallbacks)}, opts...)
	return asynq.NewTask(TaskProcessCallback, payload, opts...), nil
}

// ParseProcessCallbackTask reads the callback id from a task payload
func ParseProcessCallbackTask(t *asynq.Task) (uuid.UUID, error) {
	var p processCallbackPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return uuid.Nil, fmt.Errorf("decode callback task: %w", err)
	}
	if p.CallbackID == uuid.Nil {
		return uuid.Nil, errors.New("decode callback task: missing callback_id")
	}
	return p.CallbackID, nil
}

// NewSweepCallbacksTask builds the periodic sweep task
func NewSweepCallbacksTask() *asynq.Task {
	return asynq.NewTask(TaskSweepCallbacks, nil, asynq.Queue(QueueCallbacks), asynq.MaxRetry(0))
}

// processLabelled runs Process under profiling labels for the callback worker
func processLabelled(ctx context.Context, p CallbackProcessor, id uuid.UUID) error {
	var err error
	telemetry.WithOperationLabels(ctx, "callback", "process", func(ctx context.Context) {
		err = p.Process(ctx, id)
	})
	return err
}
