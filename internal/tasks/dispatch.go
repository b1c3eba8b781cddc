package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/zeromicro/go-zero/core/logx"
)

// Dispatcher submits a task and returns its id.
type Dispatcher interface {
	Dispatch(ctx context.Context, taskType string, payload any) (string, error)
}

// QueueDispatcher enqueues tasks on asynq.
type QueueDispatcher struct {
	client   *asynq.Client
	queue    string
	maxRetry int
	timeout  time.Duration
}

// NewQueueDispatcher wraps an asynq client. Zero values keep asynq defaults.
func NewQueueDispatcher(client *asynq.Client, queue string, maxRetry int, timeout time.Duration) *QueueDispatcher {
	return &QueueDispatcher{client: client, queue: queue, maxRetry: maxRetry, timeout: timeout}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, taskType string, payload any) (string, error) {
	var opts []asynq.Option
	if d.queue != "" {
		opts = append(opts, asynq.Queue(d.queue))
	}
	if d.maxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(d.maxRetry))
	}
	if d.timeout > 0 {
		opts = append(opts, asynq.Timeout(d.timeout))
	}
	if id := jobID(payload); id != "" {
		opts = append(opts, asynq.TaskID(id))
	}
	task, err := NewTask(taskType, payload)
	if err != nil {
		return "", err
	}
	info, err := d.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return "", fmt.Errorf("tasks: enqueue %s: %w", taskType, err)
	}
	logx.WithContext(ctx).Infof("tasks: enqueued %s id=%s queue=%s", taskType, info.ID, info.Queue)
	return info.ID, nil
}

// InlineDispatcher runs tasks synchronously through the mux. It is used when
// the queue is disabled.
type InlineDispatcher struct {
	Mux *asynq.ServeMux
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, taskType string, payload any) (string, error) {
	id := jobID(payload)
	if id == "" {
		id = uuid.NewString()
	}
	task, err := NewTask(taskType, payload)
	if err != nil {
		return "", err
	}
	start := time.Now()
	if err := d.Mux.ProcessTask(ctx, task); err != nil {
		return id, fmt.Errorf("tasks: run %s: %w", taskType, err)
	}
	logx.WithContext(ctx).Infof("tasks: ran %s id=%s inline took=%s", taskType, id, time.Since(start))
	return id, nil
}

func jobID(payload any) string {
	switch p := payload.(type) {
	case PricingPayload:
		return p.JobID
	case *PricingPayload:
		return p.JobID
	case RestorePayload:
		return p.JobID
	case *RestorePayload:
		return p.JobID
	case AlgoPayload:
		return p.RunID
	case *AlgoPayload:
		return p.RunID
	}
	return ""
}
