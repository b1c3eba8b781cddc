package tasks

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"
)

// RedisOpt converts the go-zero Redis config into an asynq connection option.
func RedisOpt(conf redis.RedisConf) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: conf.Host, Password: conf.Pass}
}

// WorkerConfig sizes the worker.
type WorkerConfig struct {
	Concurrency int
	Queues      map[string]int
}

// Worker consumes queued tasks until its context is cancelled.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewWorker(opt asynq.RedisConnOpt, cfg WorkerConfig, mux *asynq.ServeMux) *Worker {
	queues := cfg.Queues
	if len(queues) == 0 {
		queues = map[string]int{"default": 1}
	}
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      queues,
		Logger:      logxAdapter{},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logx.WithContext(ctx).Errorf("tasks: %s failed err=%v", task.Type(), err)
		}),
	})
	return &Worker{server: server, mux: mux}
}

// Run starts processing and blocks until ctx is done, then drains in-flight
// tasks.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("tasks: start worker: %w", err)
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}

// logxAdapter routes asynq logs to logx.
type logxAdapter struct{}

func (logxAdapter) Debug(args ...any) { logx.Debug(args...) }
func (logxAdapter) Info(args ...any)  { logx.Info(args...) }
func (logxAdapter) Warn(args ...any)  { logx.Slow(args...) }
func (logxAdapter) Error(args ...any) { logx.Error(args...) }
func (logxAdapter) Fatal(args ...any) { logx.Must(fmt.Errorf("%s", fmt.Sprint(args...))) }
