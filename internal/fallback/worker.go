package fallback

import (
	"context"
	"fmt"

	"leadmarket_backend/internal/tasks"
	"leadmarket_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// HandleConversionCheckTask is the asynq handler for conversion checks.
func (s *Service) HandleConversionCheckTask(ctx context.Context, t *asynq.Task) error {
	payload, err := tasks.ParseConversionCheck(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return s.RunConversionCheck(ctx, payload.ServiceRequestID, payload.LeadID)
}

// Worker runs the scheduler process's task loop.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

// NewWorker creates an asynq server consuming the given queue.
func NewWorker(redisOpt asynq.RedisConnOpt, queue string, concurrency int, log *logger.Logger) *Worker {
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			log.Error("task failed", "type", task.Type(), "error", err)
		}),
	})

	return &Worker{server: server, mux: asynq.NewServeMux(), log: log}
}

// HandleFunc registers a task handler.
func (w *Worker) HandleFunc(pattern string, handler func(context.Context, *asynq.Task) error) {
	w.mux.HandleFunc(pattern, handler)
}

// Run starts the task loop and blocks until shutdown.
func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

// Shutdown stops the task loop, waiting for in-flight tasks.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}
