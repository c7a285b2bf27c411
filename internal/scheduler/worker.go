package scheduler

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"chiro_dashboard_backend/internal/importer/domain"
	"chiro_dashboard_backend/internal/importer/service"
	"chiro_dashboard_backend/platform/apperr"
	"chiro_dashboard_backend/platform/config"
	"chiro_dashboard_backend/platform/logger"
)

// ImportRunner is the orchestrator entry point the worker drives.
type ImportRunner interface {
	TriggerImport(ctx context.Context, opts service.TriggerOptions) (domain.Run, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner ImportRunner
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, runner ImportRunner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 1
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		runner: runner,
		log:    log,
	}

	mux.HandleFunc(TaskImportSync, w.handleImportSync)

	return w, nil
}

// handleImportSync executes one scheduled import. Failures are logged and
// swallowed: a failed run is already persisted with its error, and the
// next scheduled slot retries naturally via idempotent upserts.
func (w *Worker) handleImportSync(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseImportSyncPayload(task)
	if err != nil {
		return err
	}

	triggeredBy := payload.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = domain.TriggeredByScheduler
	}

	var notes *string
	if payload.Notes != "" {
		notes = &payload.Notes
	}

	run, err := w.runner.TriggerImport(ctx, service.TriggerOptions{
		TriggeredBy: triggeredBy,
		Incremental: payload.Incremental,
		Notes:       notes,
	})
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			w.log.Warn("scheduled import skipped, another run is active")
			return nil
		}
		w.log.Error("scheduled import failed", "error", err)
		return nil
	}

	w.log.Info("scheduled import finished",
		"run_id", run.ID.String(),
		"processed", run.Counters.Processed,
		"incremental", run.Incremental,
	)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
