package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"

	"chiro_dashboard_backend/internal/importer/domain"
	"chiro_dashboard_backend/platform/config"
	"chiro_dashboard_backend/platform/logger"
)

// Periodic registers the two fixed daily entries (morning, evening) that
// enqueue a sync task in the deployment's timezone. Each entry can be
// disabled independently.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	location, err := time.LoadLocation(cfg.GetScheduleTimezone())
	if err != nil {
		return nil, fmt.Errorf("load schedule timezone %q: %w", cfg.GetScheduleTimezone(), err)
	}

	sched := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: location,
	})

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	p := &Periodic{scheduler: sched, log: log}

	entries := []struct {
		name    string
		spec    string
		enabled bool
	}{
		{"morning", cfg.GetMorningSchedule(), cfg.IsMorningScheduleEnabled()},
		{"evening", cfg.GetEveningSchedule(), cfg.IsEveningScheduleEnabled()},
	}

	for _, entry := range entries {
		if !entry.enabled {
			log.Info("scheduled import disabled", "entry", entry.name)
			continue
		}

		// Scheduled runs request incremental; the orchestrator widens to a
		// full run when no completed full run exists yet.
		task, err := NewImportSyncTask(ImportSyncPayload{
			TriggeredBy: domain.TriggeredByScheduler,
			Incremental: true,
			Notes:       "Scheduled " + entry.name + " import",
		})
		if err != nil {
			return nil, err
		}

		if _, err := sched.Register(entry.spec, task, asynq.Queue(queue)); err != nil {
			return nil, fmt.Errorf("register %s schedule %q: %w", entry.name, entry.spec, err)
		}
		log.Info("scheduled import registered", "entry", entry.name, "cron", entry.spec, "timezone", location.String())
	}

	return p, nil
}

func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	go func() {
		<-ctx.Done()
		p.scheduler.Shutdown()
	}()

	if err := p.scheduler.Run(); err != nil {
		p.log.Error("periodic scheduler stopped", "error", err)
	}
}

// NextRuns computes the next fire time of each enabled schedule entry,
// soonest first. Used by the status endpoint; invalid specs are skipped.
func NextRuns(cfg config.SchedulerConfig, from time.Time) []time.Time {
	location, err := time.LoadLocation(cfg.GetScheduleTimezone())
	if err != nil {
		location = time.UTC
	}
	from = from.In(location)

	specs := make([]string, 0, 2)
	if cfg.IsMorningScheduleEnabled() {
		specs = append(specs, cfg.GetMorningSchedule())
	}
	if cfg.IsEveningScheduleEnabled() {
		specs = append(specs, cfg.GetEveningSchedule())
	}

	out := make([]time.Time, 0, len(specs))
	for _, spec := range specs {
		schedule, err := cron.ParseStandard(spec)
		if err != nil {
			continue
		}
		out = append(out, schedule.Next(from))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
