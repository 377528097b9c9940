// Package scheduler runs periodic housekeeping jobs on cron expressions.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/sajilotantra/sajilotantra-be/internal/metrics"
	"github.com/sajilotantra/sajilotantra-be/internal/services"
)

// Job is a named task with a standard five-field cron expression.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) (int64, error)
}

type entry struct {
	job      Job
	schedule cron.Schedule
	next     time.Time
}

// Scheduler checks for due jobs on every tick and executes them.
type Scheduler struct {
	entries []*entry
	metrics *metrics.Metrics
	tick    time.Duration
	now     func() time.Time
}

// New creates a scheduler. Every job spec must parse.
func New(jobs []Job, m *metrics.Metrics) (*Scheduler, error) {
	s := &Scheduler{metrics: m, tick: time.Minute, now: time.Now}
	for _, j := range jobs {
		sched, err := cron.ParseStandard(j.Spec)
		if err != nil {
			return nil, fmt.Errorf("invalid cron expression for job %s: %w", j.Name, err)
		}
		s.entries = append(s.entries, &entry{job: j, schedule: sched})
	}
	return s, nil
}

// MaintenanceJobs returns the standard housekeeping jobs.
func MaintenanceJobs(svc services.MaintenanceServiceProvider) []Job {
	return []Job{
		{Name: "clear_expired_otps", Spec: "*/15 * * * *", Run: svc.ClearExpiredOTPs},
		{Name: "clear_expired_reset_tokens", Spec: "*/15 * * * *", Run: svc.ClearExpiredResetTokens},
		{Name: "release_expired_locks", Spec: "*/5 * * * *", Run: svc.ReleaseExpiredLocks},
		{Name: "prune_activity_logs", Spec: "0 3 * * *", Run: svc.PruneActivityLogs},
	}
}

// Run starts the ticking loop and returns when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log.Info().Int("jobs", len(s.entries)).Msg("Starting background scheduler")
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	now := s.now()
	for _, e := range s.entries {
		e.next = e.schedule.Next(now)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping background scheduler")
			return
		case <-ticker.C:
			s.runDue(ctx, s.now())
		}
	}
}

// runDue executes every job whose next run time has passed.
func (s *Scheduler) runDue(ctx context.Context, now time.Time) {
	for _, e := range s.entries {
		if now.Before(e.next) {
			continue
		}
		e.next = e.schedule.Next(now)
		s.execute(ctx, e.job)
	}
}

func (s *Scheduler) execute(ctx context.Context, job Job) {
	n, err := job.Run(ctx)
	s.metrics.JobRun(job.Name, err)
	if err != nil {
		log.Error().Err(err).Str("job", job.Name).Msg("Scheduled job failed")
		return
	}
	if n > 0 {
		log.Info().Str("job", job.Name).Int64("affected", n).Msg("Scheduled job completed")
	}
}
