package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler drives Jobs on cron schedules. A shared mutex serializes job
// runs, so the stop-loss and rebalance cadences never observe or trade
// against the portfolio at the same time.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger

	mu  sync.Mutex
	ctx context.Context
}

// NewScheduler creates an empty scheduler.
func NewScheduler(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cron: cron.New(),
		log:  log.With("component", "scheduler"),
	}
}

// AddDaily schedules job once per day at the given "HH:MM" wall-clock time.
func (s *Scheduler) AddDaily(at string, job Job) error {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return fmt.Errorf("invalid daily time %q: %w", at, err)
	}
	spec := fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour())
	return s.add(spec, job)
}

// AddEvery schedules job at a fixed interval.
func (s *Scheduler) AddEvery(interval time.Duration, job Job) error {
	return s.add("@every "+interval.String(), job)
}

func (s *Scheduler) add(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.runJob(job) })
	if err != nil {
		return fmt.Errorf("scheduling %s (%s): %w", job.Name(), spec, err)
	}
	s.log.Info("job scheduled", "job", job.Name(), "spec", spec)
	return nil
}

// runJob executes one job cycle under the shared mutex.
func (s *Scheduler) runJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.log.Error("job failed", "job", job.Name(), "duration", time.Since(start), "error", err)
		return
	}
	s.log.Info("job finished", "job", job.Name(), "duration", time.Since(start))
}

// Start runs the scheduler until ctx is cancelled, then waits for any
// in-flight job to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	<-ctx.Done()
	// Stop's context completes once running jobs have returned.
	<-s.cron.Stop().Done()
}

// RunNow executes a job immediately, outside the cron schedule, still
// serialized with scheduled runs.
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return job.Run(ctx)
}
