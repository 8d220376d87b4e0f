// Package jobs runs the periodic maintenance passes: purging expired gifts and
// reconciling alliance power aggregates.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/park285/frostfury-server/internal/obslog"
)

type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

type Reconciler interface {
	ReconcileAll(ctx context.Context) (int, error)
}

// Schedules are six-field cron expressions (seconds first) or descriptors such as
// "@every 10m". An empty schedule disables that job.
type Schedules struct {
	Purge     string
	Reconcile string
}

type Scheduler struct {
	cron       *cron.Cron
	purger     Purger
	reconciler Reconciler
	now        func() time.Time
	timeout    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

// WithJobTimeout bounds a single run of any job.
func WithJobTimeout(d time.Duration) Option { return func(s *Scheduler) { s.timeout = d } }

func New(p Purger, r Reconciler, sched Schedules, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		cron:       cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		purger:     p,
		reconciler: r,
		now:        time.Now,
		timeout:    2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if sched.Purge != "" && p != nil {
		if _, err := s.cron.AddFunc(sched.Purge, func() { _ = s.RunPurge(s.ctx) }); err != nil {
			return nil, fmt.Errorf("purge schedule %q: %w", sched.Purge, err)
		}
	}
	if sched.Reconcile != "" && r != nil {
		if _, err := s.cron.AddFunc(sched.Reconcile, func() { _ = s.RunReconcile(s.ctx) }); err != nil {
			return nil, fmt.Errorf("reconcile schedule %q: %w", sched.Reconcile, err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	obslog.L().Info("jobs_started", zap.Int("entries", len(s.cron.Entries())))
}

// Stop cancels running jobs and waits for them to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) RunPurge(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	n, err := s.purger.PurgeExpired(ctx, s.now())
	if err != nil {
		obslog.L().Warn("job_purge_failed", zap.Int("removed", n), zap.Error(err))
		return err
	}
	obslog.L().Debug("job_purge_done", zap.Int("removed", n), zap.Duration("took", time.Since(start)))
	return nil
}

func (s *Scheduler) RunReconcile(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	n, err := s.reconciler.ReconcileAll(ctx)
	if err != nil {
		obslog.L().Warn("job_reconcile_failed", zap.Int("fixed", n), zap.Error(err))
		return err
	}
	obslog.L().Info("job_reconcile_done", zap.Int("fixed", n), zap.Duration("took", time.Since(start)))
	return nil
}
