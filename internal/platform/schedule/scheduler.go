// Package schedule runs recurring jobs on cron expressions and plugs into
// the application lifecycle.
package schedule

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/bayanihan-circle/coop_ledger/pkg/logger"
)

// Scheduler wraps a cron runner behind the lifecycle service contract.
type Scheduler struct {
	name string
	cron *cron.Cron
	log  *logger.Logger
}

// New creates a named scheduler.
func New(name string, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault(name)
	}
	return &Scheduler{
		name: name,
		cron: cron.New(),
		log:  log,
	}
}

// Add registers a job under a cron spec such as "@daily" or "0 3 * * *".
func (s *Scheduler) Add(spec string, run func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		run(context.Background())
	})
	return err
}

func (s *Scheduler) Name() string { return s.name }

// Start begins dispatching jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron.Start()
	s.log.Infof("%s scheduler started", s.name)
	return nil
}

// Stop halts dispatch and waits for running jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Infof("%s scheduler stopped", s.name)
	return nil
}
