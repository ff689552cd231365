// Package scheduler runs the bot's periodic maintenance jobs on a cron
// schedule: evicting inactive sessions and pruning the duplicate-message
// caches. All jobs stop together at shutdown.
package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler provides cron-based background job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// New creates and starts a cron scheduler. Panicking jobs are recovered so a
// bad sweep cannot take the process down.
func New() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression. It returns an
// error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	if err == nil {
		slog.Debug("Scheduled background job", "cron", expr)
	}
	return err
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Debug("Scheduler stopped")
}
