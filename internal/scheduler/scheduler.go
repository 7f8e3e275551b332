// Package scheduler runs the pipeline on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spigell/jobradar/internal/logger"
	"go.uber.org/zap"
)

// DefaultSpec runs twice a day, at 08:00 and 20:00.
const DefaultSpec = "0 8,20 * * *"

// Job is the work triggered on every tick.
type Job func(ctx context.Context) error

// Options configure the schedule.
type Options struct {
	Spec string
	// Timezone is an IANA name; empty means local time.
	Timezone   string
	RunOnStart bool
}

// Scheduler wraps robfig/cron. At most one run is in flight; ticks that
// arrive while a run is active are skipped.
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	job     Job
	opts    Options
	logger  *zap.Logger
	running atomic.Bool
	wg      sync.WaitGroup
}

func New(opts Options, job Job, log *zap.Logger) (*Scheduler, error) {
	if opts.Spec == "" {
		opts.Spec = DefaultSpec
	}

	loc := time.Local
	if opts.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(opts.Timezone); err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", opts.Timezone, err)
		}
	}

	l := logger.OrNop(log).Named("scheduler")
	cronLog := cronLogger{l}

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc), cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog))),
		spec:   opts.Spec,
		job:    job,
		opts:   opts,
		logger: l,
	}, nil
}

// Start registers the job and starts the cron loop. With RunOnStart a first
// run begins immediately in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Trigger(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("cron started", zap.String("spec", s.spec), zap.String("timezone", s.cron.Location().String()))

	if s.opts.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.Trigger(ctx)
		}()
	}
	return nil
}

// Next returns the time of the next scheduled run.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Trigger runs the job unless a run is already in flight. It reports whether
// the job ran.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous run still in progress, skipping tick")
		return false
	}
	defer s.running.Store(false)

	start := time.Now()
	s.logger.Info("scheduled run started")
	if err := s.job(ctx); err != nil {
		s.logger.Error("scheduled run finished with errors", zap.Error(err), zap.Duration("took", time.Since(start)))
		return true
	}
	s.logger.Info("scheduled run complete", zap.Duration("took", time.Since(start)))
	return true
}

// Stop halts the cron loop and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("cron stopped")
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, zap.Any("details", keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
