// Package sched wraps robfig/cron for the fixed-period jobs of sessions and locators.
//
// Each Scheduler owns its own cron instance. A periodic job is identified by
// the Handle returned from Every; stopping a period means removing that handle
// and scheduling a new one, never resetting a shared timer.
package sched

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/arloliu/go-tekdaqc/logger"
)

// Interval is a cron.Schedule firing every d, with sub-second precision.
type Interval time.Duration

func (i Interval) Next(t time.Time) time.Time {
	return t.Add(time.Duration(i))
}

// Handle identifies one scheduled job.
type Handle cron.EntryID

// Scheduler runs fixed-period jobs, recovering and logging panics.
// Overlapping runs of the same job are skipped.
type Scheduler struct {
	cron *cron.Cron
	log  cron.Logger

	mu      sync.Mutex
	started bool
}

// New creates a stopped scheduler logging through l.
func New(l logger.Logger) *Scheduler {
	cl := CronLogger(l)

	return &Scheduler{
		cron: cron.New(cron.WithLogger(cl)),
		log:  cl,
	}
}

// Every schedules fn every d, first firing after d. The scheduler is started on demand.
func (s *Scheduler) Every(d time.Duration, fn func()) Handle {
	// Recover must run inside SkipIfStillRunning, which only hands back its
	// run token when the wrapped job returns normally.
	job := cron.NewChain(cron.SkipIfStillRunning(s.log), cron.Recover(s.log)).Then(cron.FuncJob(fn))
	id := s.cron.Schedule(Interval(d), job)

	s.mu.Lock()
	if !s.started {
		s.cron.Start()
		s.started = true
	}
	s.mu.Unlock()

	return Handle(id)
}

// Cancel removes the job of h. Runs already in progress complete.
func (s *Scheduler) Cancel(h Handle) {
	if h == 0 {
		return
	}
	s.cron.Remove(cron.EntryID(h))
}

// Active reports whether h still refers to a scheduled job.
func (s *Scheduler) Active(h Handle) bool {
	if h == 0 {
		return false
	}

	return s.cron.Entry(cron.EntryID(h)).Valid()
}

// Stop stops the scheduler and waits for running jobs to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()

	if started {
		<-s.cron.Stop().Done()
	}
}

// CronLogger adapts l to cron.Logger.
func CronLogger(l logger.Logger) cron.Logger {
	return cronLogger{l: l}
}

type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
