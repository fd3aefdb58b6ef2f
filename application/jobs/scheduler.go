package jobs

import (
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs fn repeatedly until the returned stop func is called
type Scheduler interface {
	Every(interval time.Duration, fn func()) (stop func())
}

// fixedInterval is a cron schedule that fires every d, with sub-second
// precision unlike cron.Every.
type fixedInterval time.Duration

func (f fixedInterval) Next(t time.Time) time.Time {
	return t.Add(time.Duration(f))
}

// CronScheduler drives pollers from a single cron runner. A tick that is
// still running when the next one is due is skipped.
type CronScheduler struct {
	cron *cron.Cron
}

// NewCronScheduler creates and starts a scheduler
func NewCronScheduler(logger *zap.Logger) *CronScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := cronLogger{logger.Sugar()}
	c := cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	c.Start()
	return &CronScheduler{cron: c}
}

// Every schedules fn every interval
func (s *CronScheduler) Every(interval time.Duration, fn func()) func() {
	id := s.cron.Schedule(fixedInterval(interval), cron.FuncJob(fn))
	var once sync.Once
	return func() {
		once.Do(func() { s.cron.Remove(id) })
	}
}

// Stop stops the runner and waits for running ticks to finish
func (s *CronScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

// ManualScheduler only fires when Tick is called. Used where tests need
// to control time.
type ManualScheduler struct {
	mu    sync.Mutex
	seq   int
	tasks map[int]func()
}

// NewManualScheduler creates an idle scheduler
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{tasks: make(map[int]func())}
}

// Every registers fn; interval is ignored
func (s *ManualScheduler) Every(_ time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := s.seq
	s.tasks[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.tasks, id)
	}
}

// Tick runs every registered task once, in registration order
func (s *ManualScheduler) Tick() {
	s.mu.Lock()
	ids := make([]int, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		s.mu.Lock()
		fn, ok := s.tasks[id]
		s.mu.Unlock()
		if ok {
			fn()
		}
	}
}

// Pending returns the number of registered tasks
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
