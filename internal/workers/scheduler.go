package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is one scheduled job.
type Task struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs tasks on cron schedules. A run that is still in progress
// when its next tick fires causes that tick to be skipped.
type Scheduler struct {
	cron    *cron.Cron
	log     *zap.Logger
	loc     *time.Location
	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewScheduler parses every task schedule up front so a bad expression
// fails at startup.
func NewScheduler(logger *zap.Logger, loc *time.Location, tasks ...Task) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{log: logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:     logger,
		loc:     loc,
		entries: map[string]cron.EntryID{},
	}
	for _, task := range tasks {
		id, err := s.cron.AddFunc(task.Schedule, func() { s.runTask(task) })
		if err != nil {
			return nil, fmt.Errorf("schedule %s (%q): %w", task.Name, task.Schedule, err)
		}
		s.entries[task.Name] = id
	}
	return s, nil
}

// Start begins firing tasks.
func (s *Scheduler) Start() {
	s.cron.Start()
	for name := range s.entries {
		s.log.Info("scheduled task registered",
			zap.String("task", name),
			zap.Time("next_run", s.Next(name)))
	}
	s.log.Info("scheduler started", zap.String("timezone", s.loc.String()))
}

// Stop prevents new runs and waits for running tasks to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// Next returns the next activation of the named task, or the zero time.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

func (s *Scheduler) runTask(task Task) {
	ctx := context.Background()
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	start := time.Now()
	s.log.Info("scheduled task started", zap.String("task", task.Name))
	if err := task.Run(ctx); err != nil {
		s.log.Error("scheduled task failed",
			zap.String("task", task.Name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return
	}
	s.log.Info("scheduled task finished",
		zap.String("task", task.Name),
		zap.Duration("duration", time.Since(start)))
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
