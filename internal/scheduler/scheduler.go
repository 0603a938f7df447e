package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"orderrpa/internal/logger"
	"orderrpa/internal/metrics"
	"orderrpa/internal/pipeline"
)

// ErrRunInProgress is returned by Trigger while another run holds the lock.
var ErrRunInProgress = errors.New("run already in progress")

type RunFunc func(ctx context.Context) (pipeline.Result, error)

// Scheduler runs the pipeline every interval and on demand. At most one
// run executes at a time; overlapping requests are dropped, not queued.
type Scheduler struct {
	run      RunFunc
	interval time.Duration
	metrics  *metrics.Registry

	mu       sync.Mutex // held for the duration of a run
	cron     *cron.Cron
	schedule cron.Schedule

	stateMu sync.RWMutex // guards entry and cancel
	entry   cron.EntryID
	cancel  context.CancelFunc
}

func New(interval time.Duration, run RunFunc, m *metrics.Registry) (*Scheduler, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("schedule: interval %s below one second", interval)
	}
	sched, err := cron.ParseStandard("@every " + interval.String())
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	l := cronLogger{}
	return &Scheduler{
		run:      run,
		interval: interval,
		metrics:  m,
		schedule: sched,
		cron:     cron.New(cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)), cron.WithLogger(l)),
	}, nil
}

// Start registers the timer job and starts the cron loop. Timer runs use ctx.
func (s *Scheduler) Start(ctx context.Context) {
	base, cancel := context.WithCancel(ctx)
	id := s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		if _, err := s.Trigger(base); err != nil && !errors.Is(err, ErrRunInProgress) {
			logger.Warn("scheduled run failed", "error", err)
		}
	}))
	s.stateMu.Lock()
	s.entry, s.cancel = id, cancel
	s.stateMu.Unlock()
	s.cron.Start()
	logger.Info("scheduler started", "interval", s.interval.String(), "next", s.Next())
}

// Trigger runs the pipeline now unless a run is already in flight.
func (s *Scheduler) Trigger(ctx context.Context) (pipeline.Result, error) {
	if !s.mu.TryLock() {
		if s.metrics != nil {
			s.metrics.RunsSkipped.Inc()
		}
		logger.Warn("run skipped", "reason", ErrRunInProgress.Error())
		return pipeline.Result{}, ErrRunInProgress
	}
	defer s.mu.Unlock()
	return s.run(ctx)
}

// Next is the time of the next timer run, zero before Start.
func (s *Scheduler) Next() time.Time {
	s.stateMu.RLock()
	id := s.entry
	s.stateMu.RUnlock()
	if id == 0 {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Entries lists the next n timer runs.
func (s *Scheduler) Entries(n int) []time.Time {
	next := s.Next()
	if next.IsZero() || n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, next)
		next = s.schedule.Next(next)
	}
	return out
}

func (s *Scheduler) Interval() time.Duration { return s.interval }

// Stop halts the timer and waits for an in-flight run or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.stateMu.RLock()
	cancel := s.cancel
	s.stateMu.RUnlock()
	if cancel != nil {
		defer cancel()
	}
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger routes cron's internal logging through the process logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
