package scheduler

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"orderrpa/internal/metrics"
	"orderrpa/internal/pipeline"
)

func TestNew_RejectsShortInterval(t *testing.T) {
	if _, err := New(100*time.Millisecond, nil, nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestTrigger_RejectsOverlap(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	run := func(ctx context.Context) (pipeline.Result, error) {
		close(started)
		<-release
		return pipeline.Result{RunID: "r1"}, nil
	}
	m := metrics.NewRegistry()
	s, err := New(time.Hour, run, m)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	done := make(chan pipeline.Result, 1)
	go func() {
		res, _ := s.Trigger(context.Background())
		done <- res
	}()
	<-started

	if _, err := s.Trigger(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("want ErrRunInProgress, got %v", err)
	}
	close(release)
	if res := <-done; res.RunID != "r1" {
		t.Fatalf("first run result=%+v", res)
	}

	// the lock is released once the first run ends
	s.run = func(context.Context) (pipeline.Result, error) { return pipeline.Result{RunID: "r2"}, nil }
	if res, err := s.Trigger(context.Background()); err != nil || res.RunID != "r2" {
		t.Fatalf("second trigger res=%+v err=%v", res, err)
	}
}

func TestStart_TimerRunsAndStops(t *testing.T) {
	var runs atomic.Int32
	s, err := New(time.Second, func(context.Context) (pipeline.Result, error) {
		runs.Add(1)
		return pipeline.Result{}, nil
	}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !s.Next().IsZero() {
		t.Fatalf("next should be zero before start")
	}

	s.Start(context.Background())
	deadline := time.Now().Add(5 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if runs.Load() == 0 {
		t.Fatalf("timer never fired")
	}
}

func TestEntries_SpacedByInterval(t *testing.T) {
	s, err := New(30*time.Minute, func(context.Context) (pipeline.Result, error) { return pipeline.Result{}, nil }, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Start(context.Background())
	defer s.Stop(context.Background())

	// cron computes Next asynchronously after Start
	deadline := time.Now().Add(2 * time.Second)
	for s.Next().IsZero() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	got := s.Entries(3)
	if len(got) != 3 {
		t.Fatalf("entries=%v", got)
	}
	for i := 1; i < len(got); i++ {
		if d := got[i].Sub(got[i-1]); d != 30*time.Minute {
			t.Fatalf("gap %d = %s", i, d)
		}
	}
}

func TestNext_ConcurrentWithStart(t *testing.T) {
	s, err := New(time.Hour, func(context.Context) (pipeline.Result, error) { return pipeline.Result{}, nil }, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
				s.Next()
				s.Entries(2)
			}
		}
	}()

	s.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	close(stop)
	<-readerDone

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestSkippedRunsCounted(t *testing.T) {
	m := metrics.NewRegistry()
	s, _ := New(time.Hour, nil, m)
	s.mu.Lock()
	_, err := s.Trigger(context.Background())
	s.mu.Unlock()
	if !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("want ErrRunInProgress, got %v", err)
	}
	if !strings.Contains(scrape(m), "orderrpa_runs_skipped_total 1") {
		t.Fatalf("skip not counted")
	}
}

func scrape(m *metrics.Registry) string {
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}
