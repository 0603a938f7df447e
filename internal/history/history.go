package history

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrNotFound is returned by Get and Latest when no run matches.
var ErrNotFound = errors.New("run not found")

// RunRecord is the persisted outcome of one pipeline run.
type RunRecord struct {
	RunID         string    `json:"runId"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
	Status        string    `json:"status"`
	ValidRows     int       `json:"validRows"`
	InvalidRows   int       `json:"invalidRows"`
	Customers     int       `json:"customers"`
	UrgentFreight int       `json:"urgentFreight"`
	TotalValue    string    `json:"totalValue,omitempty"`
	ReportPath    string    `json:"reportPath,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Store keeps run records ordered by start time. Put is insert-only:
// a RunID already present is left untouched and reported as not applied.
type Store interface {
	Put(rec RunRecord) (applied bool, err error)
	Get(runID string) (RunRecord, error)
	Latest() (RunRecord, error)
	Range(fn func(rec RunRecord) error) error
	Close() error
}

// InMemoryStore is a thread-safe store for single-process runs and tests.
type InMemoryStore struct {
	mu   sync.RWMutex
	byID map[string]int
	runs []RunRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[string]int)}
}

func (s *InMemoryStore) Put(rec RunRecord) (bool, error) {
	if rec.RunID == "" {
		return false, fmt.Errorf("put: empty run id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[rec.RunID]; ok {
		return false, nil
	}
	i, _ := slices.BinarySearchFunc(s.runs, rec, compareRuns)
	s.runs = slices.Insert(s.runs, i, rec)
	for j := i; j < len(s.runs); j++ {
		s.byID[s.runs[j].RunID] = j
	}
	return true, nil
}

func (s *InMemoryStore) Get(runID string) (RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[runID]
	if !ok {
		return RunRecord{}, ErrNotFound
	}
	return s.runs[i], nil
}

func (s *InMemoryStore) Latest() (RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.runs) == 0 {
		return RunRecord{}, ErrNotFound
	}
	return s.runs[len(s.runs)-1], nil
}

func (s *InMemoryStore) Range(fn func(rec RunRecord) error) error {
	s.mu.RLock()
	runs := slices.Clone(s.runs)
	s.mu.RUnlock()
	for _, r := range runs {
		if err := fn(r); err != nil {
			return fmt.Errorf("range callback failed: %w", err)
		}
	}
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

func compareRuns(a, b RunRecord) int {
	if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
		return c
	}
	switch {
	case a.RunID < b.RunID:
		return -1
	case a.RunID > b.RunID:
		return 1
	}
	return 0
}
