// Package status tracks the lifecycle of dispatched jobs in memory.
//
// The store is the only mutable structure shared between the HTTP boundary
// and the dispatcher's background goroutines. A single RWMutex keeps reads
// and writes linearizable per key: a Get never observes a state older than
// the last Set that completed before the Get began.
package status

import (
	"sync"
	"time"
)

type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"

	// StateNotFound is returned for identifiers that were never submitted.
	// It is a query result, not a stored state.
	StateNotFound State = "not_found"
)

// Terminal reports whether a state is final for a job run.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

type Status struct {
	State     State
	Err       string
	UpdatedAt time.Time
}

// Store is a concurrent-safe map from job id to lifecycle status.
//
// Writes are last-writer-wins: two concurrent login jobs for the same
// (platform, account) pair share an id and the later terminal write sticks.
// Entries are never evicted; they accumulate for the process lifetime, which
// is an accepted bound for the volumes this daemon sees.
type Store struct {
	mu sync.RWMutex
	m  map[string]Status
}

func NewStore() *Store {
	return &Store{m: map[string]Status{}}
}

func (s *Store) Set(id string, state State) {
	s.mu.Lock()
	s.m[id] = Status{State: state, UpdatedAt: time.Now()}
	s.mu.Unlock()
}

// Fail records a terminal failure with its reason.
func (s *Store) Fail(id string, reason string) {
	s.mu.Lock()
	s.m[id] = Status{State: StateFailed, Err: reason, UpdatedAt: time.Now()}
	s.mu.Unlock()
}

// Get returns the current status. Unknown ids yield StateNotFound, never an
// error.
func (s *Store) Get(id string) Status {
	s.mu.RLock()
	st, ok := s.m[id]
	s.mu.RUnlock()
	if !ok {
		return Status{State: StateNotFound}
	}
	return st
}

// Len reports the number of tracked jobs (diagnostics only).
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
