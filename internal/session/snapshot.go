package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned to a load whose result was discarded because a
// newer load of the same resource started after it.
var ErrSuperseded = errors.New("superseded by a newer request")

// Ticket identifies one load started with Snapshot.Begin.
type Ticket struct {
	seq    uint64
	cancel context.CancelFunc
}

// Snapshot holds the latest loaded value of one resource. Loads are
// sequenced: starting a load cancels the one in flight, and only the most
// recently started load may publish. The zero value is ready to use.
type Snapshot[T any] struct {
	mu        sync.Mutex
	seq       uint64
	inflight  context.CancelFunc
	value     T
	loaded    bool
	updatedAt time.Time
}

// Begin starts a load. The returned context is cancelled when a newer load
// begins or when Finish is called.
func (s *Snapshot[T]) Begin(ctx context.Context) (context.Context, Ticket) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight != nil {
		s.inflight()
	}
	s.seq++
	s.inflight = cancel
	return ctx, Ticket{seq: s.seq, cancel: cancel}
}

// Current reports whether t is still the latest load.
func (s *Snapshot[T]) Current(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.seq == s.seq
}

// Commit publishes v if t is still the latest load.
func (s *Snapshot[T]) Commit(t Ticket, v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.seq != s.seq {
		return false
	}
	s.value = v
	s.loaded = true
	s.updatedAt = time.Now()
	return true
}

// Finish releases the resources of t. Safe to call more than once.
func (s *Snapshot[T]) Finish(t Ticket) {
	if t.cancel != nil {
		t.cancel()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.seq == s.seq {
		s.inflight = nil
	}
}

// Set publishes v immediately, superseding any load in flight.
func (s *Snapshot[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
	s.seq++
	s.value = v
	s.loaded = true
	s.updatedAt = time.Now()
}

// Get returns the published value and whether anything was published yet.
func (s *Snapshot[T]) Get() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.loaded
}

func (s *Snapshot[T]) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// cancel aborts the load in flight, if any.
func (s *Snapshot[T]) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
}
