package run

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Handle is the cancellation token for one run. A handle has exactly one
// owner and is never reused.
type Handle struct {
	ID     uuid.UUID
	ctx    context.Context
	cancel context.CancelFunc
}

// Context returns the handle's cancellation context.
func (h *Handle) Context() context.Context { return h.ctx }

// Cancel cancels the handle's run.
func (h *Handle) Cancel() { h.cancel() }

// Supervisor holds at most one active run handle. Starting a new run cancels
// and replaces the previous one in a single guarded swap, so two runs never
// share a database connection or a buffer.
type Supervisor struct {
	mu      sync.Mutex
	current *Handle
}

// Begin cancels the previous run, if any, and returns the new active handle
// derived from parent.
func (s *Supervisor) Begin(parent context.Context) *Handle {
	ctx, cancel := context.WithCancel(parent)
	h := &Handle{ID: uuid.New(), ctx: ctx, cancel: cancel}

	s.mu.Lock()
	prev := s.current
	s.current = h
	s.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}
	return h
}

// CancelActive cancels the current run without starting a new one.
func (s *Supervisor) CancelActive() {
	s.mu.Lock()
	h := s.current
	s.mu.Unlock()
	if h != nil {
		h.cancel()
	}
}
