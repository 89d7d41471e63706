package async

import (
	"context"
	"sync"
)

// Slot admits one in-flight call at a time. Starting a new call cancels the
// previous one, and only the newest call may commit its result.
type Slot struct {
	name   string
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewSlot returns an idle slot.
func NewSlot(name string) *Slot {
	return &Slot{name: name}
}

// Name returns the slot label used in logs.
func (s *Slot) Name() string {
	return s.name
}

// Ticket identifies one call started on a slot.
type Ticket struct {
	slot *Slot
	gen  uint64
}

// Begin cancels any in-flight call and returns a context and ticket for the
// new one. The caller must call Done when the call returns.
func (s *Slot) Begin(parent context.Context) (context.Context, Ticket) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.cancel = cancel
	t := Ticket{slot: s, gen: s.gen}
	s.mu.Unlock()

	return ctx, t
}

// Cancel aborts the in-flight call, if any. Pending tickets can no longer commit.
func (s *Slot) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}

// Current reports whether t still belongs to the newest call.
func (t Ticket) Current() bool {
	t.slot.mu.Lock()
	defer t.slot.mu.Unlock()
	return t.gen == t.slot.gen
}

// Commit runs publish only if t is still the newest call. The check and the
// publication happen under the slot lock, so a superseding Begin cannot
// interleave with them.
func (t Ticket) Commit(publish func()) bool {
	t.slot.mu.Lock()
	defer t.slot.mu.Unlock()
	if t.gen != t.slot.gen {
		return false
	}
	publish()
	return true
}

// Done releases the call's context. It is safe to call more than once.
func (t Ticket) Done() {
	t.slot.mu.Lock()
	defer t.slot.mu.Unlock()
	if t.gen == t.slot.gen && t.slot.cancel != nil {
		t.slot.cancel()
		t.slot.cancel = nil
	}
}
