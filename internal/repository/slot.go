package repository

import (
	"context"
	"sync"
	"time"
)

// Slot serializes fetches for one UI surface: starting a new fetch cancels
// the previous in-flight one, so at most one is active per slot.
type Slot struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

// Begin cancels the slot's previous fetch and returns the context for the
// new one.
func (s *Slot) Begin(parent context.Context) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	return ctx
}

// Cancel aborts the in-flight fetch, if any.
func (s *Slot) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Debouncer coalesces rapid calls: only the last one inside the quiet
// period fires. Used for search-as-you-type together with a Slot, so a
// superseded query is dropped rather than queued.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Do schedules fn after the quiet period, replacing any pending call.
func (d *Debouncer) Do(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop drops any pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
