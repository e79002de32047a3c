// internal/render/scheduler.go - Coalesced redraw scheduling
package render

import (
	"sync"
	"time"
)

// DefaultFrameInterval approximates one frame at 60 Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// ScopeAll enqueues every currently visible tile.
const ScopeAll = "all"

// Scheduler coalesces tile repaint requests into per-frame flushes. The
// single-shot timer resets on every enqueue, so a burst of style and
// selection changes produces exactly one repaint per tile.
type Scheduler struct {
	mu       sync.Mutex
	pending  map[string]struct{}
	timer    *time.Timer
	interval time.Duration
	flush    func(keys []string)

	// visibleKeys supplies the expansion of the "all" scope.
	visibleKeys func() []string

	disposed bool
}

// NewScheduler creates a scheduler delivering coalesced keys to flush.
func NewScheduler(interval time.Duration, visibleKeys func() []string, flush func(keys []string)) *Scheduler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Scheduler{
		pending:     make(map[string]struct{}),
		interval:    interval,
		flush:       flush,
		visibleKeys: visibleKeys,
	}
}

// Enqueue adds a tile key (or ScopeAll) to the pending set and arms the
// debounce timer.
func (s *Scheduler) Enqueue(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}

	if key == ScopeAll {
		for _, k := range s.visibleKeys() {
			s.pending[k] = struct{}{}
		}
	} else {
		s.pending[key] = struct{}{}
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.interval, s.fire)
}

// Pending snapshots the queued keys, for tests and introspection.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.pending))
	for k := range s.pending {
		out = append(out, k)
	}
	return out
}

// fire drains the queue and hands the batch to the flush callback.
func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.disposed || len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	keys := make([]string, 0, len(s.pending))
	for k := range s.pending {
		keys = append(keys, k)
	}
	s.pending = make(map[string]struct{})
	s.mu.Unlock()

	s.flush(keys)
}

// Stop cancels the timer and drops pending work.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = make(map[string]struct{})
}
