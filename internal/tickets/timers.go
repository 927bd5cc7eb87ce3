package tickets

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// timerSet holds at most one pending auto-close timer per ticket.
type timerSet struct {
	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
	closed bool
}

func newTimerSet() *timerSet {
	return &timerSet{timers: make(map[uuid.UUID]*time.Timer)}
}

// schedule replaces any pending timer for id with one that runs fn after d.
func (s *timerSet) schedule(id uuid.UUID, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if existing, ok := s.timers[id]; ok {
		existing.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.timers[id] == timer {
			delete(s.timers, id)
		}
		s.mu.Unlock()
		fn()
	})
	s.timers[id] = timer
}

func (s *timerSet) cancel(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}

func (s *timerSet) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// stop cancels every timer and refuses new ones.
func (s *timerSet) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}
