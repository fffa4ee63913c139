package eventloop

import (
	"fmt"
	"sync"
	"time"
)

// FakeScheduler keeps its own notion of time. Tests move it forward with
// Advance/AdvanceTo, which run due callbacks deterministically.
type FakeScheduler struct {
	mu      sync.Mutex
	now     time.Time
	counter uint64

	events []*scheduledEvent // earliest first
	index  map[string]*scheduledEvent
}

// NewFakeScheduler creates a fake scheduler starting at the given time.
func NewFakeScheduler(start time.Time) *FakeScheduler {
	return &FakeScheduler{
		now:   start,
		index: make(map[string]*scheduledEvent),
	}
}

// Now returns the fake session time.
func (s *FakeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Schedule registers a callback at the given fake time.
func (s *FakeScheduler) Schedule(at time.Time, f func()) (id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	id = fmt.Sprintf("fake-ev-%d", s.counter)
	ev := &scheduledEvent{id: id, when: at, f: f}

	inserted := false
	for i, existing := range s.events {
		if at.Before(existing.when) {
			s.events = append(s.events[:i], append([]*scheduledEvent{ev}, s.events[i:]...)...)
			inserted = true
			break
		}
	}
	if !inserted {
		s.events = append(s.events, ev)
	}
	s.index[id] = ev
	return id
}

// Cancel drops a scheduled callback.
func (s *FakeScheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.index[id]
	if !ok {
		return
	}
	ev.cancelled = true
	delete(s.index, id)
}

// Pending reports how many live callbacks are still scheduled.
func (s *FakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// RunDue executes all callbacks scheduled at or before now.
func (s *FakeScheduler) RunDue() {
	for {
		s.mu.Lock()
		if len(s.events) == 0 || s.events[0].when.After(s.now) {
			s.mu.Unlock()
			return
		}
		ev := s.events[0]
		s.events = s.events[1:]
		if ev.cancelled {
			s.mu.Unlock()
			continue
		}
		delete(s.index, ev.id)
		callback := ev.f
		s.mu.Unlock()

		if callback != nil {
			callback()
		}
	}
}

// AdvanceTo moves fake time to t and runs due callbacks. Time never goes
// backwards.
func (s *FakeScheduler) AdvanceTo(t time.Time) {
	s.mu.Lock()
	if t.Before(s.now) {
		s.mu.Unlock()
		return
	}
	s.now = t
	s.mu.Unlock()

	s.RunDue()
}

// Advance moves fake time forward by d.
func (s *FakeScheduler) Advance(d time.Duration) {
	s.AdvanceTo(s.Now().Add(d))
}
