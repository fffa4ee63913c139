package eventloop

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/sites-fouilles-map/timectrl"
)

// Scheduler runs callbacks at session times. Toast dismissal and the in-memory
// engine's camera flights use it.
//
// The host advances time through the frame clock and calls RunDue on the
// session thread after each tick.
type Scheduler interface {
	// Schedule registers f to run at time 'at' and returns an id for Cancel.
	Schedule(at time.Time, f func()) (id string)

	// Cancel drops a scheduled callback. Unknown or already-run ids are ignored.
	Cancel(id string)

	// Now returns the current session time.
	Now() time.Time

	// RunDue executes every callback scheduled at or before Now(). Already-run
	// callbacks never run again.
	RunDue()
}

type scheduledEvent struct {
	id        string
	when      time.Time
	f         func()
	cancelled bool
}

type eventScheduler struct {
	clock timectrl.Clock

	mu      sync.Mutex
	counter uint64
	events  []*scheduledEvent // earliest first
	index   map[string]*scheduledEvent
}

// NewScheduler creates a scheduler backed by the given clock.
func NewScheduler(clock timectrl.Clock) Scheduler {
	return &eventScheduler{
		clock: clock,
		index: make(map[string]*scheduledEvent),
	}
}

func (s *eventScheduler) Schedule(at time.Time, f func()) (id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	id = fmt.Sprintf("ev-%d", s.counter)
	ev := &scheduledEvent{id: id, when: at, f: f}

	// Equal times keep insertion order.
	idx := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].when.After(ev.when)
	})
	s.events = append(s.events, nil)
	copy(s.events[idx+1:], s.events[idx:])
	s.events[idx] = ev

	s.index[id] = ev
	return id
}

func (s *eventScheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.index[id]
	if !ok {
		return
	}
	ev.cancelled = true
	delete(s.index, id)
	// Removal from s.events is lazy; RunDue skips cancelled events.
}

func (s *eventScheduler) Now() time.Time {
	return s.clock.Now()
}

// popDueLocked removes and returns the next due, non-cancelled event.
// Caller must hold s.mu.
func (s *eventScheduler) popDueLocked(now time.Time) *scheduledEvent {
	for len(s.events) > 0 {
		ev := s.events[0]
		if ev.cancelled {
			s.events = s.events[1:]
			continue
		}
		if ev.when.After(now) {
			return nil
		}
		s.events = s.events[1:]
		delete(s.index, ev.id)
		return ev
	}
	return nil
}

func (s *eventScheduler) RunDue() {
	now := s.clock.Now()
	for {
		s.mu.Lock()
		ev := s.popDueLocked(now)
		s.mu.Unlock()
		if ev == nil {
			return
		}
		// Outside the lock so callbacks may schedule or cancel.
		if ev.f != nil {
			ev.f()
		}
	}
}
