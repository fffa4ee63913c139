package browser

import (
	"sync"
	"time"

	"github.com/signalsfoundry/sites-fouilles-map/internal/eventloop"
)

// ToastDuration is how long a toast stays on screen.
const ToastDuration = 3 * time.Second

// Notifier shows a transient message.
type Notifier interface {
	Show(message string)
}

// Toaster keeps at most one toast on screen. Showing a new toast replaces the
// current one and restarts the dismissal timer.
type Toaster struct {
	sched    eventloop.Scheduler
	duration time.Duration

	mu        sync.Mutex
	message   string
	visible   bool
	dismissID string
	shown     int
}

var _ Notifier = (*Toaster)(nil)

// NewToaster builds a toaster that dismisses on sched. A non-positive duration
// takes ToastDuration.
func NewToaster(sched eventloop.Scheduler, duration time.Duration) *Toaster {
	if duration <= 0 {
		duration = ToastDuration
	}
	return &Toaster{sched: sched, duration: duration}
}

// Show implements Notifier.
func (t *Toaster) Show(message string) {
	t.mu.Lock()
	if t.dismissID != "" {
		t.sched.Cancel(t.dismissID)
	}
	t.message = message
	t.visible = true
	t.shown++
	t.mu.Unlock()

	id := t.sched.Schedule(t.sched.Now().Add(t.duration), t.dismiss)

	t.mu.Lock()
	t.dismissID = id
	t.mu.Unlock()
}

func (t *Toaster) dismiss() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.visible = false
	t.message = ""
	t.dismissID = ""
}

// Current returns the visible toast, if any.
func (t *Toaster) Current() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.message, t.visible
}

// Shown returns how many toasts have been shown.
func (t *Toaster) Shown() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shown
}
