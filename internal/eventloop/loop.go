// Package eventloop serialises session work onto a single logical thread.
//
// Every pointer event, frame tick, history navigation and fetch completion is
// delivered through an Executor. Components never lock session state; they rely
// on Post running callbacks one at a time, in order.
package eventloop

import (
	"context"
	"fmt"
	"sync"

	"github.com/signalsfoundry/sites-fouilles-map/internal/logging"
)

// Executor runs session callbacks.
type Executor interface {
	// Post queues fn to run on the session thread.
	Post(fn func())
	// Spawn runs blocking work (HTTP, filter queries) off the session thread.
	// The work must hand results back with Post.
	Spawn(fn func())
}

// Loop is the production Executor: a single goroutine draining an unbounded
// FIFO queue.
type Loop struct {
	log logging.Logger

	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
}

// NewLoop constructs an idle loop. Call Run to start draining.
func NewLoop(log logging.Logger) *Loop {
	if log == nil {
		log = logging.Noop()
	}
	return &Loop{
		log:  log,
		wake: make(chan struct{}, 1),
	}
}

// Post queues fn. It never blocks, so callbacks running on the loop may post
// follow-ups safely.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Spawn starts fn on its own goroutine.
func (l *Loop) Spawn(fn func()) {
	if fn == nil {
		return
	}
	go fn()
}

// Run drains the queue until ctx is cancelled. A panicking callback is logged
// and the loop keeps going.
func (l *Loop) Run(ctx context.Context) error {
	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			l.runSafely(ctx, fn)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Len reports the number of queued callbacks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil, false
	}
	fn := l.pending[0]
	l.pending[0] = nil
	l.pending = l.pending[1:]
	return fn, true
}

func (l *Loop) runSafely(ctx context.Context, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error(ctx, "session callback panicked", logging.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}

// Inline runs everything synchronously on the caller's goroutine. Used by tests
// and by deterministic replays where ordering must be exact.
type Inline struct{}

// Post runs fn immediately.
func (Inline) Post(fn func()) {
	if fn != nil {
		fn()
	}
}

// Spawn runs fn immediately.
func (Inline) Spawn(fn func()) {
	if fn != nil {
		fn()
	}
}
