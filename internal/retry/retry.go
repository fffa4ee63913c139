// Package retry re-runs a probe each time a readiness signal fires, up to a
// fixed number of signals. There is no timer: an attempt waits for the signal
// and nothing else.
package retry

import "github.com/signalsfoundry/sites-fouilles-map/model"

// Signal is a recurring readiness event such as "visible tiles loaded".
type Signal interface {
	// Once calls fn on the next occurrence only. The returned function
	// detaches fn if it has not fired yet.
	Once(fn func()) (cancel func())
}

// SignalFunc adapts a function to Signal.
type SignalFunc func(fn func()) (cancel func())

// Once implements Signal.
func (f SignalFunc) Once(fn func()) func() { return f(fn) }

// Attempt is one in-flight AwaitThen call.
type Attempt struct {
	budget   model.RetryBudget
	detach   func()
	finished bool
}

// AwaitThen runs probe now and, while it reports no value, again after each of
// the next maxAttempts occurrences of signal. done is called exactly once: with
// the first value found, or with the zero value and false once the budget is
// spent. A cancelled attempt never calls done.
func AwaitThen[T any](probe func() (T, bool), signal Signal, maxAttempts int, done func(T, bool)) *Attempt {
	a := &Attempt{budget: model.RetryBudget{Allowed: maxAttempts}}
	if v, ok := probe(); ok {
		a.finish()
		done(v, true)
		return a
	}

	var wait func()
	wait = func() {
		if a.finished {
			return
		}
		if a.budget.Exhausted() {
			a.finish()
			var zero T
			done(zero, false)
			return
		}
		a.detach = signal.Once(func() {
			a.detach = nil
			if a.finished {
				return
			}
			a.budget.Made++
			if v, ok := probe(); ok {
				a.finish()
				done(v, true)
				return
			}
			wait()
		})
	}
	wait()
	return a
}

// Cancel stops the attempt and detaches its pending listener. It is safe to
// call more than once and after completion.
func (a *Attempt) Cancel() {
	if a == nil {
		return
	}
	a.finish()
}

// Done reports whether the attempt has completed or been cancelled.
func (a *Attempt) Done() bool {
	return a == nil || a.finished
}

// Budget reports attempts made against attempts allowed.
func (a *Attempt) Budget() model.RetryBudget {
	if a == nil {
		return model.RetryBudget{}
	}
	return a.budget
}

func (a *Attempt) finish() {
	a.finished = true
	if a.detach != nil {
		a.detach()
		a.detach = nil
	}
}
