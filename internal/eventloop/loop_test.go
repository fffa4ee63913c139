package eventloop

import (
	"context"
	"testing"
	"time"

	"github.com/signalsfoundry/sites-fouilles-map/internal/logging"
)

func TestLoopRunsCallbacksInOrder(t *testing.T) {
	loop := NewLoop(logging.Noop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	var order []int
	loop.Post(func() { order = append(order, 1) })
	loop.Post(func() {
		order = append(order, 2)
		// Follow-ups posted from the loop run after already-queued work.
		loop.Post(func() {
			order = append(order, 4)
			close(done)
		})
	})
	loop.Post(func() { order = append(order, 3) })

	go func() { _ = loop.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("loop did not drain")
	}
	want := []int{1, 2, 3, 4}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestLoopSurvivesPanickingCallback(t *testing.T) {
	loop := NewLoop(logging.Noop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	loop.Post(func() { panic("boom") })
	loop.Post(func() { close(done) })
	go func() { _ = loop.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("loop stopped after panic")
	}
}

func TestLoopRunReturnsOnCancel(t *testing.T) {
	loop := NewLoop(nil)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Fatalf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return")
	}
}

func TestInlineRunsImmediately(t *testing.T) {
	var ran []string
	var ex Executor = Inline{}
	ex.Spawn(func() {
		ran = append(ran, "work")
		ex.Post(func() { ran = append(ran, "continuation") })
	})
	if len(ran) != 2 || ran[0] != "work" || ran[1] != "continuation" {
		t.Fatalf("ran = %v", ran)
	}
}
