// Package browser models the page surface the session talks to: history and
// URL, clipboard, toast notifications, cursor and popup placement. The
// in-memory implementations here back the CLI host and the tests.
package browser

import (
	"fmt"
	"net/url"
	"sync"
)

// History is the navigation surface: the current URL's query, push-style
// updates, and back/forward notifications.
type History interface {
	// Query returns a query parameter of the current entry.
	Query(key string) (string, bool)
	// PushQuery adds a history entry with key set to value, without reloading.
	PushQuery(key, value string)
	// OnPopState subscribes to back/forward navigation.
	OnPopState(fn func()) (off func())
}

// MemoryHistory is a session history stack.
type MemoryHistory struct {
	mu        sync.Mutex
	entries   []*url.URL
	index     int
	listeners map[int]func()
	nextID    int
}

var _ History = (*MemoryHistory)(nil)

// NewMemoryHistory starts a history at rawURL.
func NewMemoryHistory(rawURL string) (*MemoryHistory, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse initial url: %w", err)
	}
	return &MemoryHistory{
		entries:   []*url.URL{u},
		listeners: make(map[int]func()),
	}, nil
}

// Query implements History.
func (h *MemoryHistory) Query(key string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	values := h.entries[h.index].Query()
	if !values.Has(key) {
		return "", false
	}
	return values.Get(key), true
}

// PushQuery implements History. Forward entries are discarded.
func (h *MemoryHistory) PushQuery(key, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := *h.entries[h.index]
	q := next.Query()
	q.Set(key, value)
	next.RawQuery = q.Encode()
	h.entries = append(h.entries[:h.index+1], &next)
	h.index++
}

// OnPopState implements History.
func (h *MemoryHistory) OnPopState(fn func()) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// Back moves one entry back and fires popstate. It reports false at the
// oldest entry.
func (h *MemoryHistory) Back() bool {
	return h.Go(-1)
}

// Forward moves one entry forward and fires popstate.
func (h *MemoryHistory) Forward() bool {
	return h.Go(1)
}

// Go moves delta entries and fires popstate. Out-of-range moves do nothing.
func (h *MemoryHistory) Go(delta int) bool {
	h.mu.Lock()
	target := h.index + delta
	if delta == 0 || target < 0 || target >= len(h.entries) {
		h.mu.Unlock()
		return false
	}
	h.index = target
	listeners := make([]func(), 0, len(h.listeners))
	for id := 0; id < h.nextID; id++ {
		if fn, ok := h.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
	return true
}

// URL returns the current entry.
func (h *MemoryHistory) URL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index].String()
}

// Len returns the number of entries.
func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
