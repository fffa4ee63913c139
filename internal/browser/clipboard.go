package browser

import (
	"errors"
	"sync"
)

// ErrClipboardUnavailable is returned when the page may not write the clipboard.
var ErrClipboardUnavailable = errors.New("clipboard unavailable")

// Clipboard writes plain text.
type Clipboard interface {
	WriteText(text string) error
}

// MemoryClipboard records writes.
type MemoryClipboard struct {
	mu     sync.Mutex
	text   string
	writes int
}

// WriteText implements Clipboard.
func (c *MemoryClipboard) WriteText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	c.writes++
	return nil
}

// Text returns the last written text.
func (c *MemoryClipboard) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// Writes returns the number of writes.
func (c *MemoryClipboard) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

// FailingClipboard rejects every write.
type FailingClipboard struct {
	Err error
}

// WriteText implements Clipboard.
func (c FailingClipboard) WriteText(string) error {
	if c.Err != nil {
		return c.Err
	}
	return ErrClipboardUnavailable
}
