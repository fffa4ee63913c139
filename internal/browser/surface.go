package browser

import (
	"sync"

	"github.com/signalsfoundry/sites-fouilles-map/model"
)

// Cursor styles used on the map canvas.
const (
	CursorDefault = ""
	CursorPointer = "pointer"
)

// Cursor sets the map canvas cursor.
type Cursor interface {
	SetCursor(style string)
}

// MemoryCursor records the cursor style.
type MemoryCursor struct {
	mu    sync.Mutex
	style string
}

// SetCursor implements Cursor.
func (c *MemoryCursor) SetCursor(style string) {
	c.mu.Lock()
	c.style = style
	c.mu.Unlock()
}

// Style returns the current style.
func (c *MemoryCursor) Style() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.style
}

// PopupRenderer places HTML popups on the map.
type PopupRenderer interface {
	// Open shows a popup anchored at coord.
	Open(coord model.Coordinate, html string)
	// Remove takes the popup down, if any.
	Remove()
}

// Popup is a popup on screen.
type Popup struct {
	Anchor model.Coordinate
	HTML   string
}

// MemoryPopups renders into memory and keeps at most one popup.
type MemoryPopups struct {
	mu      sync.Mutex
	current *Popup
	opened  int
}

var _ PopupRenderer = (*MemoryPopups)(nil)

// Open implements PopupRenderer.
func (p *MemoryPopups) Open(coord model.Coordinate, html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = &Popup{Anchor: coord, HTML: html}
	p.opened++
}

// Remove implements PopupRenderer.
func (p *MemoryPopups) Remove() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = nil
}

// Current returns the popup on screen.
func (p *MemoryPopups) Current() (Popup, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return Popup{}, false
	}
	return *p.current, true
}

// Opened returns how many popups were opened.
func (p *MemoryPopups) Opened() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened
}
