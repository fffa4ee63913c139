package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/signalsfoundry/sites-fouilles-map/internal/browser"
	"github.com/signalsfoundry/sites-fouilles-map/internal/eventloop"
	"github.com/signalsfoundry/sites-fouilles-map/model"
)

// consoleSurface stands in for the page: popups and toasts are echoed to the
// console and kept in memory for /debug/session.
type consoleSurface struct {
	mu  sync.Mutex
	out io.Writer

	popups    *browser.MemoryPopups
	toaster   *browser.Toaster
	clipboard *browser.MemoryClipboard
	cursor    *browser.MemoryCursor
}

var (
	_ browser.PopupRenderer = (*consoleSurface)(nil)
	_ browser.Notifier      = (*consoleSurface)(nil)
)

func newConsoleSurface(out io.Writer, sched eventloop.Scheduler) *consoleSurface {
	return &consoleSurface{
		out:       out,
		popups:    &browser.MemoryPopups{},
		toaster:   browser.NewToaster(sched, browser.ToastDuration),
		clipboard: &browser.MemoryClipboard{},
		cursor:    &browser.MemoryCursor{},
	}
}

func (s *consoleSurface) Open(coord model.Coordinate, html string) {
	s.popups.Open(coord, html)
	s.printf("popup at %s (%d bytes of html)\n", coord.ClipboardText(), len(html))
}

func (s *consoleSurface) Remove() {
	if _, ok := s.popups.Current(); ok {
		s.printf("popup closed\n")
	}
	s.popups.Remove()
}

func (s *consoleSurface) Show(message string) {
	s.toaster.Show(message)
	s.printf("toast: %s\n", message)
}

func (s *consoleSurface) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}
