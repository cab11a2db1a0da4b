package host

import (
	"context"
	"sync"
)

// Window is the full-screen surface that displays the page once it loads.
type Window interface {
	Open(ctx context.Context, url string) error
	// Exited delivers the window's exit error (nil on a clean close) and is then closed.
	Exited() <-chan error
}

// Headless stands in for a window when nothing should be shown, as in the simulator.
// It stays open until the context passed to Open ends.
type Headless struct {
	once   sync.Once
	exited chan error
}

func (h *Headless) init() { h.once.Do(func() { h.exited = make(chan error, 1) }) }

func (h *Headless) Open(ctx context.Context, url string) error {
	h.init()
	go func() {
		<-ctx.Done()
		h.exited <- nil
		close(h.exited)
	}()
	return nil
}

func (h *Headless) Exited() <-chan error {
	h.init()
	return h.exited
}
