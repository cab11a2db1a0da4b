package buttons

import (
	"context"
	"sync"

	"github.com/rook-computer/snapkiosk/internal/system"
)

type Event string

const (
	// Exit asks the kiosk to quit, the same as closing the last window.
	Exit Event = "exit"
)

type Buttons interface {
	Start(ctx context.Context) error
	Stop() error
	Events() <-chan Event
}

type NoopButtons struct {
	once sync.Once
	ch   chan Event
}

func NewNoopButtons() *NoopButtons { return &NoopButtons{ch: make(chan Event)} }

func (n *NoopButtons) Start(ctx context.Context) error { return nil }
func (n *NoopButtons) Stop() error                     { n.once.Do(func() { close(n.ch) }); return nil }
func (n *NoopButtons) Events() <-chan Event            { return n.ch }

// ExitKey emits Exit when a keyboard key (F4 by default) is pressed on any
// evdev device.
type ExitKey struct {
	Key    uint16
	Logger system.Logger

	// watch is system.WatchExitKey; tests swap it.
	watch func(ctx context.Context, logger system.Logger, key uint16, onExit func())

	once   sync.Once
	mu     sync.Mutex
	ch     chan Event
	closed bool
	cancel context.CancelFunc
}

func NewExitKey(logger system.Logger) *ExitKey {
	return &ExitKey{Key: system.KeyF4, Logger: logger}
}

func (k *ExitKey) init() { k.once.Do(func() { k.ch = make(chan Event, 1) }) }

func (k *ExitKey) Start(ctx context.Context) error {
	k.init()
	ctx, k.cancel = context.WithCancel(ctx)
	watch := k.watch
	if watch == nil {
		watch = system.WatchExitKey
	}
	watch(ctx, k.Logger, k.Key, k.emit)
	return nil
}

func (k *ExitKey) emit() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return
	}
	select {
	case k.ch <- Exit:
	default:
	}
}

// Stop ends the watch and closes Events.
func (k *ExitKey) Stop() error {
	if k.cancel != nil {
		k.cancel()
	}
	k.init()
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.closed {
		k.closed = true
		close(k.ch)
	}
	return nil
}

func (k *ExitKey) Events() <-chan Event {
	k.init()
	return k.ch
}
