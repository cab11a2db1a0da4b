package render

import (
	"context"
	"image"
	"image/draw"
	"sync"
	"sync/atomic"
	"time"

	fb "github.com/gonutz/framebuffer"
	"github.com/rook-computer/snapkiosk/internal/state"
	xdraw "golang.org/x/image/draw"
)

const defaultFrameInterval = time.Second / 10

// FBRenderer renders to the Linux framebuffer using an offscreen logical canvas.
type FBRenderer struct {
	Device        string
	FrameInterval time.Duration
	Logger        Logger
	Debug         bool

	fbDev   *fb.Device
	canvas  *Canvas
	frame   *image.RGBA
	running atomic.Bool

	mu      sync.Mutex
	current Screen
}

func NewFBRenderer(device string) *FBRenderer { return &FBRenderer{Device: device} }

func (r *FBRenderer) Start(ctx context.Context) error {
	device := r.Device
	if device == "" {
		device = "/dev/fb0"
	}
	dev, err := fb.Open(device)
	if err != nil {
		return err
	}
	r.fbDev = dev
	bounds := dev.Bounds()
	if r.Logger != nil {
		r.Logger.Infof("fb", "framebuffer %s open, bounds=%dx%d", device, bounds.Dx(), bounds.Dy())
	}

	r.canvas = NewCanvas(r.Logger)
	r.frame = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	r.running.Store(true)
	return nil
}

func (r *FBRenderer) Stop() error {
	if !r.running.CompareAndSwap(true, false) {
		return nil
	}
	if r.fbDev != nil {
		r.fbDev.Close()
	}
	return nil
}

// SetScreen sets the current logical screen to be drawn.
func (r *FBRenderer) SetScreen(screen Screen) {
	r.mu.Lock()
	r.current = screen
	r.mu.Unlock()
}

func (r *FBRenderer) screen() Screen {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *FBRenderer) RedrawWithState(snap state.State) {
	screen := r.screen()
	if !r.running.Load() || screen == nil || r.fbDev == nil {
		return
	}
	r.canvas.FillBackground()
	screen.Draw(r.canvas, snap)
	r.blit()
	if r.Debug && r.Logger != nil {
		r.Logger.Infof("fb", "redraw done, phase=%s attempt=%d", snap.Phase, snap.Attempt)
	}
}

// RunLoop redraws from store until the context is done.
func (r *FBRenderer) RunLoop(ctx context.Context, store *state.Store) {
	interval := r.FrameInterval
	if interval <= 0 {
		interval = defaultFrameInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RedrawWithState(store.Snapshot())
		}
	}
}

// blit scales the logical canvas to the framebuffer resolution and copies it out.
func (r *FBRenderer) blit() {
	xdraw.NearestNeighbor.Scale(r.frame, r.frame.Bounds(), r.canvas.Image(), r.canvas.Image().Bounds(), xdraw.Src, nil)
	draw.Draw(r.fbDev, r.fbDev.Bounds(), r.frame, image.Point{}, draw.Src)
}
