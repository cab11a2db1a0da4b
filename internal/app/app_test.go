package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rook-computer/snapkiosk/internal/loader"
	"github.com/rook-computer/snapkiosk/internal/render"
	"github.com/rook-computer/snapkiosk/internal/state"
)

type fakeWindow struct {
	mu         sync.Mutex
	opened     []string
	openErr    error
	exitOnOpen bool
	exited     chan error
}

func newFakeWindow() *fakeWindow { return &fakeWindow{exited: make(chan error, 1)} }

func (w *fakeWindow) Open(ctx context.Context, url string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.opened = append(w.opened, url)
	if w.exitOnOpen && w.openErr == nil {
		w.exited <- nil
	}
	return w.openErr
}

func (w *fakeWindow) Exited() <-chan error { return w.exited }

func (w *fakeWindow) openedURLs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.opened...)
}

func succeedingHost() loader.WindowHost {
	return loader.WindowHostFunc(func(ctx context.Context, id, url string) <-chan loader.Outcome {
		ch := make(chan loader.Outcome, 1)
		ch <- loader.Outcome{NavigationID: id}
		return ch
	})
}

func silentHost(navigated chan<- struct{}) loader.WindowHost {
	var once sync.Once
	return loader.WindowHostFunc(func(ctx context.Context, id, url string) <-chan loader.Outcome {
		once.Do(func() { close(navigated) })
		return make(chan loader.Outcome)
	})
}

type failingRenderer struct{ render.NoopRenderer }

func (failingRenderer) Start(ctx context.Context) error { return errors.New("no framebuffer") }

type countingRenderer struct {
	render.NoopRenderer
	mu      sync.Mutex
	redraws int
	stopped bool
}

func (r *countingRenderer) RedrawWithState(snap state.State) {
	r.mu.Lock()
	r.redraws++
	r.mu.Unlock()
}

func (r *countingRenderer) Stop() error {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	return nil
}

func newTestApp(t *testing.T, h loader.WindowHost, w *fakeWindow, r render.Renderer) *App {
	t.Helper()
	req, err := loader.NewLoadRequest("http://kiosk.local/board")
	if err != nil {
		t.Fatalf("NewLoadRequest: %v", err)
	}
	a := New(req, state.NewStore(req.TargetURL), r, nil, h, w)
	a.Out = io.Discard
	return a
}

func runAsync(a *App, ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() { done <- a.Start(ctx) }()
	return done
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("Start did not return")
		return nil
	}
}

func TestStart_LoadsThenQuitsWhenWindowCloses(t *testing.T) {
	w := newFakeWindow()
	r := &countingRenderer{}
	a := newTestApp(t, succeedingHost(), w, r)

	done := runAsync(a, context.Background())

	deadline := time.After(5 * time.Second)
	for len(w.openedURLs()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("window never opened")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if got := w.openedURLs(); got[0] != "http://kiosk.local/board" {
		t.Fatalf("window opened %q", got)
	}
	if phase := a.Store.Snapshot().Phase; phase != state.SUCCEEDED {
		t.Fatalf("phase = %v, want %v", phase, state.SUCCEEDED)
	}

	w.exited <- nil
	if err := waitErr(t, done); err != nil {
		t.Fatalf("Start err = %v, want nil", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.stopped {
		t.Fatalf("renderer not stopped before window opened")
	}
	if r.redraws < 2 {
		t.Fatalf("redraws = %d, want initial and final frame", r.redraws)
	}
}

func TestStart_WindowExitErrorIsReturned(t *testing.T) {
	w := newFakeWindow()
	w.exited <- errors.New("browser exit 1")
	a := newTestApp(t, succeedingHost(), w, nil)

	err := waitErr(t, runAsync(a, context.Background()))
	if err == nil || !strings.Contains(err.Error(), "browser exit 1") {
		t.Fatalf("Start err = %v, want browser exit error", err)
	}
}

func TestStart_OpenFailure(t *testing.T) {
	w := newFakeWindow()
	w.openErr = errors.New("chromium: not found")
	a := newTestApp(t, succeedingHost(), w, nil)

	err := waitErr(t, runAsync(a, context.Background()))
	if err == nil || !strings.Contains(err.Error(), "open window") {
		t.Fatalf("Start err = %v, want open window error", err)
	}
}

func TestStart_ExitDuringLoad(t *testing.T) {
	navigated := make(chan struct{})
	w := newFakeWindow()
	a := newTestApp(t, silentHost(navigated), w, nil)

	done := runAsync(a, context.Background())
	<-navigated
	a.Exit(nil)
	a.Exit(errors.New("ignored second exit"))

	if err := waitErr(t, done); err != nil {
		t.Fatalf("Start err = %v, want nil", err)
	}
	if len(w.openedURLs()) != 0 {
		t.Fatalf("window opened after exit")
	}
	if phase := a.Store.Snapshot().Phase; phase != state.STOPPED {
		t.Fatalf("phase = %v, want %v", phase, state.STOPPED)
	}
}

func TestStart_WindowClosedDuringLoadQuits(t *testing.T) {
	navigated := make(chan struct{})
	w := newFakeWindow()
	a := newTestApp(t, silentHost(navigated), w, nil)

	done := runAsync(a, context.Background())
	<-navigated
	w.exited <- nil

	if err := waitErr(t, done); err != nil {
		t.Fatalf("Start err = %v, want nil", err)
	}
	if len(w.openedURLs()) != 0 {
		t.Fatalf("window reopened after it closed")
	}
	if phase := a.Store.Snapshot().Phase; phase != state.STOPPED {
		t.Fatalf("phase = %v, want %v", phase, state.STOPPED)
	}
}

func TestStart_ContextCancelDuringLoad(t *testing.T) {
	navigated := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	a := newTestApp(t, silentHost(navigated), newFakeWindow(), nil)

	done := runAsync(a, ctx)
	<-navigated
	cancel()

	if err := waitErr(t, done); !errors.Is(err, context.Canceled) {
		t.Fatalf("Start err = %v, want context.Canceled", err)
	}
}

func TestStart_RendererFailureStillLoads(t *testing.T) {
	w := newFakeWindow()
	w.exitOnOpen = true
	a := newTestApp(t, succeedingHost(), w, &failingRenderer{})
	var logs bytes.Buffer
	a.Logger = NewFileLogger(&logs)

	if err := waitErr(t, runAsync(a, context.Background())); err != nil {
		t.Fatalf("Start err = %v", err)
	}
	if len(w.openedURLs()) != 1 {
		t.Fatalf("window opened %d times, want 1", len(w.openedURLs()))
	}
	if !strings.Contains(logs.String(), "renderer start error: no framebuffer") {
		t.Fatalf("renderer failure not logged:\n%s", logs.String())
	}
}

func TestStart_RequiresHostAndWindow(t *testing.T) {
	a := newTestApp(t, nil, newFakeWindow(), nil)
	a.Host = nil
	if err := a.Start(context.Background()); err == nil {
		t.Fatalf("expected error without host")
	}
	a = newTestApp(t, succeedingHost(), nil, nil)
	a.Window = nil
	if err := a.Start(context.Background()); err == nil {
		t.Fatalf("expected error without window")
	}
}

func TestFileLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	l := NewFileLogger(&buf)
	l.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	l.Infof("loader", "attempt #%d", 3)
	l.Errorf("web", "boom")

	want := "2024-05-01T12:00:00Z [INFO] loader: attempt #3\n2024-05-01T12:00:00Z [ERROR] web: boom\n"
	if buf.String() != want {
		t.Fatalf("log output = %q, want %q", buf.String(), want)
	}
}
