package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rook-computer/snapkiosk/internal/app/screens"
	"github.com/rook-computer/snapkiosk/internal/host"
	"github.com/rook-computer/snapkiosk/internal/loader"
	"github.com/rook-computer/snapkiosk/internal/render"
	"github.com/rook-computer/snapkiosk/internal/state"
	"github.com/rook-computer/snapkiosk/internal/system"
	"github.com/rook-computer/snapkiosk/internal/web"
)

type App struct {
	Request loader.LoadRequest
	Store   *state.Store
	Render  render.Renderer
	Web     web.Server
	Host    loader.WindowHost
	Window  host.Window
	Logger  Logger

	// Out receives the sequencer's attempt lines. Defaults to os.Stdout.
	Out io.Writer
	// TakeConsole switches the VT to graphics mode while the splash is shown.
	TakeConsole bool

	exitOnce atomic.Bool
	exitCh   chan error
}

func New(req loader.LoadRequest, store *state.Store, renderer render.Renderer, webServer web.Server, windowHost loader.WindowHost, window host.Window) *App {
	return &App{
		Request: req,
		Store:   store,
		Render:  renderer,
		Web:     webServer,
		Host:    windowHost,
		Window:  window,
		Logger:  NoopLogger{},
		exitCh:  make(chan error, 1),
	}
}

// Exit requests the app to stop running.
// It is safe to call from any goroutine, any number of times; only the first call counts.
func (app *App) Exit(err error) {
	if app.exitCh == nil {
		return
	}
	if !app.exitOnce.CompareAndSwap(false, true) {
		return
	}
	select {
	case app.exitCh <- err:
	default:
	}
}

// Start runs the kiosk until the window closes, Exit is called, or ctx ends.
// It loads the page (retrying forever), then hands the display to the window.
// On Exit it returns the error passed to Exit.
func (app *App) Start(ctx context.Context) error {
	if app.exitCh == nil {
		app.exitCh = make(chan error, 1)
	}
	if app.Store == nil {
		app.Store = state.NewStore(app.Request.TargetURL)
	}
	if app.Render == nil {
		app.Render = &render.NoopRenderer{}
	}
	if app.Web == nil {
		app.Web = &web.NoopServer{}
	}
	if app.Logger == nil {
		app.Logger = NoopLogger{}
	}
	if app.Host == nil {
		return errors.New("no window host configured")
	}
	if app.Window == nil {
		return errors.New("no window configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var exitRequested bool
	var exitErr error
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case exitErr = <-app.exitCh:
			exitRequested = true
			cancel()
		case <-runCtx.Done():
		}
	}()

	err := app.run(runCtx)
	cancel()
	<-watcherDone
	if exitRequested {
		app.Logger.Infof("app", "exit requested: %v", exitErr)
		return exitErr
	}
	return err
}

func (app *App) run(ctx context.Context) error {
	if err := app.Web.Start(ctx); err != nil {
		app.Logger.Errorf("app", "status api start error: %v", err)
	}
	defer func() { _ = app.Web.Stop() }()

	stopSplash := app.showSplash(ctx)
	closed, err := app.load(ctx)
	stopSplash()
	if closed != nil {
		// All windows closed before the page showed: the app quits.
		app.Logger.Infof("app", "window closed during load: %v", closed.err)
		return closed.err
	}
	if err != nil {
		return err
	}

	if err := app.Window.Open(ctx, app.Request.TargetURL); err != nil {
		return fmt.Errorf("open window: %w", err)
	}
	app.Logger.Infof("app", "window open on %s", app.Request.TargetURL)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-app.Window.Exited():
		// All windows closed: the app quits.
		app.Logger.Infof("app", "window closed: %v", err)
		return err
	}
}

type windowExit struct{ err error }

// load runs the sequencer until the page loads, ctx ends, or the window
// closes. A non-nil windowExit means the window closed first.
func (app *App) load(ctx context.Context) (*windowExit, error) {
	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var closed *windowExit
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case err := <-app.Window.Exited():
			closed = &windowExit{err: err}
			cancel()
		case <-loadCtx.Done():
		}
	}()

	seq := &loader.Sequencer{Logger: app.Logger, Progress: app.Store, Out: app.out()}
	err := seq.Run(loadCtx, app.Request, app.Host)
	cancel()
	<-watchDone
	return closed, err
}

// showSplash starts the renderer with the loading screen and returns a func
// that draws the final frame and releases the display. Renderer failures are
// logged; the page still loads without a splash.
func (app *App) showSplash(ctx context.Context) (stop func()) {
	if err := app.Render.Start(ctx); err != nil {
		app.Logger.Errorf("app", "renderer start error: %v", err)
		return func() {}
	}

	restoreConsole := func() {}
	if app.TakeConsole {
		restoreConsole = system.TakeConsole(app.Logger)
	}

	screen := screens.NewLoadingScreen(app.Logger)
	if err := screen.Start(ctx); err != nil {
		app.Logger.Errorf("app", "loading screen start error: %v", err)
	}
	app.Render.SetScreen(screen)
	app.Render.RedrawWithState(app.Store.Snapshot())

	loopCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.Render.RunLoop(loopCtx, app.Store)
	}()

	return func() {
		cancel()
		wg.Wait()
		app.Render.RedrawWithState(app.Store.Snapshot())
		_ = screen.Stop()
		if err := app.Render.Stop(); err != nil {
			app.Logger.Errorf("app", "renderer stop error: %v", err)
		}
		restoreConsole()
	}
}

func (app *App) out() io.Writer {
	if app.Out != nil {
		return app.Out
	}
	return os.Stdout
}
