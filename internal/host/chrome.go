package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rook-computer/snapkiosk/internal/loader"
	"github.com/zserge/lorca"
)

const (
	defaultLoadTimeout  = 10 * time.Second
	defaultPollInterval = 200 * time.Millisecond
	chromeErrorScheme   = "chrome-error://"
)

var errWindowClosed = errors.New("window closed")

// Marks the current document so a fresh one can be told apart after Load.
const markScript = `window.__snapkioskStale = true`

const pageStateScript = `JSON.stringify({
	stale: window.__snapkioskStale === true,
	href: location.href,
	ready: document.readyState,
	status: ((performance.getEntriesByType("navigation")[0] || {}).responseStatus || 0)
})`

// page is the part of a lorca.UI the kiosk drives.
type page interface {
	Load(url string) error
	Eval(js string) (string, error)
	Done() <-chan struct{}
	Close() error
}

type pageState struct {
	Stale  bool   `json:"stale"`
	Href   string `json:"href"`
	Ready  string `json:"ready"`
	Status int    `json:"status"`
}

// ChromeWindow is a kiosk Chrome window driven over the DevTools protocol.
// It is both the loader's WindowHost and the app's Window: a page loaded by
// Navigate stays on screen, and Open only reloads when the URL differs.
//
// Chrome is started on the first Navigate. A failed start counts as a failed
// load, so a missing display is retried like an unreachable page.
type ChromeWindow struct {
	// Command overrides the Chrome executable lorca would locate.
	Command      string
	Args         []string
	Width        int
	Height       int
	ProfileDir   string
	LoadTimeout  time.Duration
	PollInterval time.Duration
	Logger       Logger

	// launch starts Chrome; tests swap it.
	launch func(w *ChromeWindow) (page, error)

	mu     sync.Mutex
	page   page
	loaded string
	exited chan error
}

func NewChromeWindow(width, height int, args []string, logger Logger) *ChromeWindow {
	return &ChromeWindow{Width: width, Height: height, Args: args, Logger: logger, exited: make(chan error, 1)}
}

// Navigate loads url and reports once Chrome has finished loading it, shown an
// error page, or the load timeout has passed.
func (w *ChromeWindow) Navigate(ctx context.Context, id string, url string) <-chan loader.Outcome {
	results := make(chan loader.Outcome, 1)
	go func() {
		results <- loader.Outcome{NavigationID: id, Err: w.load(ctx, url)}
	}()
	return results
}

func (w *ChromeWindow) load(ctx context.Context, url string) error {
	p, err := w.ensurePage()
	if err != nil {
		return loader.Failed(url, err)
	}
	w.setLoaded("")

	// The very first document may not take the mark; pageState then falls
	// back to rejecting blank and data: documents.
	_, _ = p.Eval(markScript)
	if err := p.Load(url); err != nil {
		return loader.Failed(url, err)
	}

	timeout := w.LoadTimeout
	if timeout <= 0 {
		timeout = defaultLoadTimeout
	}
	interval := w.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return loader.Failed(url, ctx.Err())
		case <-p.Done():
			return loader.Failed(url, errWindowClosed)
		case <-deadline.C:
			return loader.Failed(url, fmt.Errorf("not loaded after %s", timeout))
		case <-ticker.C:
		}

		st, err := readPageState(p)
		if err != nil || st.Stale || st.Href == "" || st.Href == "about:blank" || strings.HasPrefix(st.Href, "data:") {
			continue
		}
		if strings.HasPrefix(st.Href, chromeErrorScheme) {
			return loader.Failed(url, errors.New("chrome showed its error page"))
		}
		if st.Ready != "complete" {
			continue
		}
		if st.Status >= 400 {
			return loader.Failed(url, fmt.Errorf("http status %d", st.Status))
		}
		if w.Logger != nil {
			w.Logger.Infof("chrome", "loaded %s (status %d)", st.Href, st.Status)
		}
		w.setLoaded(url)
		return nil
	}
}

func readPageState(p page) (pageState, error) {
	raw, err := p.Eval(pageStateScript)
	if err != nil {
		return pageState{}, err
	}
	var st pageState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return pageState{}, fmt.Errorf("decode page state: %w", err)
	}
	return st, nil
}

func (w *ChromeWindow) ensurePage() (page, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.page != nil {
		return w.page, nil
	}
	if w.exited == nil {
		w.exited = make(chan error, 1)
	}

	launch := w.launch
	if launch == nil {
		launch = launchLorca
	}
	p, err := launch(w)
	if err != nil {
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	w.page = p
	if w.Logger != nil {
		w.Logger.Infof("chrome", "window started %dx%d", w.Width, w.Height)
	}

	exited := w.exited
	go func() {
		<-p.Done()
		if w.Logger != nil {
			w.Logger.Infof("chrome", "window closed")
		}
		exited <- nil
		close(exited)
	}()
	return p, nil
}

func (w *ChromeWindow) setLoaded(url string) {
	w.mu.Lock()
	w.loaded = url
	w.mu.Unlock()
}

// Open keeps the page Navigate loaded, or loads url if it differs.
func (w *ChromeWindow) Open(ctx context.Context, url string) error {
	w.mu.Lock()
	loaded := w.loaded
	w.mu.Unlock()
	if loaded == url {
		return nil
	}
	p, err := w.ensurePage()
	if err != nil {
		return err
	}
	return p.Load(url)
}

func (w *ChromeWindow) Exited() <-chan error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.exited == nil {
		w.exited = make(chan error, 1)
	}
	return w.exited
}

// Close shuts Chrome down if it was started.
func (w *ChromeWindow) Close() error {
	w.mu.Lock()
	p := w.page
	w.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Close()
}

func launchLorca(w *ChromeWindow) (page, error) {
	if w.Command != "" {
		command := w.Command
		lorca.ChromeExecutable = func() string { return command }
	}
	ui, err := lorca.New("", w.ProfileDir, w.Width, w.Height, w.Args...)
	if err != nil {
		return nil, err
	}
	return lorcaPage{ui: ui}, nil
}

type lorcaPage struct{ ui lorca.UI }

func (p lorcaPage) Load(url string) error { return p.ui.Load(url) }
func (p lorcaPage) Done() <-chan struct{} { return p.ui.Done() }
func (p lorcaPage) Close() error          { return p.ui.Close() }

func (p lorcaPage) Eval(js string) (string, error) {
	v := p.ui.Eval(js)
	if err := v.Err(); err != nil {
		return "", err
	}
	return v.String(), nil
}
