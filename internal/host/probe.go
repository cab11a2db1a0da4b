package host

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rook-computer/snapkiosk/internal/loader"
)

const (
	defaultProbeTimeout = 10 * time.Second
	maxDrainBytes       = 1 << 20
)

type Logger interface {
	Infof(component string, format string, args ...interface{})
	Errorf(component string, format string, args ...interface{})
}

// ProbeHost loads the target with a plain HTTP GET. A page counts as loaded
// when the server answers with a status below 400.
type ProbeHost struct {
	Client  *http.Client
	Timeout time.Duration
	Logger  Logger
}

func NewProbeHost(timeout time.Duration, logger Logger) *ProbeHost {
	return &ProbeHost{Timeout: timeout, Logger: logger}
}

// Navigate starts the request in the background and returns at once.
func (h *ProbeHost) Navigate(ctx context.Context, id string, url string) <-chan loader.Outcome {
	results := make(chan loader.Outcome, 1)
	go func() {
		results <- loader.Outcome{NavigationID: id, Err: h.fetch(ctx, url)}
	}()
	return results
}

func (h *ProbeHost) fetch(ctx context.Context, url string) error {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return loader.Failed(url, err)
	}
	req.Header.Set("User-Agent", "snapkiosk")
	req.Header.Set("Cache-Control", "no-cache")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return loader.Failed(url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if h.Logger != nil {
		h.Logger.Infof("probe", "GET %s -> %d", url, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return loader.Failed(url, fmt.Errorf("http status %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}
	return nil
}
