package loader

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrLoadFailed matches every navigation failure. Failures are not classified.
var ErrLoadFailed = errors.New("load failed")

// ErrInvalidURL is returned by NewLoadRequest for an empty or unusable target.
var ErrInvalidURL = errors.New("invalid target url")

// LoadRequest is the single immutable target of a Sequencer run.
type LoadRequest struct {
	TargetURL string
}

// NewLoadRequest validates target and returns a request for it.
// Only absolute http and https URLs are accepted.
func NewLoadRequest(target string) (LoadRequest, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return LoadRequest{}, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	parsed, err := url.Parse(target)
	if err != nil {
		return LoadRequest{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return LoadRequest{}, fmt.Errorf("%w: scheme must be http or https (got %q)", ErrInvalidURL, parsed.Scheme)
	}
	if parsed.Host == "" {
		return LoadRequest{}, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return LoadRequest{TargetURL: target}, nil
}

// LoadError describes one failed navigation.
type LoadError struct {
	URL     string
	Attempt int
	Reason  error
}

func (e *LoadError) Error() string {
	if e.Attempt > 0 {
		return fmt.Sprintf("load %s (attempt #%d): %v", e.URL, e.Attempt, e.Reason)
	}
	return fmt.Sprintf("load %s: %v", e.URL, e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Reason }

func (e *LoadError) Is(target error) bool { return target == ErrLoadFailed }

// Failed wraps reason as a LoadError for url.
func Failed(url string, reason error) *LoadError {
	if reason == nil {
		reason = errors.New("unknown error")
	}
	return &LoadError{URL: url, Reason: reason}
}

// Outcome is the result of one navigation. A nil Err means the page finished loading.
type Outcome struct {
	NavigationID string
	Err          error
}

func (o Outcome) Succeeded() bool { return o.Err == nil }

// WindowHost is the window that actually displays the page.
//
// Navigate must return without waiting for the load to finish. The returned
// channel delivers exactly one Outcome for this navigation, tagged with id.
type WindowHost interface {
	Navigate(ctx context.Context, id string, url string) <-chan Outcome
}

// WindowHostFunc adapts a function to WindowHost.
type WindowHostFunc func(ctx context.Context, id string, url string) <-chan Outcome

func (f WindowHostFunc) Navigate(ctx context.Context, id string, url string) <-chan Outcome {
	return f(ctx, id, url)
}
