package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

// RetryDelay is the fixed pause between a failed navigation and the next one.
const RetryDelay = 2000 * time.Millisecond

var errNoOutcome = errors.New("window host closed the outcome channel without a result")

type Logger interface {
	Infof(component string, format string, args ...interface{})
	Errorf(component string, format string, args ...interface{})
}

// Progress receives the sequencer's state transitions. *state.Store implements it.
type Progress interface {
	BeginAttempt(attempt int, navigationID string)
	AttemptFailed(attempt int, err error, retryAt time.Time)
	Loaded(attempt int)
	Stopped(err error)
}

// Sequencer drives navigation attempts against one URL until one succeeds.
// It never gives up on its own; only ctx ends a run early.
//
// The zero value is ready to use.
type Sequencer struct {
	Logger   Logger
	Progress Progress

	// Out receives the per-attempt console lines. Defaults to os.Stdout.
	Out io.Writer

	// Test hooks.
	newID func() string
	after func(d time.Duration) <-chan time.Time
	now   func() time.Time
}

// Run navigates host to req.TargetURL, waiting RetryDelay after every failure,
// and returns nil once a navigation succeeds. At most one navigation is
// outstanding at any time. If ctx ends first, Run returns ctx.Err().
func (s *Sequencer) Run(ctx context.Context, req LoadRequest, host WindowHost) error {
	if host == nil {
		return errors.New("loader: no window host configured")
	}
	if req.TargetURL == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	target := req.TargetURL

	for attempt := 1; ; attempt++ {
		id := s.nextID()
		s.printf("Attempting to load %s - Attempt #%d", target, attempt)
		s.info("navigate id=%s url=%s attempt=%d", id, target, attempt)
		if s.Progress != nil {
			s.Progress.BeginAttempt(attempt, id)
		}

		outcome, err := s.await(ctx, host, id, target)
		if err != nil {
			return s.stop(err)
		}

		if outcome.Succeeded() {
			s.printf("Page loaded successfully")
			s.info("loaded id=%s after %d attempt(s)", id, attempt)
			if s.Progress != nil {
				s.Progress.Loaded(attempt)
			}
			return nil
		}

		loadErr := asLoadError(outcome.Err, target, attempt)
		s.printf("Failed to load the page - Attempt #%d: %v", attempt, loadErr.Reason)
		s.printf("Retrying in %g seconds...", RetryDelay.Seconds())
		if s.Logger != nil {
			s.Logger.Errorf("loader", "%v", loadErr)
		}
		if s.Progress != nil {
			s.Progress.AttemptFailed(attempt, loadErr, s.clock().Add(RetryDelay))
		}

		select {
		case <-ctx.Done():
			return s.stop(ctx.Err())
		case <-s.wait(RetryDelay):
		}
	}
}

// await issues one navigation and blocks until its own outcome arrives.
// Outcomes tagged with another navigation id are discarded.
func (s *Sequencer) await(ctx context.Context, host WindowHost, id, target string) (Outcome, error) {
	results := host.Navigate(ctx, id, target)
	if results == nil {
		return Outcome{NavigationID: id, Err: Failed(target, errNoOutcome)}, nil
	}
	for {
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case outcome, ok := <-results:
			if !ok {
				return Outcome{NavigationID: id, Err: Failed(target, errNoOutcome)}, nil
			}
			if outcome.NavigationID != "" && outcome.NavigationID != id {
				s.info("dropping stale outcome id=%s while awaiting id=%s", outcome.NavigationID, id)
				continue
			}
			return outcome, nil
		}
	}
}

func (s *Sequencer) stop(err error) error {
	s.info("stopped: %v", err)
	if s.Progress != nil {
		s.Progress.Stopped(err)
	}
	return err
}

func asLoadError(err error, target string, attempt int) *LoadError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		out := *loadErr
		if out.URL == "" {
			out.URL = target
		}
		if out.Attempt == 0 {
			out.Attempt = attempt
		}
		return &out
	}
	return &LoadError{URL: target, Attempt: attempt, Reason: err}
}

func (s *Sequencer) printf(format string, args ...interface{}) {
	out := s.Out
	if out == nil {
		out = os.Stdout
	}
	_, _ = fmt.Fprintf(out, format+"\n", args...)
}

func (s *Sequencer) info(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Infof("loader", format, args...)
	}
}

func (s *Sequencer) nextID() string {
	if s.newID != nil {
		return s.newID()
	}
	return uuid.NewString()
}

func (s *Sequencer) wait(d time.Duration) <-chan time.Time {
	if s.after != nil {
		return s.after(d)
	}
	return time.After(d)
}

func (s *Sequencer) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
