package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedHost fails the first `failures` navigations and then succeeds.
// It delivers every outcome synchronously into a buffered channel, so a
// non-empty previous channel at the next Navigate means two navigations
// were outstanding at once.
type scriptedHost struct {
	failures int

	mu          sync.Mutex
	urls        []string
	ids         []string
	prev        chan Outcome
	overlapping int
	events      *[]string
}

func (h *scriptedHost) Navigate(ctx context.Context, id string, url string) <-chan Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.prev != nil && len(h.prev) > 0 {
		h.overlapping++
	}
	h.urls = append(h.urls, url)
	h.ids = append(h.ids, id)
	if h.events != nil {
		*h.events = append(*h.events, "navigate")
	}

	ch := make(chan Outcome, 1)
	if len(h.urls) <= h.failures {
		ch <- Outcome{NavigationID: id, Err: Failed(url, fmt.Errorf("connection refused (%d)", len(h.urls)))}
	} else {
		ch <- Outcome{NavigationID: id}
	}
	h.prev = ch
	return ch
}

type recordingProgress struct {
	begun   []int
	failed  []int
	loaded  int
	stopped error
}

func (p *recordingProgress) BeginAttempt(attempt int, navigationID string) {
	p.begun = append(p.begun, attempt)
}
func (p *recordingProgress) AttemptFailed(attempt int, err error, retryAt time.Time) {
	p.failed = append(p.failed, attempt)
}
func (p *recordingProgress) Loaded(attempt int) { p.loaded = attempt }
func (p *recordingProgress) Stopped(err error)  { p.stopped = err }

func newTestSequencer(out *bytes.Buffer, delays *[]time.Duration, events *[]string) *Sequencer {
	n := 0
	return &Sequencer{
		Out: out,
		newID: func() string {
			n++
			return fmt.Sprintf("nav-%d", n)
		},
		after: func(d time.Duration) <-chan time.Time {
			*delays = append(*delays, d)
			if events != nil {
				*events = append(*events, "wait")
			}
			ch := make(chan time.Time, 1)
			ch <- time.Time{}
			return ch
		},
	}
}

func attemptNumbers(t *testing.T, out string) []int {
	t.Helper()
	var attempts []int
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "Attempting to load ") {
			continue
		}
		var n int
		idx := strings.LastIndex(line, "#")
		if _, err := fmt.Sscanf(line[idx:], "#%d", &n); err != nil {
			t.Fatalf("unparseable attempt line %q: %v", line, err)
		}
		attempts = append(attempts, n)
	}
	return attempts
}

func TestRun_FailuresThenSuccess(t *testing.T) {
	const target = "http://kiosk.local/board"
	for _, failures := range []int{1, 2, 5, 17} {
		t.Run(fmt.Sprintf("%d failures", failures), func(t *testing.T) {
			var out bytes.Buffer
			var delays []time.Duration
			var events []string
			host := &scriptedHost{failures: failures, events: &events}
			seq := newTestSequencer(&out, &delays, &events)

			if err := seq.Run(context.Background(), LoadRequest{TargetURL: target}, host); err != nil {
				t.Fatalf("Run returned error: %v", err)
			}

			if len(host.urls) != failures+1 {
				t.Fatalf("navigations = %d, want %d", len(host.urls), failures+1)
			}
			for i, url := range host.urls {
				if url != target {
					t.Fatalf("navigation %d url = %q, want %q", i, url, target)
				}
			}
			if len(delays) != failures {
				t.Fatalf("delays = %d, want %d", len(delays), failures)
			}
			for i, d := range delays {
				if d != RetryDelay {
					t.Fatalf("delay %d = %v, want %v", i, d, RetryDelay)
				}
			}
			// Every pair of consecutive navigations is separated by a wait.
			for i := 1; i < len(events); i++ {
				if events[i] == "navigate" && events[i-1] != "wait" {
					t.Fatalf("navigation at event %d not preceded by a wait: %v", i, events)
				}
			}
			if host.overlapping != 0 {
				t.Fatalf("overlapping navigations = %d, want 0", host.overlapping)
			}
		})
	}
}

func TestRun_FirstAttemptSucceeds(t *testing.T) {
	var out bytes.Buffer
	var delays []time.Duration
	host := &scriptedHost{}
	seq := newTestSequencer(&out, &delays, nil)

	if err := seq.Run(context.Background(), LoadRequest{TargetURL: "https://example.com"}, host); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(host.urls) != 1 {
		t.Fatalf("navigations = %d, want 1", len(host.urls))
	}
	if len(delays) != 0 {
		t.Fatalf("delays = %v, want none", delays)
	}
	if !strings.Contains(out.String(), "Page loaded successfully") {
		t.Fatalf("missing success line in output:\n%s", out.String())
	}
}

func TestRun_AttemptCounterStrictlyIncreasing(t *testing.T) {
	var out bytes.Buffer
	var delays []time.Duration
	host := &scriptedHost{failures: 9}
	seq := newTestSequencer(&out, &delays, nil)

	if err := seq.Run(context.Background(), LoadRequest{TargetURL: "http://example.com"}, host); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	attempts := attemptNumbers(t, out.String())
	if len(attempts) != 10 {
		t.Fatalf("attempt lines = %d, want 10", len(attempts))
	}
	for i, n := range attempts {
		if n != i+1 {
			t.Fatalf("attempt line %d = #%d, want #%d", i, n, i+1)
		}
	}
	if !strings.Contains(out.String(), "Retrying in 2 seconds...") {
		t.Fatalf("missing retry line in output:\n%s", out.String())
	}
}

func TestRun_NoNavigationAfterSuccess(t *testing.T) {
	var out bytes.Buffer
	var delays []time.Duration
	host := &scriptedHost{failures: 3}
	seq := newTestSequencer(&out, &delays, nil)
	progress := &recordingProgress{}
	seq.Progress = progress

	if err := seq.Run(context.Background(), LoadRequest{TargetURL: "http://example.com"}, host); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	count := len(host.urls)
	if count != 4 {
		t.Fatalf("navigations = %d, want 4", count)
	}
	if progress.loaded != 4 {
		t.Fatalf("Loaded attempt = %d, want 4", progress.loaded)
	}
	if got, want := fmt.Sprint(progress.failed), "[1 2 3]"; got != want {
		t.Fatalf("failed attempts = %s, want %s", got, want)
	}
	if progress.stopped != nil {
		t.Fatalf("Stopped called with %v after success", progress.stopped)
	}
}

func TestRun_ThousandFailuresDoesNotGiveUp(t *testing.T) {
	var out bytes.Buffer
	var delays []time.Duration
	host := &scriptedHost{failures: 1000}
	seq := newTestSequencer(&out, &delays, nil)

	if err := seq.Run(context.Background(), LoadRequest{TargetURL: "http://example.com"}, host); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(host.urls) != 1001 {
		t.Fatalf("navigations = %d, want 1001", len(host.urls))
	}
	if !strings.Contains(out.String(), "Attempt #1001\n") {
		t.Fatalf("attempt #1001 was never issued")
	}
	if len(delays) != 1000 {
		t.Fatalf("delays = %d, want 1000", len(delays))
	}
}

func TestRun_CancelWhileAwaitingOutcome(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	navigated := make(chan struct{})
	host := WindowHostFunc(func(ctx context.Context, id, url string) <-chan Outcome {
		close(navigated)
		return make(chan Outcome) // never answers
	})
	progress := &recordingProgress{}
	seq := &Sequencer{Out: &bytes.Buffer{}, Progress: progress}

	done := make(chan error, 1)
	go func() { done <- seq.Run(ctx, LoadRequest{TargetURL: "http://example.com"}, host) }()

	<-navigated
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	if !errors.Is(progress.stopped, context.Canceled) {
		t.Fatalf("Stopped error = %v, want context.Canceled", progress.stopped)
	}
}

func TestRun_CancelDuringRetryDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	host := &scriptedHost{failures: 1 << 30}
	waiting := make(chan struct{})
	seq := &Sequencer{
		Out: &bytes.Buffer{},
		after: func(d time.Duration) <-chan time.Time {
			close(waiting)
			return make(chan time.Time)
		},
	}

	done := make(chan error, 1)
	go func() { done <- seq.Run(ctx, LoadRequest{TargetURL: "http://example.com"}, host) }()

	<-waiting
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	if len(host.urls) != 1 {
		t.Fatalf("navigations = %d, want 1", len(host.urls))
	}
}

func TestRun_DropsStaleOutcome(t *testing.T) {
	host := WindowHostFunc(func(ctx context.Context, id, url string) <-chan Outcome {
		ch := make(chan Outcome, 2)
		ch <- Outcome{NavigationID: "someone-else", Err: Failed(url, errors.New("late failure"))}
		ch <- Outcome{NavigationID: id}
		return ch
	})
	var delays []time.Duration
	seq := newTestSequencer(&bytes.Buffer{}, &delays, nil)

	if err := seq.Run(context.Background(), LoadRequest{TargetURL: "http://example.com"}, host); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(delays) != 0 {
		t.Fatalf("stale failure caused a retry: delays = %v", delays)
	}
}

func TestRun_ClosedOutcomeChannelIsFailure(t *testing.T) {
	calls := 0
	host := WindowHostFunc(func(ctx context.Context, id, url string) <-chan Outcome {
		calls++
		ch := make(chan Outcome, 1)
		if calls == 1 {
			close(ch)
			return ch
		}
		ch <- Outcome{NavigationID: id}
		return ch
	})
	var delays []time.Duration
	seq := newTestSequencer(&bytes.Buffer{}, &delays, nil)

	if err := seq.Run(context.Background(), LoadRequest{TargetURL: "http://example.com"}, host); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("navigations = %d, want 2", calls)
	}
}

func TestRun_RejectsMissingInputs(t *testing.T) {
	seq := &Sequencer{Out: &bytes.Buffer{}}
	if err := seq.Run(context.Background(), LoadRequest{TargetURL: "http://example.com"}, nil); err == nil {
		t.Fatalf("expected error for nil host")
	}
	err := seq.Run(context.Background(), LoadRequest{}, &scriptedHost{})
	if !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("Run error = %v, want ErrInvalidURL", err)
	}
}

func TestNewLoadRequest(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"http", "http://10.0.0.5:8080/board", "http://10.0.0.5:8080/board", false},
		{"https trimmed", "  https://example.com  ", "https://example.com", false},
		{"empty", "", "", true},
		{"blank", "   ", "", true},
		{"no scheme", "example.com/board", "", true},
		{"file scheme", "file:///etc/passwd", "", true},
		{"no host", "http:///path", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewLoadRequest(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURL) {
					t.Fatalf("NewLoadRequest(%q) err = %v, want ErrInvalidURL", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewLoadRequest(%q) err = %v", tt.in, err)
			}
			if req.TargetURL != tt.want {
				t.Fatalf("TargetURL = %q, want %q", req.TargetURL, tt.want)
			}
		})
	}
}

func TestLoadError_MatchesSentinel(t *testing.T) {
	reason := errors.New("dial tcp: connection refused")
	err := error(Failed("http://example.com", reason))
	if !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("errors.Is(err, ErrLoadFailed) = false")
	}
	if !errors.Is(err, reason) {
		t.Fatalf("errors.Is(err, reason) = false")
	}
	wrapped := asLoadError(err, "http://example.com", 3)
	if wrapped.Attempt != 3 {
		t.Fatalf("Attempt = %d, want 3", wrapped.Attempt)
	}
	if !strings.Contains(wrapped.Error(), "attempt #3") {
		t.Fatalf("Error() = %q, want attempt number", wrapped.Error())
	}
}
