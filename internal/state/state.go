package state

import (
	"sync"
	"time"
)

type Phase int

const (
	BOOTING Phase = iota
	ATTEMPTING
	WAITING_TO_RETRY
	SUCCEEDED
	STOPPED
)

func (p Phase) String() string {
	switch p {
	case BOOTING:
		return "booting"
	case ATTEMPTING:
		return "attempting"
	case WAITING_TO_RETRY:
		return "waiting_to_retry"
	case SUCCEEDED:
		return "succeeded"
	case STOPPED:
		return "stopped"
	default:
		return "unknown"
	}
}

type State struct {
	Phase        Phase
	URL          string
	Attempt      int
	NavigationID string
	LastError    string
	NextRetryAt  time.Time
	StartedAt    time.Time
	LoadedAt     time.Time
}

// RetryIn returns how long until the next attempt, rounded up to whole seconds.
// It is zero unless the phase is WAITING_TO_RETRY.
func (s State) RetryIn(now time.Time) time.Duration {
	if s.Phase != WAITING_TO_RETRY || s.NextRetryAt.IsZero() {
		return 0
	}
	left := s.NextRetryAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return (left + time.Second - 1).Truncate(time.Second)
}

type Store struct {
	mu    sync.RWMutex
	state State
	now   func() time.Time
}

func NewStore(url string) *Store {
	return &Store{state: State{Phase: BOOTING, URL: url}, now: time.Now}
}

func (store *Store) Snapshot() State {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.state
}

func (store *Store) BeginAttempt(attempt int, navigationID string) {
	store.mu.Lock()
	if store.state.StartedAt.IsZero() {
		store.state.StartedAt = store.now()
	}
	store.state.Phase = ATTEMPTING
	store.state.Attempt = attempt
	store.state.NavigationID = navigationID
	store.state.NextRetryAt = time.Time{}
	store.mu.Unlock()
}

func (store *Store) AttemptFailed(attempt int, err error, retryAt time.Time) {
	store.mu.Lock()
	store.state.Phase = WAITING_TO_RETRY
	store.state.Attempt = attempt
	if err != nil {
		store.state.LastError = err.Error()
	}
	store.state.NextRetryAt = retryAt
	store.mu.Unlock()
}

func (store *Store) Loaded(attempt int) {
	store.mu.Lock()
	store.state.Phase = SUCCEEDED
	store.state.Attempt = attempt
	store.state.NextRetryAt = time.Time{}
	store.state.LoadedAt = store.now()
	store.mu.Unlock()
}

// Stopped records a cancelled run. A store that already reached SUCCEEDED keeps it.
func (store *Store) Stopped(err error) {
	store.mu.Lock()
	if store.state.Phase != SUCCEEDED {
		store.state.Phase = STOPPED
		store.state.NextRetryAt = time.Time{}
	}
	store.mu.Unlock()
}
