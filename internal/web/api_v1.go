package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rook-computer/snapkiosk/internal/state"
)

// StatusSource is the read side of the load state store.
type StatusSource interface {
	Snapshot() state.State
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type statusResponse struct {
	Phase        string     `json:"phase"`
	URL          string     `json:"url"`
	Attempt      int        `json:"attempt"`
	NavigationID string     `json:"navigationId,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
	NextRetryAt  *time.Time `json:"nextRetryAt,omitempty"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	LoadedAt     *time.Time `json:"loadedAt,omitempty"`
}

func registerAPIV1(r *mux.Router, status StatusSource) {
	api := r.PathPrefix("/api/v1").Subrouter()
	api.MethodNotAllowedHandler = methodNotAllowed()
	api.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) { handleStatus(w, r, status) }).Methods(http.MethodGet)
	api.HandleFunc("/healthz", handleHealthz).Methods(http.MethodGet)

	// mux forgets a method mismatch once a later route misses on path,
	// so every path gets an explicit 405 fallback.
	api.Handle("/status", methodNotAllowed())
	api.Handle("/healthz", methodNotAllowed())
}

func handleStatus(w http.ResponseWriter, r *http.Request, status StatusSource) {
	if status == nil {
		writeAPIError(w, http.StatusNotImplemented, "not_implemented", "status not configured")
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(status.Snapshot()))
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func toStatusResponse(snap state.State) statusResponse {
	return statusResponse{
		Phase:        snap.Phase.String(),
		URL:          snap.URL,
		Attempt:      snap.Attempt,
		NavigationID: snap.NavigationID,
		LastError:    snap.LastError,
		NextRetryAt:  timePtr(snap.NextRetryAt),
		StartedAt:    timePtr(snap.StartedAt),
		LoadedAt:     timePtr(snap.LoadedAt),
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Error: code, Message: message})
}
