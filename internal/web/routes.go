package web

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter builds the status router:
// - /api/v1/status  JSON snapshot of the load sequence
// - /api/v1/healthz liveness
func NewRouter(status StatusSource) *mux.Router {
	r := mux.NewRouter()
	registerAPIV1(r, status)
	r.MethodNotAllowedHandler = methodNotAllowed()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusNotFound, "not_found", "not found")
	})
	return r
}

func methodNotAllowed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
}
