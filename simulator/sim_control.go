package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
)

// SimFaults controls how the simulated target page answers.
type SimFaults struct {
	// FailNext makes the next N page requests fail.
	FailNext int `json:"failNext"`
	// AlwaysFail makes every page request fail until cleared.
	AlwaysFail bool `json:"alwaysFail"`
	// StatusCode is the status returned for a failing request. Zero means 503.
	StatusCode int `json:"statusCode"`
}

// SimControl is the simulated target site: a page that fails on demand.
type SimControl struct {
	startup SimFaults

	mu     sync.Mutex
	faults SimFaults
	served int
	failed int
}

func NewSimControl(startup SimFaults) *SimControl {
	return &SimControl{startup: startup, faults: startup}
}

func (c *SimControl) Faults() SimFaults {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.faults
}

func (c *SimControl) SetFaults(v SimFaults) {
	c.mu.Lock()
	c.faults = v
	c.mu.Unlock()
}

// Reset restores the startup faults and clears the counters.
func (c *SimControl) Reset() {
	c.mu.Lock()
	c.faults = c.startup
	c.served = 0
	c.failed = 0
	c.mu.Unlock()
}

// nextStatus decides the status for one page request and consumes a FailNext slot.
func (c *SimControl) nextStatus() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	fail := c.faults.AlwaysFail
	if c.faults.FailNext > 0 {
		c.faults.FailNext--
		fail = true
	}
	if !fail {
		c.served++
		return http.StatusOK
	}
	c.failed++
	if c.faults.StatusCode >= 400 {
		return c.faults.StatusCode
	}
	return http.StatusServiceUnavailable
}

func (c *SimControl) counts() (served, failed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.served, c.failed
}

// Router serves the page on "/" and the control endpoints under /sim.
func (c *SimControl) Router() *mux.Router {
	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSimError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r := mux.NewRouter()
	r.HandleFunc("/", c.handlePage).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/", notAllowed)

	sim := r.PathPrefix("/sim").Subrouter()
	sim.HandleFunc("/faults", c.handleGetFaults).Methods(http.MethodGet)
	sim.HandleFunc("/faults", c.handlePatchFaults).Methods(http.MethodPost, http.MethodPut)
	sim.HandleFunc("/reset", c.handleReset).Methods(http.MethodPost)
	// Registered last: mux drops a method mismatch once a later route misses on path.
	sim.Handle("/faults", notAllowed)
	sim.Handle("/reset", notAllowed)
	return r
}

func (c *SimControl) handlePage(w http.ResponseWriter, r *http.Request) {
	status := c.nextStatus()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if status != http.StatusOK {
		fmt.Fprintf(w, "<h1>%d %s</h1>\n", status, http.StatusText(status))
		return
	}
	fmt.Fprintln(w, "<!doctype html><title>snapkiosk simulator</title><h1>Hello from the simulator</h1>")
}

func (c *SimControl) handleGetFaults(w http.ResponseWriter, r *http.Request) {
	writeSimJSON(w, http.StatusOK, c.Faults())
}

func (c *SimControl) handlePatchFaults(w http.ResponseWriter, r *http.Request) {
	var patch struct {
		FailNext   *int  `json:"failNext"`
		AlwaysFail *bool `json:"alwaysFail"`
		StatusCode *int  `json:"statusCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeSimError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if patch.FailNext != nil && *patch.FailNext < 0 {
		writeSimError(w, http.StatusBadRequest, "failNext must be >= 0")
		return
	}
	if patch.StatusCode != nil && *patch.StatusCode != 0 && (*patch.StatusCode < 400 || *patch.StatusCode > 599) {
		writeSimError(w, http.StatusBadRequest, "statusCode must be 0 or 400-599")
		return
	}

	c.mu.Lock()
	if patch.FailNext != nil {
		c.faults.FailNext = *patch.FailNext
	}
	if patch.AlwaysFail != nil {
		c.faults.AlwaysFail = *patch.AlwaysFail
	}
	if patch.StatusCode != nil {
		c.faults.StatusCode = *patch.StatusCode
	}
	current := c.faults
	c.mu.Unlock()

	writeSimJSON(w, http.StatusOK, current)
}

func (c *SimControl) handleReset(w http.ResponseWriter, r *http.Request) {
	c.Reset()
	writeSimJSON(w, http.StatusOK, map[string]any{"ok": true, "faults": c.Faults()})
}

func writeSimJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSimError(w http.ResponseWriter, status int, message string) {
	writeSimJSON(w, status, map[string]any{"error": message})
}
