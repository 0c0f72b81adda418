// Package health serves the liveness and readiness endpoints of the ops
// listener.
//
// Liveness (/healthz) only says the process is up and serving HTTP; it never
// fails. Readiness (/readyz) asks each registered [Checker] whether its
// dependency — the transcript store, for instance — is currently usable, and
// returns 503 while any of them is not. Both respond with a JSON body: a
// top-level "status" of "ok" or "fail", plus a per-checker "checks" map on
// the readiness side.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds a single readiness check. A dependency that cannot
// answer in this window is treated as down.
const checkTimeout = 3 * time.Second

// Checker is one named readiness dependency. Check returns nil when the
// dependency is usable; the error text of a failure is surfaced verbatim in
// the readiness response. Check must respect context cancellation.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// report is the response body shared by both endpoints.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the two endpoints over a fixed checker list. Safe for
// concurrent use.
type Handler struct {
	checkers []Checker
}

// New builds a Handler. Checkers run sequentially, in the order given, on
// every readiness request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always answers 200: a process that got this far can serve HTTP.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz runs every checker and answers 200 only when all of them pass.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	ready := true

	for _, c := range h.checkers {
		checks[c.Name] = "ok"
		if err := h.runCheck(r.Context(), c); err != nil {
			checks[c.Name] = "fail: " + err.Error()
			ready = false
		}
	}

	res := report{Status: "ok", Checks: checks}
	code := http.StatusOK
	if !ready {
		res.Status = "fail"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, res)
}

// runCheck runs one checker under the check deadline.
func (h *Handler) runCheck(ctx context.Context, c Checker) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	return c.Check(ctx)
}

// Register mounts both endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
