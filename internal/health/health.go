// Package health serves liveness and readiness probes for gingerd.
//
// /healthz reports liveness and always answers 200: a process that can
// serve the request is alive. /readyz runs every registered [Checker]
// (database, emotion source, ...) and answers 503 if any fails, so
// orchestrators stop routing sessions to an instance whose dependencies
// are down. Bodies are JSON: {"status": "ok"|"fail", "checks": {...}}.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// defaultCheckTimeout bounds a single readiness check. A hung dependency
// must not hold the probe open indefinitely.
const defaultCheckTimeout = 5 * time.Second

// Checker probes one dependency. Check returns nil when the dependency can
// serve traffic and an error describing the failure otherwise; it must
// honor ctx cancellation.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

type probeBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler evaluates readiness checkers and serves both probe routes.
// The checker set is fixed at construction; the handler itself is stateless
// and safe for concurrent requests.
type Handler struct {
	checkers []Checker
	timeout  time.Duration
}

// Option configures a [Handler].
type Option func(*Handler)

// WithCheckTimeout overrides the per-check deadline.
func WithCheckTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// New builds a [Handler] over the given checkers. Checks run sequentially
// in registration order on each /readyz request.
func New(checkers ...Checker) *Handler {
	h := &Handler{
		checkers: append([]Checker(nil), checkers...),
		timeout:  defaultCheckTimeout,
	}
	return h
}

// NewWithOptions is [New] with options applied.
func NewWithOptions(checkers []Checker, opts ...Option) *Handler {
	h := New(checkers...)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Healthz answers the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, probeBody{Status: "ok"})
}

// Readyz answers the readiness probe. Every checker runs even after a
// failure so the response names all broken dependencies at once.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	body := probeBody{
		Status: "ok",
		Checks: make(map[string]string, len(h.checkers)),
	}
	code := http.StatusOK

	for _, c := range h.checkers {
		if err := h.runCheck(r.Context(), c); err != nil {
			body.Checks[c.Name] = "fail: " + err.Error()
			body.Status = "fail"
			code = http.StatusServiceUnavailable
		} else {
			body.Checks[c.Name] = "ok"
		}
	}

	respond(w, code, body)
}

func (h *Handler) runCheck(ctx context.Context, c Checker) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return c.Check(ctx)
}

// Register mounts both probe routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func respond(w http.ResponseWriter, code int, body probeBody) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
