// Package health serves the liveness and readiness probes.
//
// Checks run in the background on an interval. A check flips to failing
// after FailureThreshold consecutive errors and back to passing on the first
// success, so one slow CMS response does not take the pod out of rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// CheckFunc returns nil when the dependency is usable.
type CheckFunc func(ctx context.Context) error

// Kind selects the probe a check belongs to.
type Kind int

const (
	Liveness Kind = iota
	Readiness
)

// Check is a named dependency check.
type Check struct {
	Name    string
	Timeout time.Duration
	Func    CheckFunc
}

type state struct {
	Check
	threshold int

	failures int // owned by the check goroutine
	failing  atomic.Bool
	lastErr  atomic.Pointer[string]
}

func (s *state) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	if err := s.Func(ctx); err != nil {
		msg := err.Error()
		s.lastErr.Store(&msg)
		s.failures++
		if s.failures >= s.threshold {
			s.failing.Store(true)
		}
		return
	}
	s.failures = 0
	s.lastErr.Store(nil)
	s.failing.Store(false)
}

func (s *state) status() (string, bool) {
	if !s.failing.Load() {
		return "ok", true
	}
	if msg := s.lastErr.Load(); msg != nil {
		return *msg, false
	}
	return "failing", false
}

// Options configures Health.
type Options struct {
	// Interval between check runs. Defaults to 10s.
	Interval time.Duration
	// FailureThreshold is the number of consecutive errors before a check
	// fails. Defaults to 3.
	FailureThreshold int
}

// Health aggregates checks. It starts not ready.
type Health struct {
	interval  time.Duration
	threshold int
	ready     atomic.Bool

	mu     sync.RWMutex
	checks map[Kind][]*state
}

// New creates a Health.
func New(opts Options) *Health {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 3
	}
	return &Health{
		interval:  opts.Interval,
		threshold: opts.FailureThreshold,
		checks:    make(map[Kind][]*state),
	}
}

// Add registers a check. Register everything before Run.
func (h *Health) Add(kind Kind, c Check) {
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	h.mu.Lock()
	h.checks[kind] = append(h.checks[kind], &state{Check: c, threshold: h.threshold})
	h.mu.Unlock()
}

// Run executes every check immediately and then on each interval until ctx
// is done.
func (h *Health) Run(ctx context.Context) error {
	h.mu.RLock()
	var all []*state
	for _, list := range h.checks {
		all = append(all, list...)
	}
	h.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range all {
		g.Go(func() error {
			ticker := time.NewTicker(h.interval)
			defer ticker.Stop()
			for {
				s.run(ctx)
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		})
	}
	return g.Wait()
}

// SetReady marks the service ready or draining.
func (h *Health) SetReady(ready bool) { h.ready.Store(ready) }

// Ready reports whether the service is marked ready and no readiness check
// is failing.
func (h *Health) Ready() bool {
	if !h.ready.Load() {
		return false
	}
	_, ok := h.report(Readiness)
	return ok
}

func (h *Health) report(kind Kind) (map[string]string, bool) {
	h.mu.RLock()
	list := h.checks[kind]
	h.mu.RUnlock()

	out := make(map[string]string, len(list))
	ok := true
	for _, s := range list {
		status, passing := s.status()
		out[s.Name] = status
		ok = ok && passing
	}
	return out, ok
}

type response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveHandler serves /livez.
func (h *Health) LiveHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks, ok := h.report(Liveness)
		write(w, checks, ok)
	})
}

// ReadyHandler serves /readyz.
func (h *Health) ReadyHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks, ok := h.report(Readiness)
		if !h.ready.Load() {
			checks["service"] = "not ready"
			ok = false
		}
		write(w, checks, ok)
	})
}

func write(w http.ResponseWriter, checks map[string]string, ok bool) {
	resp := response{Status: "ok", Checks: checks}
	code := http.StatusOK
	if !ok {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
