// Package health exposes /livez and /readyz probe endpoints backed by
// periodic background checks. Checks flip state on consecutive results
// (fail three times to go unhealthy, pass once to recover) so a single
// slow poll does not bounce the service out of rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

const (
	defaultFailAfter    = 3
	defaultRecoverAfter = 1
)

// check carries one registered probe and its state. poll is invoked from a
// single goroutine per check; ok and lastErr are the only fields the HTTP
// handlers read, so they are atomic.
type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	ok      atomic.Bool
	lastErr atomic.Pointer[error]

	fails  int
	passes int
}

func (c *check) poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	c.lastErr.Store(&err)

	if err != nil {
		c.passes = 0
		if c.fails++; c.fails >= defaultFailAfter {
			c.ok.Store(false)
		}
		return
	}
	c.fails = 0
	if c.passes++; c.passes >= defaultRecoverAfter {
		c.ok.Store(true)
	}
}

func (c *check) failure() string {
	if c.ok.Load() {
		return ""
	}
	if p := c.lastErr.Load(); p != nil && *p != nil {
		return (*p).Error()
	}
	return "check is unhealthy"
}

// Service runs registered checks and serves the probe endpoints. Readiness
// combines the manual SetReady flag with the readiness checks, so graceful
// shutdown can pull the service out of rotation before closing listeners.
type Service struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
}

// New creates a Service. It reports not-ready until SetReady(true).
func New() *Service {
	return &Service{}
}

func newCheck(name string, timeout time.Duration, fn CheckFunc) *check {
	c := &check{name: name, timeout: timeout, fn: fn}
	// Healthy until the failure threshold says otherwise.
	c.ok.Store(true)
	return c
}

// AddLivenessCheck registers a check against /livez. Liveness failures mean
// the process itself is wedged (goroutine leak, runaway GC).
func (s *Service) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.mu.Lock()
	s.liveness = append(s.liveness, newCheck(name, timeout, fn))
	s.mu.Unlock()
}

// AddReadinessCheck registers a check against /readyz. Readiness failures
// mean the service cannot usefully take traffic (database unreachable).
func (s *Service) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.mu.Lock()
	s.readiness = append(s.readiness, newCheck(name, timeout, fn))
	s.mu.Unlock()
}

// Start polls every registered check on its own goroutine at the given
// interval until Stop or context cancellation.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	all := append(append([]*check(nil), s.liveness...), s.readiness...)
	s.mu.Unlock()

	for _, c := range all {
		go func(c *check) {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			c.poll(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					c.poll(ctx)
				}
			}
		}(c)
	}
}

// Stop cancels the polling goroutines. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// SetReady flips the manual readiness gate. Call with true once startup
// finishes and with false at the start of graceful shutdown.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// IsReady reports whether the service should receive traffic: manually
// marked ready and every readiness check passing.
func (s *Service) IsReady() bool {
	if !s.ready.Load() {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.readiness {
		if !c.ok.Load() {
			return false
		}
	}
	return true
}

type probeStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 while the liveness checks pass, 503 with
// the failing checks listed otherwise.
func (s *Service) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	checks := append([]*check(nil), s.liveness...)
	s.mu.RUnlock()

	serveProbe(w, failures(checks))
}

// ReadyEndpoint serves /readyz: 200 only when the service is marked ready
// and the readiness checks pass.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	checks := append([]*check(nil), s.readiness...)
	s.mu.RUnlock()

	fails := failures(checks)
	if !s.ready.Load() {
		fails["_readiness"] = "service is not ready"
	}
	serveProbe(w, fails)
}

func failures(checks []*check) map[string]string {
	fails := make(map[string]string)
	for _, c := range checks {
		if msg := c.failure(); msg != "" {
			fails[c.name] = msg
		}
	}
	return fails
}

func serveProbe(w http.ResponseWriter, fails map[string]string) {
	body := probeStatus{Status: "ok"}
	code := http.StatusOK
	if len(fails) > 0 {
		body = probeStatus{Status: "unhealthy", Checks: fails}
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
