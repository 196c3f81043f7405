// Package health runs dependency probes for the liveness and readiness
// endpoints. A probe is either required (the snapshot) or optional (Redis,
// Postgres, Kafka); an optional failure degrades the report without failing
// readiness.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status is the health of one component or the whole process.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Probe returns nil when the dependency is usable.
type Probe func(ctx context.Context) error

// ComponentHealth is the outcome of a single probe.
type ComponentHealth struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
	Required bool   `json:"required"`
}

// Report aggregates all probes.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

type registration struct {
	probe    Probe
	required bool
}

// Checker holds registered probes.
type Checker struct {
	mu     sync.RWMutex
	probes map[string]registration
}

func NewChecker() *Checker {
	return &Checker{probes: make(map[string]registration)}
}

// Require registers a probe whose failure marks the process down.
func (c *Checker) Require(name string, p Probe) {
	c.register(name, p, true)
}

// Optional registers a probe whose failure only degrades the report.
func (c *Checker) Optional(name string, p Probe) {
	c.register(name, p, false)
}

func (c *Checker) register(name string, p Probe, required bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = registration{probe: p, required: required}
}

// Run executes all probes concurrently.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	probes := make(map[string]registration, len(c.probes))
	for name, r := range c.probes {
		probes[name] = r
	}
	c.mu.RUnlock()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(probes)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, r := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := r.probe(ctx)
			ch := ComponentHealth{
				Status:   StatusUp,
				Latency:  time.Since(start).Round(time.Microsecond).String(),
				Required: r.required,
			}
			if err != nil {
				ch.Message = err.Error()
				ch.Status = StatusDegraded
				if r.required {
					ch.Status = StatusDown
				}
			}
			mu.Lock()
			report.Components[name] = ch
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, ch := range report.Components {
		switch ch.Status {
		case StatusDown:
			report.Status = StatusDown
		case StatusDegraded:
			if report.Status == StatusUp {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

// LiveHandler always answers 200 while the process is serving.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers 503 only when a required probe fails.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		report := c.Run(ctx)
		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusDown {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(report)
	}
}
