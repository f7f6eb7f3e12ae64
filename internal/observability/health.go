package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const probeTimeout = 2 * time.Second

// Check probes one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// HealthMonitor periodically probes the relay's dependencies and caches the
// result so that health endpoints never block on a slow dependency.
type HealthMonitor struct {
	checks   map[string]Check
	interval time.Duration

	mu       sync.RWMutex
	results  map[string]string
	healthy  bool
	probed   bool
	onChange []func(healthy bool)
}

func NewHealthMonitor(interval time.Duration, checks map[string]Check) *HealthMonitor {
	return &HealthMonitor{
		checks:   checks,
		interval: interval,
		results:  make(map[string]string),
	}
}

// OnChange registers fn to run whenever the overall status flips.
// It runs once with the first probe result.
func (m *HealthMonitor) OnChange(fn func(healthy bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Start probes immediately and then every interval until ctx is done.
func (m *HealthMonitor) Start(ctx context.Context) {
	m.Probe(ctx)
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Probe(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *HealthMonitor) Probe(ctx context.Context) {
	results := make(map[string]string, len(m.checks))
	healthy := true

	for name, check := range m.checks {
		cctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := check(cctx)
		cancel()

		if err != nil {
			healthy = false
			results[name] = "down: " + err.Error()
			DependencyUp.WithLabelValues(name).Set(0)
			continue
		}
		results[name] = "up"
		DependencyUp.WithLabelValues(name).Set(1)
	}

	m.mu.Lock()
	changed := !m.probed || m.healthy != healthy
	m.results = results
	m.healthy = healthy
	m.probed = true
	listeners := append([]func(bool){}, m.onChange...)
	m.mu.Unlock()

	if changed {
		if !healthy {
			GetLogger(ctx).Warn("health: dependency down", zap.Any("checks", results))
		}
		for _, fn := range listeners {
			fn(healthy)
		}
	}
}

func (m *HealthMonitor) Status() (bool, map[string]string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.results))
	for k, v := range m.results {
		out[k] = v
	}
	return m.healthy, out
}

type HealthReport struct {
	Status      string            `json:"status"`
	Connections int               `json:"connections"`
	InstanceID  string            `json:"instanceId"`
	Checks      map[string]string `json:"checks"`
	Timestamp   string            `json:"timestamp"`
}

// HealthHandler reports overall status, the local connection count and each
// dependency check. It answers 503 while any dependency is down.
func HealthHandler(m *HealthMonitor, instanceID string, connections func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthy, checks := m.Status()

		report := HealthReport{
			Status:      "ok",
			Connections: connections(),
			InstanceID:  instanceID,
			Checks:      checks,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}
		status := http.StatusOK
		if !healthy {
			report.Status = "degraded"
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(report)
	}
}

func HealthLiveHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func HealthReadyHandler(m *HealthMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthy, checks := m.Status()
		if healthy {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
			return
		}

		down := make([]string, 0, len(checks))
		for name, result := range checks {
			if result != "up" {
				down = append(down, name)
			}
		}
		sort.Strings(down)

		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string][]string{"down": down})
	}
}
