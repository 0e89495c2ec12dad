package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
)

// Monitor tracks the latest Status per component. All methods are safe for
// concurrent use.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor returns an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{statuses: make(map[string]Status)}
}

// Set records the status for its component, replacing any previous one.
func (m *Monitor) Set(status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[status.Component] = status
}

// SetHealthy marks a component healthy.
func (m *Monitor) SetHealthy(component, message string) {
	m.Set(Healthy(component, message))
}

// SetDegraded marks a component degraded.
func (m *Monitor) SetDegraded(component, message string) {
	m.Set(Degraded(component, message))
}

// SetUnhealthy marks a component unhealthy.
func (m *Monitor) SetUnhealthy(component, message string) {
	m.Set(Unhealthy(component, message))
}

// Get returns the last recorded status for a component.
func (m *Monitor) Get(component string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.statuses[component]
	return s, ok
}

// Snapshot returns every recorded status sorted by component name.
func (m *Monitor) Snapshot() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0, len(m.statuses))
	for _, s := range m.statuses {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Component < out[j].Component })
	return out
}

// Count returns the number of components being tracked.
func (m *Monitor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.statuses)
}

// Aggregate folds all recorded statuses into one system status.
func (m *Monitor) Aggregate(systemName string) Status {
	return Aggregate(systemName, m.Snapshot())
}

// Handler serves the aggregated system status as JSON. It answers 200 while
// the system is healthy or degraded and 503 when unhealthy, so probes
// restart the process only when it cannot recover on its own.
func (m *Monitor) Handler(systemName string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		agg := m.Aggregate(systemName)

		w.Header().Set("Content-Type", "application/json")
		if agg.IsUnhealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(agg)
	})
}
