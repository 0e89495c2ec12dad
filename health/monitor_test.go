package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestMonitorSetAndGet(t *testing.T) {
	m := NewMonitor()

	m.SetHealthy(ComponentNATS, "connected")
	m.SetDegraded(ComponentSink, "publish retries in progress")

	s, ok := m.Get(ComponentNATS)
	if !ok {
		t.Fatal("nats status should exist")
	}
	if !s.IsHealthy() {
		t.Errorf("nats status = %q, want healthy", s.Status)
	}

	// Updates replace, never accumulate.
	m.SetUnhealthy(ComponentNATS, "connection lost")
	s, _ = m.Get(ComponentNATS)
	if !s.IsUnhealthy() {
		t.Errorf("nats status = %q, want unhealthy after update", s.Status)
	}
	if m.Count() != 2 {
		t.Errorf("count = %d, want 2", m.Count())
	}
}

func TestMonitorSnapshotSorted(t *testing.T) {
	m := NewMonitor()
	m.SetHealthy(ComponentSink, "")
	m.SetHealthy(ComponentNATS, "")
	m.SetHealthy(ComponentPipeline, "")

	snap := m.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot len = %d, want 3", len(snap))
	}
	for i := 1; i < len(snap); i++ {
		if snap[i-1].Component > snap[i].Component {
			t.Errorf("snapshot not sorted: %q before %q", snap[i-1].Component, snap[i].Component)
		}
	}
}

func TestMonitorAggregate(t *testing.T) {
	m := NewMonitor()

	if agg := m.Aggregate("connector"); !agg.IsUnhealthy() {
		t.Errorf("empty monitor aggregate = %q, want unhealthy", agg.Status)
	}

	m.SetHealthy(ComponentNATS, "connected")
	m.SetHealthy(ComponentTemplates, "collection loaded")
	if agg := m.Aggregate("connector"); !agg.IsHealthy() {
		t.Errorf("aggregate = %q, want healthy", agg.Status)
	}

	m.SetDegraded(ComponentSink, "buffering")
	if agg := m.Aggregate("connector"); !agg.IsDegraded() {
		t.Errorf("aggregate = %q, want degraded", agg.Status)
	}
}

func TestMonitorConcurrentAccess(t *testing.T) {
	m := NewMonitor()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.SetHealthy(ComponentNATS, "connected")
				m.SetDegraded(ComponentSink, "buffering")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Snapshot()
				m.Aggregate("connector")
			}
		}()
	}
	wg.Wait()
}

func TestMonitorHandler(t *testing.T) {
	m := NewMonitor()
	handler := m.Handler("connector")

	// Nothing reported yet: the probe should fail.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	m.SetHealthy(ComponentNATS, "connected")
	m.SetDegraded(ComponentSink, "buffering")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var agg Status
	if err := json.Unmarshal(rec.Body.Bytes(), &agg); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !agg.IsDegraded() {
		t.Errorf("aggregate = %q, want degraded", agg.Status)
	}
	if len(agg.SubStatuses) != 2 {
		t.Errorf("sub statuses = %d, want 2", len(agg.SubStatuses))
	}
}
