package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSelection("vk", "round_robin", "selected")
	m.RecordSelection("vk", "round_robin", "selected")
	m.RecordSkip("telegram", "authorization")
	m.RecordClientCreation("vk", false)
	m.RecordSync(true)
	m.RecordReaped("vk")
	m.RecordUsage("vk")

	if got := testutil.ToFloat64(m.Selections.WithLabelValues("vk", "round_robin", "selected")); got != 2 {
		t.Errorf("Expected 2 selections, got %v", got)
	}
	if got := testutil.ToFloat64(m.SelectionSkips.WithLabelValues("telegram", "authorization")); got != 1 {
		t.Errorf("Expected 1 skip, got %v", got)
	}
	if got := testutil.ToFloat64(m.ClientCreations.WithLabelValues("vk", "failure")); got != 1 {
		t.Errorf("Expected 1 failed creation, got %v", got)
	}
	if got := testutil.ToFloat64(m.SyncTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("Expected 1 sync, got %v", got)
	}
}

func TestMetrics_SetPoolSize(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetPoolSize("telegram", 4, 1)
	m.SetPoolSize("telegram", 3, 0)

	if got := testutil.ToFloat64(m.PoolClients.WithLabelValues("telegram")); got != 3 {
		t.Errorf("Expected 3 clients, got %v", got)
	}
	if got := testutil.ToFloat64(m.DegradedClients.WithLabelValues("telegram")); got != 0 {
		t.Errorf("Expected 0 degraded, got %v", got)
	}
}

func TestMetrics_ObserveThrottleWait(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	// This test verifies that the method doesn't panic
	m.ObserveThrottleWait("vk", 150*time.Millisecond)
}

func TestGetDefaultMetrics_Singleton(t *testing.T) {
	if GetDefaultMetrics() != GetDefaultMetrics() {
		t.Error("Expected the same default instance")
	}
}
