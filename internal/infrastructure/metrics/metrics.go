package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pool service
type Metrics struct {
	// Selection metrics
	Selections     *prometheus.CounterVec
	SelectionSkips *prometheus.CounterVec

	// Pool state metrics
	PoolClients     *prometheus.GaugeVec
	DegradedClients *prometheus.GaugeVec
	ClientsReaped   *prometheus.CounterVec
	ClientCreations *prometheus.CounterVec

	// Usage metrics
	UsageRecorded *prometheus.CounterVec
	SyncTotal     *prometheus.CounterVec
	ThrottleWait  *prometheus.HistogramVec
}

var (
	// DefaultMetrics is the default metrics instance
	DefaultMetrics *Metrics
	once           sync.Once
)

// GetDefaultMetrics returns the singleton metrics instance
func GetDefaultMetrics() *Metrics {
	once.Do(func() {
		DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return DefaultMetrics
}

// NewMetrics registers all pool metrics on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Selections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pool_selections_total",
				Help: "Total number of client selections by outcome",
			},
			[]string{"platform", "strategy", "result"},
		),
		SelectionSkips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pool_selection_skips_total",
				Help: "Candidates passed over during selection by reason",
			},
			[]string{"platform", "reason"},
		),
		PoolClients: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pool_clients",
				Help: "Number of live clients held by the pool",
			},
			[]string{"platform"},
		),
		DegradedClients: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pool_degraded_clients",
				Help: "Number of pool clients in degraded mode",
			},
			[]string{"platform"},
		),
		ClientsReaped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pool_clients_reaped_total",
				Help: "Total number of idle clients disconnected by the reaper",
			},
			[]string{"platform"},
		),
		ClientCreations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pool_client_creations_total",
				Help: "Total number of client creation attempts by outcome",
			},
			[]string{"platform", "result"},
		),
		UsageRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pool_usage_recorded_total",
				Help: "Total number of recorded account uses",
			},
			[]string{"platform"},
		),
		SyncTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pool_sync_total",
				Help: "Account usage syncs into the durable store by outcome",
			},
			[]string{"result"},
		),
		ThrottleWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pool_throttle_wait_seconds",
				Help:    "Delay inserted by the per client throttle",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"platform"},
		),
	}
}

// RecordSelection records the outcome of one select call
func (m *Metrics) RecordSelection(platform, strategy, result string) {
	m.Selections.WithLabelValues(platform, strategy, result).Inc()
}

// RecordSkip records a candidate skipped during selection
func (m *Metrics) RecordSkip(platform, reason string) {
	m.SelectionSkips.WithLabelValues(platform, reason).Inc()
}

// SetPoolSize updates the pool gauges
func (m *Metrics) SetPoolSize(platform string, clients, degraded int) {
	m.PoolClients.WithLabelValues(platform).Set(float64(clients))
	m.DegradedClients.WithLabelValues(platform).Set(float64(degraded))
}

// RecordReaped records an idle client disconnect
func (m *Metrics) RecordReaped(platform string) {
	m.ClientsReaped.WithLabelValues(platform).Inc()
}

// RecordClientCreation records a connection factory outcome
func (m *Metrics) RecordClientCreation(platform string, success bool) {
	m.ClientCreations.WithLabelValues(platform, result(success)).Inc()
}

// RecordUsage records one account use
func (m *Metrics) RecordUsage(platform string) {
	m.UsageRecorded.WithLabelValues(platform).Inc()
}

// RecordSync records one account sync outcome
func (m *Metrics) RecordSync(success bool) {
	m.SyncTotal.WithLabelValues(result(success)).Inc()
}

// ObserveThrottleWait records a throttle delay
func (m *Metrics) ObserveThrottleWait(platform string, wait time.Duration) {
	m.ThrottleWait.WithLabelValues(platform).Observe(wait.Seconds())
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
