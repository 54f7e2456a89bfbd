package metrics

import (
	"runtime"
	"time"
)

// Manager owns the Prometheus collectors plus the process-level gauges
// derived from the Go runtime.
type Manager struct {
	prometheus *PrometheusMetrics
	startedAt  time.Time
}

func NewManager() *Manager {
	return &Manager{
		prometheus: NewPrometheusMetrics(),
		startedAt:  time.Now(),
	}
}

// GetPrometheusMetrics exposes the underlying collectors for recording.
func (m *Manager) GetPrometheusMetrics() *PrometheusMetrics {
	return m.prometheus
}

// UpdateSystemMetrics refreshes the memory, goroutine, and uptime gauges.
func (m *Manager) UpdateSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.prometheus.UpdateMemoryUsage(memStats.Alloc)
	m.prometheus.UpdateGoroutineCount(runtime.NumGoroutine())
	m.prometheus.UpdateApplicationUptime(m.startedAt)
}
