package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics contains all Prometheus metrics for the orchestrator
type PrometheusMetrics struct {
	// Task execution metrics
	TasksScheduledTotal   *prometheus.CounterVec
	TasksExecutedTotal    *prometheus.CounterVec
	TaskRetriesTotal      *prometheus.CounterVec
	TaskExecutionDuration *prometheus.HistogramVec
	TasksDue              prometheus.Gauge

	// Alert metrics
	AlertsTriggeredTotal *prometheus.CounterVec
	AlertChecksTotal     *prometheus.CounterVec
	AlertCheckDuration   prometheus.Histogram

	// Notification metrics
	NotificationsSentTotal    *prometheus.CounterVec
	NotificationFailuresTotal *prometheus.CounterVec
	NotificationDuration      *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    *prometheus.CounterVec
	CacheEvictionsTotal prometheus.Counter
	CacheEntries        prometheus.Gauge

	// Automation metrics
	RulesFiredTotal *prometheus.CounterVec

	// API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Application health metrics
	ApplicationUptime prometheus.Gauge
	ComponentHealth   *prometheus.GaugeVec
	MemoryUsage       prometheus.Gauge
	GoroutineCount    prometheus.Gauge
}

// NewPrometheusMetrics creates and registers all Prometheus metrics
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		// Task execution metrics
		TasksScheduledTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_tasks_scheduled_total",
				Help: "Total number of tasks scheduled",
			},
			[]string{"task_type", "schedule_type"},
		),

		TasksExecutedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_tasks_executed_total",
				Help: "Total number of task executions by outcome",
			},
			[]string{"task_type", "outcome"},
		),

		TaskRetriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_task_retries_total",
				Help: "Total number of retry re-schedules after failed executions",
			},
			[]string{"task_type"},
		),

		TaskExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_task_execution_duration_seconds",
				Help:    "Time spent executing individual tasks",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"task_type"},
		),

		TasksDue: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_tasks_due",
				Help: "Number of due tasks selected in the latest executor pass",
			},
		),

		// Alert metrics
		AlertsTriggeredTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_alerts_triggered_total",
				Help: "Total number of alerts raised by detectors",
			},
			[]string{"alert_type", "severity"},
		),

		AlertChecksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_alert_checks_total",
				Help: "Total number of monitoring check passes",
			},
			[]string{"status"},
		),

		AlertCheckDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "orchestrator_alert_check_duration_seconds",
				Help:    "Time spent running a full monitoring check pass",
				Buckets: prometheus.DefBuckets,
			},
		),

		// Notification metrics
		NotificationsSentTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_notifications_sent_total",
				Help: "Total number of notifications delivered",
			},
			[]string{"channel_type", "event_type"},
		),

		NotificationFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_notification_failures_total",
				Help: "Total number of notification delivery failures",
			},
			[]string{"channel_type", "event_type", "error_type"},
		),

		NotificationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_notification_duration_seconds",
				Help:    "Duration of notification deliveries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel_type"},
		),

		// Cache metrics
		CacheHitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "orchestrator_cache_hits_total",
				Help: "Total number of cache hits",
			},
		),

		CacheMissesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_cache_misses_total",
				Help: "Total number of cache misses by reason",
			},
			[]string{"reason"},
		),

		CacheEvictionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "orchestrator_cache_evictions_total",
				Help: "Total number of capacity evictions",
			},
		),

		CacheEntries: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_cache_entries",
				Help: "Current number of live cache entries",
			},
		),

		// Automation metrics
		RulesFiredTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_rules_fired_total",
				Help: "Total number of automation rules fired",
			},
			[]string{"alert_type", "task_type"},
		),

		// API metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Application health metrics
		ApplicationUptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_uptime_seconds",
				Help: "Application uptime in seconds",
			},
		),

		ComponentHealth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "orchestrator_component_health",
				Help: "Health status of application components (1 healthy, 0 unhealthy)",
			},
			[]string{"component"},
		),

		MemoryUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
		),

		GoroutineCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_goroutines",
				Help: "Current number of goroutines",
			},
		),
	}
}

// RecordTaskScheduled increments the scheduled task counter
func (m *PrometheusMetrics) RecordTaskScheduled(taskType, scheduleType string) {
	m.TasksScheduledTotal.WithLabelValues(taskType, scheduleType).Inc()
}

// RecordTaskExecution records an execution outcome and its duration
func (m *PrometheusMetrics) RecordTaskExecution(taskType, outcome string, duration time.Duration) {
	m.TasksExecutedTotal.WithLabelValues(taskType, outcome).Inc()
	m.TaskExecutionDuration.WithLabelValues(taskType).Observe(duration.Seconds())
}

// RecordTaskRetry increments the retry counter
func (m *PrometheusMetrics) RecordTaskRetry(taskType string) {
	m.TaskRetriesTotal.WithLabelValues(taskType).Inc()
}

// UpdateTasksDue sets the due-task gauge
func (m *PrometheusMetrics) UpdateTasksDue(count int) {
	m.TasksDue.Set(float64(count))
}

// RecordAlertTriggered increments the triggered alert counter
func (m *PrometheusMetrics) RecordAlertTriggered(alertType, severity string) {
	m.AlertsTriggeredTotal.WithLabelValues(alertType, severity).Inc()
}

// RecordAlertCheck records a monitoring check pass
func (m *PrometheusMetrics) RecordAlertCheck(status string, duration time.Duration) {
	m.AlertChecksTotal.WithLabelValues(status).Inc()
	m.AlertCheckDuration.Observe(duration.Seconds())
}

// RecordNotificationSent records a successful notification delivery
func (m *PrometheusMetrics) RecordNotificationSent(channelType, eventType string, duration time.Duration) {
	m.NotificationsSentTotal.WithLabelValues(channelType, eventType).Inc()
	m.NotificationDuration.WithLabelValues(channelType).Observe(duration.Seconds())
}

// RecordNotificationFailure records a failed notification delivery
func (m *PrometheusMetrics) RecordNotificationFailure(channelType, eventType, errorType string) {
	m.NotificationFailuresTotal.WithLabelValues(channelType, eventType, errorType).Inc()
}

// RecordCacheHit increments the cache hit counter
func (m *PrometheusMetrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

// RecordCacheMiss increments the cache miss counter for a reason
func (m *PrometheusMetrics) RecordCacheMiss(reason string) {
	m.CacheMissesTotal.WithLabelValues(reason).Inc()
}

// RecordCacheEviction increments the eviction counter
func (m *PrometheusMetrics) RecordCacheEviction() {
	m.CacheEvictionsTotal.Inc()
}

// UpdateCacheEntries sets the live entries gauge
func (m *PrometheusMetrics) UpdateCacheEntries(count int) {
	m.CacheEntries.Set(float64(count))
}

// RecordRuleFired increments the automation rule counter
func (m *PrometheusMetrics) RecordRuleFired(alertType, taskType string) {
	m.RulesFiredTotal.WithLabelValues(alertType, taskType).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateApplicationUptime updates the uptime gauge
func (m *PrometheusMetrics) UpdateApplicationUptime(startTime time.Time) {
	m.ApplicationUptime.Set(time.Since(startTime).Seconds())
}

// UpdateComponentHealth updates component health status
func (m *PrometheusMetrics) UpdateComponentHealth(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.ComponentHealth.WithLabelValues(component).Set(value)
}

// UpdateMemoryUsage updates memory usage metrics
func (m *PrometheusMetrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateGoroutineCount updates the goroutine count
func (m *PrometheusMetrics) UpdateGoroutineCount(count int) {
	m.GoroutineCount.Set(float64(count))
}
