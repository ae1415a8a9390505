package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so domain components can run without a registry in tests.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Download metrics
	DownloadsQueued    *prometheus.CounterVec
	DownloadsCompleted *prometheus.CounterVec
	DownloadAttempts   prometheus.Counter
	DownloadQueueDepth *prometheus.GaugeVec
	DownloadActive     prometheus.Gauge

	// Lifecycle metrics
	AppsLoaded         prometheus.Gauge
	StateTransitions   *prometheus.CounterVec
	IgnoredTransitions *prometheus.CounterVec
	Recoveries         *prometheus.CounterVec
	DispatchedEvents   *prometheus.CounterVec

	// Collaborator call metrics
	ServiceCalls    *prometheus.CounterVec
	ServiceDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewMetrics creates a metrics collector registered with the default registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a metrics collector registered with reg
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),
		stop:      make(chan struct{}),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmanager_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appmanager_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Download metrics
		DownloadsQueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmanager_downloads_queued_total",
				Help: "Total number of downloads accepted into a queue",
			},
			[]string{"queue"},
		),
		DownloadsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmanager_downloads_completed_total",
				Help: "Total number of downloads that reached a terminal state",
			},
			[]string{"result"},
		),
		DownloadAttempts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "appmanager_download_attempts_total",
				Help: "Total number of transfer attempts, retries included",
			},
		),
		DownloadQueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "appmanager_download_queue_depth",
				Help: "Number of downloads waiting in each queue",
			},
			[]string{"queue"},
		),
		DownloadActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "appmanager_download_active",
				Help: "1 while a download is being transferred",
			},
		),

		// Lifecycle metrics
		AppsLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "appmanager_apps_loaded",
				Help: "Number of application contexts currently loaded",
			},
		),
		StateTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmanager_lifecycle_transitions_total",
				Help: "Total number of lifecycle state changes",
			},
			[]string{"from", "to"},
		),
		IgnoredTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmanager_lifecycle_ignored_events_total",
				Help: "Confirmation events ignored because no matching transition was pending",
			},
			[]string{"event"},
		),
		Recoveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmanager_lifecycle_recoveries_total",
				Help: "Unexpected terminations handled, by sub-step outcome",
			},
			[]string{"terminate", "update"},
		),
		DispatchedEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmanager_lifecycle_events_total",
				Help: "Events processed by the lifecycle dispatcher",
			},
			[]string{"kind", "name"},
		),

		// Collaborator call metrics
		ServiceCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmanager_collaborator_calls_total",
				Help: "Total number of runtime/window manager calls",
			},
			[]string{"service", "method", "status"},
		),
		ServiceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appmanager_collaborator_duration_seconds",
				Help:    "Runtime/window manager call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"service", "method"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "appmanager_ws_connections",
				Help: "Number of active notification stream connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmanager_ws_messages_total",
				Help: "Total number of notifications pushed to stream clients",
			},
			[]string{"type"},
		),

		// System metrics
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "appmanager_uptime_seconds",
				Help: "App manager uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// Close stops the uptime updater
func (m *Metrics) Close() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() { close(m.stop) })
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Uptime.Set(time.Since(m.startTime).Seconds())
		case <-m.stop:
			return
		}
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDownloadQueued records a download entering a queue
func (m *Metrics) RecordDownloadQueued(priority bool) {
	if m == nil {
		return
	}
	m.DownloadsQueued.WithLabelValues(queueLabel(priority)).Inc()
}

// SetQueueDepth sets the number of downloads waiting in a queue
func (m *Metrics) SetQueueDepth(priority bool, depth int) {
	if m == nil {
		return
	}
	m.DownloadQueueDepth.WithLabelValues(queueLabel(priority)).Set(float64(depth))
}

// RecordDownloadAttempt records one transfer attempt
func (m *Metrics) RecordDownloadAttempt() {
	if m == nil {
		return
	}
	m.DownloadAttempts.Inc()
}

// SetDownloadActive flags whether a transfer is in progress
func (m *Metrics) SetDownloadActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.DownloadActive.Set(1)
	} else {
		m.DownloadActive.Set(0)
	}
}

// RecordDownloadCompleted records a terminal download outcome
func (m *Metrics) RecordDownloadCompleted(result string) {
	if m == nil {
		return
	}
	if result == "" {
		result = "success"
	}
	m.DownloadsCompleted.WithLabelValues(result).Inc()
}

// SetAppsLoaded sets the number of loaded application contexts
func (m *Metrics) SetAppsLoaded(count int) {
	if m == nil {
		return
	}
	m.AppsLoaded.Set(float64(count))
}

// RecordStateTransition records a lifecycle state change
func (m *Metrics) RecordStateTransition(from, to string) {
	if m == nil {
		return
	}
	m.StateTransitions.WithLabelValues(from, to).Inc()
}

// RecordIgnoredTransition records a confirmation event that matched nothing
func (m *Metrics) RecordIgnoredTransition(event string) {
	if m == nil {
		return
	}
	m.IgnoredTransitions.WithLabelValues(event).Inc()
}

// RecordRecovery records the outcome of an unexpected-termination recovery
func (m *Metrics) RecordRecovery(terminateOK, updateOK bool) {
	if m == nil {
		return
	}
	m.Recoveries.WithLabelValues(strconv.FormatBool(terminateOK), strconv.FormatBool(updateOK)).Inc()
}

// RecordDispatchedEvent records an event handled by the dispatcher
func (m *Metrics) RecordDispatchedEvent(kind, name string) {
	if m == nil {
		return
	}
	m.DispatchedEvents.WithLabelValues(kind, name).Inc()
}

// RecordServiceCall records a collaborator call
func (m *Metrics) RecordServiceCall(service, method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ServiceCalls.WithLabelValues(service, method, status).Inc()
	m.ServiceDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// RecordWSMessage records a notification pushed to stream clients
func (m *Metrics) RecordWSMessage(msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

func queueLabel(priority bool) string {
	if priority {
		return "priority"
	}
	return "regular"
}
