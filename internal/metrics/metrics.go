// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	AttendanceEvents *prometheus.CounterVec
	PhotoFailures    prometheus.Counter
	LoginAttempts    *prometheus.CounterVec
	LiveClients      prometheus.Gauge

	HostCPUPercent  prometheus.Gauge
	HostMemPercent  prometheus.Gauge
	HostDiskPercent prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_http_requests_total",
			Help: "HTTP requests by method, route template and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attendance_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route template.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		AttendanceEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_events_total",
			Help: "Recorded clock-in/clock-out activities by type.",
		}, []string{"type"}),
		PhotoFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendance_photo_upload_failures_total",
			Help: "Photos that could not be stored; the activity was recorded without one.",
		}),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_login_attempts_total",
			Help: "Session logins by result.",
		}, []string{"result"}),
		LiveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "attendance_live_clients",
			Help: "Connected live activity feed clients.",
		}),
		HostCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "attendance_host_cpu_percent",
			Help: "Host CPU utilisation sampled by the monitoring collector.",
		}),
		HostMemPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "attendance_host_memory_used_percent",
			Help: "Host memory in use.",
		}),
		HostDiskPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "attendance_host_disk_used_percent",
			Help: "Used space on the root filesystem.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.AttendanceEvents,
		m.PhotoFailures,
		m.LoginAttempts,
		m.LiveClients,
		m.HostCPUPercent,
		m.HostMemPercent,
		m.HostDiskPercent,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
