// Package stats implements the "optional statistics/dashboard renderer"
// spec.md §1 names as an out-of-scope collaborator. Grounded on
// original_source's StatisticsCollector (connection/request/CGI counters,
// active-connection and active-CGI gauges), re-expressed as Prometheus
// metrics instead of the original's hand-rolled HTML/JSON dashboard
// strings, exposed by whichever location directive points at it (see
// SPEC_FULL.md §10).
package stats

import (
	"bytes"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Collector mirrors StatisticsCollector's counters and gauges as
// Prometheus instruments, registered against a private registry so the
// /__stats location can expose exactly this server's metrics.
type Collector struct {
	Registry *prometheus.Registry

	startTime time.Time

	requestsTotal    *prometheus.CounterVec
	bytesReceived    prometheus.Counter
	bytesSent        prometheus.Counter
	requestDuration  prometheus.Histogram
	timeoutsTotal    prometheus.Counter
	cgiTimeoutsTotal prometheus.Counter
	activeConns      prometheus.Gauge
	activeCgi        prometheus.Gauge
}

// New builds a Collector with all instruments registered.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		Registry:  reg,
		startTime: time.Now(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webserv_requests_total",
			Help: "Requests completed, labeled by method and status class.",
		}, []string{"method", "status"}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webserv_bytes_received_total",
			Help: "Total request bytes received.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webserv_bytes_sent_total",
			Help: "Total response bytes sent.",
		}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "webserv_request_duration_seconds",
			Help:    "Time from the request's header block arriving to its response being framed.",
			Buckets: prometheus.DefBuckets,
		}),
		timeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webserv_connection_timeouts_total",
			Help: "Connections closed for idle timeout.",
		}),
		cgiTimeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webserv_cgi_timeouts_total",
			Help: "CGI children killed for exceeding their deadline.",
		}),
		activeConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webserv_active_connections",
			Help: "Connections currently open.",
		}),
		activeCgi: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webserv_active_cgi_processes",
			Help: "CGI children currently running.",
		}),
	}
	reg.MustRegister(
		c.requestsTotal, c.bytesReceived, c.bytesSent, c.requestDuration,
		c.timeoutsTotal, c.cgiTimeoutsTotal, c.activeConns, c.activeCgi,
	)
	return c
}

// RecordRequest records one completed request, mirroring
// StatisticsCollector::recordRequest.
func (c *Collector) RecordRequest(method string, status int, bytesRx, bytesTx int, dur time.Duration) {
	c.requestsTotal.WithLabelValues(method, statusClass(status)).Inc()
	c.bytesReceived.Add(float64(bytesRx))
	c.bytesSent.Add(float64(bytesTx))
	c.requestDuration.Observe(dur.Seconds())
}

// SetActiveConnections mirrors setActiveConnections, called once per event
// loop iteration from the connection pool's current size.
func (c *Collector) SetActiveConnections(n int) { c.activeConns.Set(float64(n)) }

// SetActiveCgiProcesses mirrors setActiveCgiProcesses.
func (c *Collector) SetActiveCgiProcesses(n int) { c.activeCgi.Set(float64(n)) }

// IncrementTimeouts mirrors incrementTimeouts.
func (c *Collector) IncrementTimeouts() { c.timeoutsTotal.Inc() }

// IncrementCgiTimeouts mirrors incrementCgiTimeouts.
func (c *Collector) IncrementCgiTimeouts() { c.cgiTimeoutsTotal.Inc() }

// Uptime reports how long the collector (and by construction the server)
// has been running.
func (c *Collector) Uptime() time.Duration { return time.Since(c.startTime) }

// Expose gathers the registry into the Prometheus text exposition format —
// the same encoder promhttp.Handler uses internally — so a `stats` location
// can serve it without standing up a second net/http listener.
func (c *Collector) Expose() ([]byte, error) {
	mfs, err := c.Registry.Gather()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
