package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amoylab/umbra/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the messenger. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry  *prometheus.Registry
	namespace string

	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
	httpInfl   *prometheus.GaugeVec

	sessionsOnline     prometheus.Gauge
	sessionsSuperseded prometheus.Counter
	connRejected       *prometheus.CounterVec

	mailboxEnqueued prometheus.Counter
	mailboxDropped  prometheus.Counter
	mailboxDrained  *prometheus.CounterVec

	framesTotal *prometheus.CounterVec
	frameDur    *prometheus.HistogramVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	sessionsOnline := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "sessions_online"})
	sessionsSuperseded := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "sessions_superseded_total"})
	connRejected := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "connections_rejected_total"}, []string{"code"})
	r.MustRegister(sessionsOnline, sessionsSuperseded, connRejected)

	mailboxEnqueued := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "mailbox_enqueued_total"})
	mailboxDropped := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "mailbox_dropped_total"})
	mailboxDrained := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "mailbox_drained_total"}, []string{"status"})
	r.MustRegister(mailboxEnqueued, mailboxDropped, mailboxDrained)

	framesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "frames_total"}, []string{"type", "status"})
	frameDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "frame_dispatch_duration_seconds", Buckets: cfg.Buckets}, []string{"type"})
	r.MustRegister(framesTotal, frameDur)

	return &Metrics{
		registry:           r,
		namespace:          ns,
		httpReqCnt:         httpReqCnt,
		httpDur:            httpDur,
		httpInfl:           httpInfl,
		sessionsOnline:     sessionsOnline,
		sessionsSuperseded: sessionsSuperseded,
		connRejected:       connRejected,
		mailboxEnqueued:    mailboxEnqueued,
		mailboxDropped:     mailboxDropped,
		mailboxDrained:     mailboxDrained,
		framesTotal:        framesTotal,
		frameDur:           frameDur,
	}
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsOnline.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsOnline.Dec()
}

func (m *Metrics) SessionSuperseded() {
	if m == nil {
		return
	}
	m.sessionsSuperseded.Inc()
}

// ConnRejected counts handshakes closed with the given close code
func (m *Metrics) ConnRejected(code int) {
	if m == nil {
		return
	}
	m.connRejected.WithLabelValues(strconv.Itoa(code)).Inc()
}

// MailboxEnqueued counts a queued entry and, when dropped is true, the eviction it caused
func (m *Metrics) MailboxEnqueued(dropped bool) {
	if m == nil {
		return
	}
	m.mailboxEnqueued.Inc()
	if dropped {
		m.mailboxDropped.Inc()
	}
}

func (m *Metrics) MailboxDrained(delivered, failed int) {
	if m == nil {
		return
	}
	m.mailboxDrained.WithLabelValues("delivered").Add(float64(delivered))
	m.mailboxDrained.WithLabelValues("failed").Add(float64(failed))
}

// FrameDone records one dispatched frame with its outcome status
func (m *Metrics) FrameDone(msgType, status string, since time.Time) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues(msgType, status).Inc()
	m.frameDur.WithLabelValues(msgType).Observe(time.Since(since).Seconds())
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = routeFromURL(c.Request.URL.Path)
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := httpStatus(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func routeFromURL(path string) string {
	if strings.HasPrefix(path, "/ws/") {
		return "/ws/:user_id"
	}
	return path
}

func httpStatus(code int) string { return strconv.Itoa(code) }
