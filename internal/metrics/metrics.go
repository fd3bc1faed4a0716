// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const namespace = "dailyquest"

// Metrics implements usecase.Recorder and notify.Observer on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	allocated   prometheus.Counter
	failed      prometheus.Counter
	votes       *prometheus.CounterVec
	settlements *prometheus.CounterVec
	events      *prometheus.CounterVec
	requests    *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		allocated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "allocator",
			Name:      "attempts_created_total",
			Help:      "Quest attempts handed out by the daily allocator",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "allocator",
			Name:      "attempts_failed_total",
			Help:      "Stale attempts retired as failed",
		}),
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "votes_total",
			Help:      "Validation votes by outcome",
		}, []string{"result"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "settlements_total",
			Help:      "Point settlements by outcome",
		}, []string{"result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "events_total",
			Help:      "Outbound events by name and delivery result",
		}, []string{"event", "result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by status code",
		}, []string{"code"}),
	}
	reg.MustRegister(
		m.allocated, m.failed, m.votes, m.settlements, m.events, m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Gauge registers a gauge whose value is read at scrape time.
func (m *Metrics) Gauge(subsystem, name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn))
}

func (m *Metrics) AttemptsAllocated(n int) { m.allocated.Add(float64(n)) }
func (m *Metrics) AttemptsFailed(n int)    { m.failed.Add(float64(n)) }
func (m *Metrics) VoteCast(result string)  { m.votes.WithLabelValues(result).Inc() }

func (m *Metrics) Settlement(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.settlements.WithLabelValues(result).Inc()
}

func (m *Metrics) EventDelivered(name, result string) {
	m.events.WithLabelValues(name, result).Inc()
}

// Middleware counts responses by status code.
func (m *Metrics) Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		next(ctx)
		m.requests.WithLabelValues(strconv.Itoa(ctx.Response.StatusCode())).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() fasthttp.RequestHandler {
	var h http.Handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return fasthttpadaptor.NewFastHTTPHandler(h)
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
