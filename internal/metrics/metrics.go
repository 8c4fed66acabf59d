// Package metrics exposes Prometheus collectors for the HTTP API, the model chain and scoring.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spigell/cv-ranker/internal/ai"
	"github.com/spigell/cv-ranker/internal/queue"
)

const namespace = "cv_ranker"

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration *prometheus.SummaryVec
	requests        *prometheus.CounterVec
	modelAttempts   *prometheus.CounterVec
	scores          *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestDuration: factory.NewSummaryVec(
			prometheus.SummaryOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Objectives: map[float64]float64{
					0.5:  0.05,
					0.9:  0.01,
					0.99: 0.001,
				},
			},
			[]string{"method", "path", "status_code"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		modelAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_attempts_total",
				Help:      "Model invocations by provider, model and outcome",
			},
			[]string{"provider", "model", "outcome"},
		),
		scores: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scores_total",
				Help:      "Resolved scores by source",
			},
			[]string{"source"},
		),
	}
}

// Middleware records request counts and latency per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		ctx.Next()

		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(ctx.Writer.Status())

		m.requestDuration.WithLabelValues(ctx.Request.Method, path, status).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(ctx.Request.Method, path, status).Inc()
	}
}

// ObserveAttempt is meant for ai.WithAttemptObserver.
func (m *Metrics) ObserveAttempt(a ai.Attempt) {
	m.modelAttempts.WithLabelValues(a.Provider, a.Model, string(a.Outcome)).Inc()
}

// ObserveScore counts one resolved score.
func (m *Metrics) ObserveScore(source string) {
	m.scores.WithLabelValues(source).Inc()
}

// RegisterQueue exports serializer counters read on every scrape.
func (m *Metrics) RegisterQueue(stats func() queue.Stats) {
	gauge := func(name, help string, pick func(queue.Stats) int) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(pick(stats())) })
	}

	m.registry.MustRegister(
		gauge("pending", "Tasks waiting for the model worker", func(s queue.Stats) int { return s.Pending }),
		gauge("in_flight", "Tasks currently calling a model", func(s queue.Stats) int { return s.InFlight }),
		gauge("accepted", "Tasks accepted since start", func(s queue.Stats) int { return s.Accepted }),
		gauge("completed", "Tasks completed since start", func(s queue.Stats) int { return s.Completed }),
	)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests and for embedding into another registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
