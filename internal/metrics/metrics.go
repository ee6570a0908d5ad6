// Package metrics exports Prometheus series derived from bus events.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hanpama/fieldcover/internal/eventbus"
	"github.com/hanpama/fieldcover/internal/events"
)

const namespace = "fieldcover"

// Metrics owns a private registry and the collectors fed from events.
type Metrics struct {
	registry *prometheus.Registry

	evals            *prometheus.CounterVec
	evalDuration     prometheus.Histogram
	providersPerEval prometheus.Histogram
	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	remoteCalls      *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evals_total",
			Help:      "Evaluations by outcome.",
		}, []string{"outcome"}),
		evalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "eval_duration_seconds",
			Help:      "Wall time of one evaluation.",
			Buckets:   prometheus.DefBuckets,
		}),
		providersPerEval: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "eval_providers",
			Help:      "Providers executed per successful evaluation.",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16},
		}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Provider executions by provider and outcome.",
		}, []string{"provider", "outcome"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Wall time of one provider execution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Remote Eval calls by target and gRPC code.",
		}, []string{"target", "code"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by status code.",
		}, []string{"code"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.evals, m.evalDuration, m.providersPerEval,
		m.providerCalls, m.providerDuration,
		m.remoteCalls, m.httpRequests,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Subscribe feeds the collectors from the global bus.
func (m *Metrics) Subscribe() (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(_ context.Context, e events.EvalFinish) {
			m.evals.WithLabelValues(outcome(e.Err)).Inc()
			m.evalDuration.Observe(e.Duration.Seconds())
			if e.Err == nil {
				m.providersPerEval.Observe(float64(len(e.Providers)))
			}
		}),
		eventbus.Subscribe(func(_ context.Context, e events.ProviderFinish) {
			m.providerCalls.WithLabelValues(e.Provider, outcome(e.Err)).Inc()
			m.providerDuration.WithLabelValues(e.Provider).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.RemoteCallFinish) {
			m.remoteCalls.WithLabelValues(e.Target, e.Code.String()).Inc()
		}),
		eventbus.Subscribe(func(_ context.Context, e events.HTTPFinish) {
			m.httpRequests.WithLabelValues(strconv.Itoa(e.Status)).Inc()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
