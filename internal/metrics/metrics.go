// Package metrics exposes Prometheus counters for conversation activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stuplan"

// Generation outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeNotReady = "not_ready"
)

// Metrics holds the counters recorded by the flow processor.
type Metrics struct {
	registry *prometheus.Registry

	StepTransitions      *prometheus.CounterVec
	ToolResults          *prometheus.CounterVec
	PersistenceErrors    *prometheus.CounterVec
	PlanGenerations      *prometheus.CounterVec
	NavigationRejections prometheus.Counter
}

// New creates the counters on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		StepTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_transitions_total",
			Help:      "Conversation step changes by source and destination step.",
		}, []string{"from", "to"}),
		ToolResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_results_total",
			Help:      "Tool results processed, by tool.",
		}, []string{"tool"}),
		PersistenceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "Swallowed persistence failures, by backend.",
		}, []string{"backend"}),
		PlanGenerations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_generations_total",
			Help:      "Plan generation attempts, by outcome.",
		}, []string{"outcome"}),
		NavigationRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navigation_rejections_total",
			Help:      "Back-navigation requests that were refused.",
		}),
	}

	m.registry.MustRegister(
		m.StepTransitions,
		m.ToolResults,
		m.PersistenceErrors,
		m.PlanGenerations,
		m.NavigationRejections,
	)
	return m
}

// Registry returns the registry the counters are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StepChanged records a move between steps. Staying on a step is not counted.
func (m *Metrics) StepChanged(from, to string) {
	if m == nil || from == to {
		return
	}
	m.StepTransitions.WithLabelValues(from, to).Inc()
}

// ToolCompleted records a processed tool result.
func (m *Metrics) ToolCompleted(tool string) {
	if m == nil {
		return
	}
	m.ToolResults.WithLabelValues(tool).Inc()
}

// PersistenceFailed records a swallowed persistence failure.
func (m *Metrics) PersistenceFailed(backend string) {
	if m == nil {
		return
	}
	m.PersistenceErrors.WithLabelValues(backend).Inc()
}

// Generation records a plan generation outcome.
func (m *Metrics) Generation(outcome string) {
	if m == nil {
		return
	}
	m.PlanGenerations.WithLabelValues(outcome).Inc()
}

// NavigationRejected records a refused navigation.
func (m *Metrics) NavigationRejected() {
	if m == nil {
		return
	}
	m.NavigationRejections.Inc()
}
