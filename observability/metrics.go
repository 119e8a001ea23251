// Package observability wires Prometheus metrics and OpenTelemetry tracing
// into the agent loop, the tool dispatcher and the relay router.
//
// Every *Metrics method is nil-safe so components can run uninstrumented.
package observability

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "agentrelay"

// Metrics groups the collectors of one process.
type Metrics struct {
	ThinkCalls   *prometheus.CounterVec
	ToolCalls    *prometheus.CounterVec
	ToolDuration *prometheus.HistogramVec
	LoopSteps    *prometheus.HistogramVec
	Invocations  *prometheus.CounterVec
	RelayHops    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered. Collectors already registered on reg are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ThinkCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "think_calls_total",
				Help:      "Total number of model calls made by the agent loop",
			},
			[]string{"agent", "phase", "outcome"},
		),
		ToolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of dispatched tool calls",
			},
			[]string{"tool", "status"},
		),
		ToolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "tool_call_duration_seconds",
				Help:      "Tool call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		LoopSteps: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "loop_steps",
				Help:      "Think/act steps taken per invocation",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 30},
			},
			[]string{"agent"},
		),
		Invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "invocations_total",
				Help:      "Total number of agent invocations by terminal status",
			},
			[]string{"agent", "status"},
		),
		RelayHops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "relay_hops_total",
				Help:      "Total number of relay decisions by target agent",
			},
			[]string{"target", "outcome"},
		),
	}
	if reg == nil {
		return m, nil
	}

	m.ThinkCalls = register(reg, m.ThinkCalls)
	m.ToolCalls = register(reg, m.ToolCalls)
	m.ToolDuration = register(reg, m.ToolDuration)
	m.LoopSteps = register(reg, m.LoopSteps)
	m.Invocations = register(reg, m.Invocations)
	m.RelayHops = register(reg, m.RelayHops)

	return m, nil
}

// register adds c to reg, returning an equivalent collector already
// registered there if any.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

// ObserveThink counts one model call. phase is think or observe.
func (m *Metrics) ObserveThink(agent, phase, outcome string) {
	if m == nil {
		return
	}
	m.ThinkCalls.WithLabelValues(agent, phase, outcome).Inc()
}

// ObserveToolCall records a finished tool call.
func (m *Metrics) ObserveToolCall(tool, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, status).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveInvocation records the terminal status and step count of a run.
func (m *Metrics) ObserveInvocation(agent, status string, steps int) {
	if m == nil {
		return
	}
	m.Invocations.WithLabelValues(agent, status).Inc()
	m.LoopSteps.WithLabelValues(agent).Observe(float64(steps))
}

// ObserveRelayHop counts one routing decision.
func (m *Metrics) ObserveRelayHop(target, outcome string) {
	if m == nil {
		return
	}
	m.RelayHops.WithLabelValues(target, outcome).Inc()
}

// Handler exposes g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
