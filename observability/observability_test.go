package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.ObserveThink("coder", "think", "ok")
	m.ObserveToolCall("grep", "success", 20*time.Millisecond)
	m.ObserveToolCall("grep", "failed", time.Millisecond)
	m.ObserveInvocation("coder", "completed", 3)
	m.ObserveRelayHop("coder", "ok")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ThinkCalls.WithLabelValues("coder", "think", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("grep", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invocations.WithLabelValues("coder", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RelayHops.WithLabelValues("coder", "ok")))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "agentrelay_tool_calls_total")
}

func TestMetrics_ReuseRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewMetrics(reg)
	require.NoError(t, err)
	b, err := NewMetrics(reg)
	require.NoError(t, err)

	a.ObserveRelayHop("x", "ok")
	assert.Equal(t, 1.0, testutil.ToFloat64(b.RelayHops.WithLabelValues("x", "ok")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveThink("a", "think", "ok")
		m.ObserveToolCall("t", "success", time.Second)
		m.ObserveInvocation("a", "error", 1)
		m.ObserveRelayHop("a", "ok")
	})
}

func TestStartSpan_RecordsError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	_, span := StartSpan(context.Background(), tp.Tracer("test"), "agent.think", attribute.String("agent", "coder"))
	EndSpan(span, errors.New("model down"))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "agent.think", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("agent", "coder"))
}

func TestInitTracing(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{Exporter: "none"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, err = InitTracing(context.Background(), TracingConfig{Exporter: "zipkin"})
	assert.Error(t, err)
}
