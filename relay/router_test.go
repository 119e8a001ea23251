package relay

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/testutil"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/observability"
	"github.com/hupe1980/agentrelay/registry"
)

var (
	routerDesc = core.AgentDescriptor{ID: "router", Name: "Router", Description: "routes work"}
	searchDesc = core.AgentDescriptor{ID: "search", Name: "Searcher", Description: "finds files"}
)

func relayCall(id, args string) core.ToolCall {
	return core.ToolCall{ID: id, Name: ToolName, Arguments: args}
}

func newWorker(t *testing.T, reg *registry.Registry, turns ...model.Turn) *model.MockModel {
	t.Helper()
	llm := model.NewMockModel("worker", "mock", turns...)
	require.NoError(t, reg.RegisterAgent(agent.NewToolCallAgent(searchDesc, llm)))
	return llm
}

func toolMessages(ac *core.AgentContext) []core.Message {
	var out []core.Message
	for _, m := range ac.Memory() {
		if m.Role == core.RoleTool {
			out = append(out, m)
		}
	}
	return out
}

func TestRouter_SingleHopThenSummary(t *testing.T) {
	reg := registry.New()
	worker := newWorker(t, reg,
		model.Turn{Text: "main.go is the entry point"},
		model.Turn{Text: "main.go"},
	)
	reg.Seal()

	llm := model.NewMockModel("router", "mock",
		model.Turn{Text: "<tool_through>asking search</tool_through>", ToolCalls: []core.ToolCall{
			relayCall("r1", `{"next_agent":"search","task":"find the entry point","context":"repo: demo"}`),
		}},
		model.Turn{ToolCalls: []core.ToolCall{relayCall("r2", `{"next_agent":null}`)}},
		model.Turn{Text: "The entry point is main.go."},
	)
	router := NewRouter(routerDesc, llm, reg)
	ac, sink := testutil.NewContextBuilder("s1").User("where does the program start?").Build()

	answer, err := router.Run(ac)

	require.NoError(t, err)
	assert.Equal(t, "The entry point is main.go.", answer)
	assert.Equal(t, core.StatusFinished, ac.Status())
	assert.Equal(t, 2, worker.Calls())
	assert.Equal(t, 3, llm.Calls())

	seed := worker.Requests()[0].Messages
	require.Len(t, seed, 2)
	assert.Equal(t, core.NewAssistantMessage("repo: demo"), seed[0])
	assert.Equal(t, core.NewUserMessage("find the entry point"), seed[1])

	tools := toolMessages(ac)
	require.Len(t, tools, 2)
	assert.Equal(t, "main.go", tools[0].ToolResponses[0].Result)
	assert.Equal(t, "r1", tools[0].ToolResponses[0].ID)
	assert.Equal(t, "pipeline closed", tools[1].ToolResponses[0].Result)

	msgs := sink.Messages()
	assert.Equal(t, 1, testutil.TerminalCount(msgs))
	assert.Equal(t, core.MessageCompleted, msgs[len(msgs)-1].Type)
	// The worker's summary is relay internals; only the router answers.
	assert.Equal(t, "asking searchmain.go", testutil.Text(msgs, core.MessageToolThrough))
	assert.Equal(t, "main.go is the entry point", testutil.Text(msgs, core.MessageThinking))
	assert.Equal(t, "The entry point is main.go.", testutil.Text(msgs, core.MessageFinalAnswer))
	assert.Equal(t, 1, testutil.Count(msgs, core.MessageFinalAnswer))

	starts := testutil.Statuses(msgs, core.MessageToolCallStart)
	results := testutil.Statuses(msgs, core.MessageToolCallResult)
	require.Len(t, starts, 1)
	require.Len(t, results, 1)
	assert.Equal(t, core.ToolCallStatus{ID: "r1", Name: "search", Status: core.ToolStatusCalling}, starts[0])
	assert.Equal(t, core.ToolCallStatus{ID: "r1", Name: "search", Status: core.ToolStatusSuccess, Result: "main.go"}, results[0])

	for _, m := range msgs {
		assert.Equal(t, ac.RequestID, m.RequestID)
		assert.Equal(t, "s1", m.SessionID)
	}

	last := llm.Requests()[2].Messages
	assert.Equal(t, DefaultSummaryPrompt, last[len(last)-1].Content)
	assert.Empty(t, llm.Requests()[2].Tools)
}

func TestRouter_NoDecisionCloses(t *testing.T) {
	reg := registry.New()
	worker := newWorker(t, reg)
	reg.Seal()

	llm := model.NewMockModel("router", "mock",
		model.Turn{Text: "nothing to route"},
		model.Turn{Text: "summary"},
	)
	ac, sink := testutil.NewContextBuilder("s1").User("hi").Build()

	_, err := NewRouter(routerDesc, llm, reg).Run(ac)

	require.NoError(t, err)
	assert.Equal(t, 0, worker.Calls())
	assert.Equal(t, 1, ac.Step())
	assert.Equal(t, core.MessageCompleted, sink.Messages()[len(sink.Messages())-1].Type)
}

func TestRouter_UnknownAgentIsRecoverable(t *testing.T) {
	reg := registry.New()
	reg.Seal()

	llm := model.NewMockModel("router", "mock",
		model.Turn{ToolCalls: []core.ToolCall{relayCall("r1", `{"next_agent":"ghost","task":"x"}`)}},
		model.Turn{Text: "giving up"},
		model.Turn{Text: "summary"},
	)
	ac, sink := testutil.NewContextBuilder("s1").User("hi").Build()

	_, err := NewRouter(routerDesc, llm, reg).Run(ac)

	require.NoError(t, err)
	tools := toolMessages(ac)
	require.Len(t, tools, 1)
	assert.Equal(t, "agent not found: ghost", tools[0].ToolResponses[0].Error)
	assert.Contains(t, tools[0].Content, "agent not found")

	results := testutil.Statuses(sink.Messages(), core.MessageToolCallResult)
	require.Len(t, results, 1)
	assert.Equal(t, core.ToolStatusFailed, results[0].Status)
}

func TestRouter_RejectsBadDecisions(t *testing.T) {
	reg := registry.New()
	worker := newWorker(t, reg)
	reg.Seal()

	llm := model.NewMockModel("router", "mock",
		model.Turn{ToolCalls: []core.ToolCall{
			relayCall("self", `{"next_agent":"router","task":"loop"}`),
			relayCall("notask", `{"next_agent":"search"}`),
			relayCall("badtype", `{"next_agent":5}`),
			relayCall("badjson", `{`),
			{ID: "other", Name: "grep", Arguments: `{}`},
		}},
		model.Turn{Text: "stop"},
		model.Turn{Text: "summary"},
	)
	ac, _ := testutil.NewContextBuilder("s1").User("hi").Build()

	_, err := NewRouter(routerDesc, llm, reg).Run(ac)
	require.NoError(t, err)
	assert.Equal(t, 0, worker.Calls())

	tools := toolMessages(ac)
	require.Len(t, tools, 1)
	responses := tools[0].ToolResponses
	require.Len(t, responses, 5)
	assert.Contains(t, responses[0].Error, "cannot relay to router itself")
	assert.Contains(t, responses[1].Error, "task is required")
	assert.Contains(t, responses[2].Error, "invalid relay decision")
	assert.Contains(t, responses[3].Error, "unmarshal")
	assert.Equal(t, "tool not found: grep", responses[4].Error)
	for _, r := range responses {
		assert.True(t, r.Failed())
	}
}

func TestRouter_ChildFailureIsRecoverable(t *testing.T) {
	reg := registry.New()
	newWorker(t, reg, model.Turn{Err: errors.New("worker model down")})
	reg.Seal()

	llm := model.NewMockModel("router", "mock",
		model.Turn{ToolCalls: []core.ToolCall{relayCall("r1", `{"next_agent":"Searcher","task":"look"}`)}},
		model.Turn{ToolCalls: []core.ToolCall{relayCall("r2", `{"next_agent":null}`)}},
		model.Turn{Text: "summary"},
	)
	ac, sink := testutil.NewContextBuilder("s1").User("hi").Build()

	_, err := NewRouter(routerDesc, llm, reg).Run(ac)

	require.NoError(t, err)
	tools := toolMessages(ac)
	require.Len(t, tools, 2)
	assert.Contains(t, tools[0].ToolResponses[0].Error, "agent Searcher failed")
	assert.Contains(t, tools[0].ToolResponses[0].Error, "worker model down")

	msgs := sink.Messages()
	assert.Contains(t, testutil.Text(msgs, core.MessageToolThrough), "Error: ")
	assert.Equal(t, "summary", testutil.Text(msgs, core.MessageFinalAnswer))
	assert.Equal(t, 1, testutil.TerminalCount(msgs))
	assert.Equal(t, core.MessageCompleted, msgs[len(msgs)-1].Type)
}

func TestRouter_StepBound(t *testing.T) {
	reg := registry.New()
	worker := newWorker(t, reg)
	worker.SetResponder(func(req model.Request) model.Turn { return model.Turn{Text: "ok"} })
	reg.Seal()

	llm := model.NewMockModel("router", "mock")
	llm.SetResponder(func(req model.Request) model.Turn {
		if len(req.Tools) == 0 {
			return model.Turn{Text: "summary"}
		}
		return model.Turn{ToolCalls: []core.ToolCall{relayCall("", `{"next_agent":"search","task":"again"}`)}}
	})
	ac, sink := testutil.NewContextBuilder("s1").User("hi").MaxSteps(2).Build()

	_, err := NewRouter(routerDesc, llm, reg).Run(ac)

	require.NoError(t, err)
	assert.Equal(t, 2, ac.Step())
	assert.Equal(t, 3, llm.Calls())
	assert.Equal(t, 4, worker.Calls())
	assert.Equal(t, 1, testutil.TerminalCount(sink.Messages()))
}

func TestRouter_RosterExcludesSelf(t *testing.T) {
	reg := registry.New()
	newWorker(t, reg)

	llm := model.NewMockModel("router", "mock", model.Turn{Text: "none"}, model.Turn{Text: "summary"})
	router := NewRouter(routerDesc, llm, reg)
	require.NoError(t, reg.RegisterAgent(router))
	reg.Seal()

	ac, _ := testutil.NewContextBuilder("s1").User("hi").Build()
	_, err := router.Run(ac)
	require.NoError(t, err)

	instructions := llm.Requests()[0].Instructions
	assert.True(t, strings.HasPrefix(instructions, "You are Router,"))
	assert.Contains(t, instructions, "- search (Searcher): finds files")
	assert.NotContains(t, instructions, "- router")

	require.Len(t, llm.Requests()[0].Tools, 1)
	assert.Equal(t, ToolName, llm.Requests()[0].Tools[0].Function.Name)
}

func TestRouter_OptionsOverride(t *testing.T) {
	reg := registry.New()
	reg.Seal()

	llm := model.NewMockModel("router", "mock", model.Turn{Text: "none"}, model.Turn{Text: "summary"})
	router := NewRouter(routerDesc, llm, reg, func(o *agent.Options) {
		o.SummaryPrompt = "wrap up"
		o.Tools = []core.Tool{testutil.NewEchoTool("echo")}
	})
	ac, _ := testutil.NewContextBuilder("s1").User("hi").Build()

	_, err := router.Run(ac)
	require.NoError(t, err)

	assert.Len(t, llm.Requests()[0].Tools, 1)
	last := llm.Requests()[1].Messages
	assert.Equal(t, "wrap up", last[len(last)-1].Content)
}

func TestRouter_Metrics(t *testing.T) {
	metrics, err := observability.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	reg := registry.New()
	newWorker(t, reg, model.Turn{Text: "a"}, model.Turn{Text: "b"})
	reg.Seal()

	llm := model.NewMockModel("router", "mock",
		model.Turn{ToolCalls: []core.ToolCall{relayCall("r1", `{"next_agent":"search","task":"t"}`)}},
		model.Turn{ToolCalls: []core.ToolCall{relayCall("r2", `{"next_agent":"ghost","task":"t"}`)}},
		model.Turn{ToolCalls: []core.ToolCall{relayCall("r3", `{"next_agent":null}`)}},
		model.Turn{Text: "summary"},
	)
	ac, _ := testutil.NewContextBuilder("s1").User("hi").Build()

	_, err = NewRouter(routerDesc, llm, reg, func(o *agent.Options) { o.Metrics = metrics }).Run(ac)
	require.NoError(t, err)

	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.RelayHops.WithLabelValues("search", OutcomeSuccess)))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.RelayHops.WithLabelValues("ghost", OutcomeNotFound)))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.RelayHops.WithLabelValues("", OutcomeClosed)))
}

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision(map[string]any{"next_agent": "a", "task": "t", "context": "c"})
	require.NoError(t, err)
	assert.Equal(t, Decision{NextAgent: "a", Task: "t", Context: "c"}, d)
	assert.False(t, d.Terminal())

	d, err = ParseDecision(map[string]any{"next_agent": nil})
	require.NoError(t, err)
	assert.True(t, d.Terminal())

	_, err = ParseDecision(map[string]any{"task": 3})
	assert.Error(t, err)

	out, err := NewTool().Call(nil, map[string]any{"next_agent": "x", "task": "y"})
	require.NoError(t, err)
	assert.Equal(t, Decision{NextAgent: "x", Task: "y"}, out)
}
