package agent

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/dispatch"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/observability"
	"github.com/hupe1980/agentrelay/tag"
	"github.com/hupe1980/agentrelay/tool"
)

const (
	// DefaultSummaryPrompt asks for the final answer after the loop exits.
	DefaultSummaryPrompt = "Summarize the conversation above and give the user the final answer. Do not call any tools."
	// DefaultContinuePrompt is appended when the model would otherwise have to
	// continue its own turn.
	DefaultContinuePrompt = "continue"
)

// Phase labels a model call of the loop.
type Phase string

const (
	PhaseThink   Phase = "think"
	PhaseObserve Phase = "observe"
)

// Behavior is the specialization contract of the loop. Think interprets one
// model call and reports whether an act step is due. Act executes the pending
// calls and reports whether the agent considers its work complete.
type Behavior interface {
	Think(ac *core.AgentContext) (act bool, err error)
	Act(ac *core.AgentContext) (done bool, err error)
}

// Options configures a BaseAgent.
type Options struct {
	Instruction    Instruction
	Tools          []core.Tool
	Tags           *tag.Registry
	Streaming      bool
	SummaryPrompt  string
	ContinuePrompt string
	Dispatch       dispatch.Config
	Metrics        *observability.Metrics
	Tracer         trace.Tracer
}

// BaseAgent owns the think/act/observe loop, the step bound and the terminal
// signal. Embed it and supply a Behavior.
type BaseAgent struct {
	desc           core.AgentDescriptor
	llm            model.Model
	instruction    Instruction
	tools          []core.Tool
	tags           *tag.Registry
	streaming      bool
	summaryPrompt  string
	continuePrompt string
	dispatcher     *dispatch.Dispatcher
	metrics        *observability.Metrics
	tracer         trace.Tracer
}

// NewBaseAgent constructs a BaseAgent. Streaming is enabled by default and the
// default tag strategies are used.
func NewBaseAgent(desc core.AgentDescriptor, llm model.Model, optFns ...func(o *Options)) BaseAgent {
	opts := Options{
		Instruction:    NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", descriptorName(desc))),
		Tags:           tag.DefaultRegistry(),
		Streaming:      true,
		SummaryPrompt:  DefaultSummaryPrompt,
		ContinuePrompt: DefaultContinuePrompt,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Tags == nil {
		opts.Tags = tag.DefaultRegistry()
	}
	if opts.SummaryPrompt == "" {
		opts.SummaryPrompt = DefaultSummaryPrompt
	}
	if opts.ContinuePrompt == "" {
		opts.ContinuePrompt = DefaultContinuePrompt
	}
	if opts.Tracer == nil {
		opts.Tracer = observability.Tracer()
	}

	return BaseAgent{
		desc:           desc,
		llm:            llm,
		instruction:    opts.Instruction,
		tools:          append([]core.Tool(nil), opts.Tools...),
		tags:           opts.Tags,
		streaming:      opts.Streaming,
		summaryPrompt:  opts.SummaryPrompt,
		continuePrompt: opts.ContinuePrompt,
		dispatcher: dispatch.New(opts.Dispatch, func(o *dispatch.Options) {
			o.Metrics = opts.Metrics
			o.Tracer = opts.Tracer
		}),
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
	}
}

func descriptorName(desc core.AgentDescriptor) string {
	if desc.Name != "" {
		return desc.Name
	}
	return desc.ID
}

// Descriptor returns the static routing metadata.
func (a *BaseAgent) Descriptor() core.AgentDescriptor { return a.desc }

// Model returns the language model.
func (a *BaseAgent) Model() model.Model { return a.llm }

// Dispatcher returns the tool dispatcher.
func (a *BaseAgent) Dispatcher() *dispatch.Dispatcher { return a.dispatcher }

// Metrics returns the metrics sink, possibly nil.
func (a *BaseAgent) Metrics() *observability.Metrics { return a.metrics }

// Tools returns the agent's own tools followed by the invocation scoped ones.
// A later tool with the same name replaces an earlier one.
func (a *BaseAgent) Tools(ac *core.AgentContext) []core.Tool {
	all := make([]core.Tool, 0, len(a.tools)+len(ac.Tools))
	all = append(all, a.tools...)
	all = append(all, ac.Tools...)
	return tool.NewRegistry(all...).Tools()
}

// Request builds a model request from the instruction, memory and tools.
func (a *BaseAgent) Request(ac *core.AgentContext, tools []core.Tool) (model.Request, error) {
	instructions, err := a.instruction.Resolve(ac)
	if err != nil {
		return model.Request{}, fmt.Errorf("resolve instruction: %w", err)
	}
	req := model.Request{
		Instructions: instructions,
		Messages:     ac.Memory(),
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, model.NewToolDefinition(t))
	}
	return req, nil
}

// Generate performs one model call. Streamed text is classified by the tag
// parser while the call is still running and each segment is emitted at once;
// segments outside any tag go to defaultType. The final response is returned
// with Text holding the complete narrative.
func (a *BaseAgent) Generate(ac *core.AgentContext, phase Phase, req model.Request, defaultType core.MessageType) (model.Response, error) {
	req.ExecuteTools = false
	req.Stream = a.streaming

	ctx, span := observability.StartSpan(ac.Context, a.tracer, "agent.generate",
		attribute.String("agent.id", a.desc.ID),
		attribute.String("agent.phase", string(phase)),
	)

	respCh, errCh := a.llm.Generate(ctx, req)
	parser := a.tags.NewParser()

	var (
		final    model.Response
		gotFinal bool
		streamed strings.Builder
	)
	for resp := range respCh {
		if resp.Partial {
			if resp.Text != "" {
				streamed.WriteString(resp.Text)
				a.emitSegments(ac, parser.Feed(resp.Text), defaultType)
			}
			continue
		}
		final = resp
		gotFinal = true
	}
	var err error
	for e := range errCh {
		if e != nil && err == nil {
			err = e
		}
	}

	if streamed.Len() > 0 {
		a.emitSegments(ac, parser.Close(), defaultType)
	}
	if err == nil && !gotFinal {
		err = fmt.Errorf("%w: stream ended without a final response", model.ErrMalformedResponse)
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	a.metrics.ObserveThink(a.desc.ID, string(phase), outcome)
	observability.EndSpan(span, err)

	if err != nil {
		return model.Response{}, fmt.Errorf("model call (%s): %w", phase, err)
	}

	if streamed.Len() == 0 && final.Text != "" {
		a.emitSegments(ac, parser.Feed(final.Text), defaultType)
		a.emitSegments(ac, parser.Close(), defaultType)
	}
	if final.Text == "" {
		final.Text = streamed.String()
	}

	ac.LogDebug(
		"agent.generate.complete",
		"agent", a.desc.ID,
		"request_id", ac.RequestID,
		"phase", string(phase),
		"tool_calls", len(final.ToolCalls),
		"finish_reason", final.FinishReason,
	)

	return final, nil
}

func (a *BaseAgent) emitSegments(ac *core.AgentContext, results []tag.Result, defaultType core.MessageType) {
	for _, r := range results {
		t := r.Channel
		if t == "" {
			t = defaultType
		}
		ac.Emit(t, r.Content)
	}
}

// Observe runs the summarize pass: one model call without tools whose output
// is streamed as final_answer and appended to memory.
func (a *BaseAgent) Observe(ac *core.AgentContext) (string, error) {
	return a.ObserveWith(ac, a.summaryPrompt)
}

// ObserveWith is Observe with an explicit summary prompt.
func (a *BaseAgent) ObserveWith(ac *core.AgentContext, prompt string) (string, error) {
	req, err := a.Request(ac, nil)
	if err != nil {
		return "", err
	}
	req.Messages = append(req.Messages, core.NewUserMessage(prompt))

	resp, err := a.Generate(ac, PhaseObserve, req, core.MessageFinalAnswer)
	if err != nil {
		return "", err
	}
	ac.Append(core.NewAssistantMessage(resp.Text))
	return resp.Text, nil
}

// EnsureUserTurn appends the continue prompt unless the newest memory entry
// was authored by the user.
func (a *BaseAgent) EnsureUserTurn(ac *core.AgentContext) {
	if last, ok := ac.LastMessage(); ok && last.Role == core.RoleUser {
		return
	}
	ac.Append(core.NewUserMessage(a.continuePrompt))
}

// RunLoop drives b to completion.
//
// While steps remain it ensures a user turn, calls Think and, when calls are
// pending, Act. It stops early when Think found nothing to act on or Act
// reports completion, then runs Observe. On return ac.Sink has received
// exactly one terminal signal: completed on success, error otherwise. Panics
// in b are converted to errors.
func (a *BaseAgent) RunLoop(ac *core.AgentContext, b Behavior) (answer string, err error) {
	if err := ac.Start(); err != nil {
		return "", err
	}

	ctx, span := observability.StartSpan(ac.Context, a.tracer, "agent.run",
		attribute.String("agent.id", a.desc.ID),
		attribute.String("session.id", ac.SessionID),
		attribute.String("request.id", ac.RequestID),
	)
	parentCtx := ac.Context
	ac.Context = ctx

	ac.LogInfo("agent.run.start", "agent", a.desc.ID, "session_id", ac.SessionID, "request_id", ac.RequestID, "max_steps", ac.MaxSteps())

	defer func() {
		if r := recover(); r != nil {
			ac.LogError("agent.run.panic", "agent", a.desc.ID, "recover", r, "stack", string(debug.Stack()))
			answer, err = a.fail(ac, fmt.Errorf("agent panic: %v", r))
		}
		ac.Context = parentCtx
		observability.EndSpan(span, err)
		a.metrics.ObserveInvocation(a.desc.ID, ac.Status().String(), ac.Step())
	}()

	finished := false
	for ac.CanStep() {
		if cerr := ac.Context.Err(); cerr != nil {
			return a.fail(ac, cerr)
		}

		a.EnsureUserTurn(ac)

		act, terr := b.Think(ac)
		if terr != nil {
			return a.fail(ac, terr)
		}

		done := !act || !ac.HasPendingToolCalls()
		if !done {
			d, aerr := b.Act(ac)
			if aerr != nil {
				return a.fail(ac, aerr)
			}
			done = d
		}

		if serr := ac.IncrementStep(); serr != nil && !errors.Is(serr, core.ErrStepLimit) {
			return a.fail(ac, serr)
		}
		if done {
			finished = true
			break
		}
	}

	if !finished {
		ac.LogWarn("agent.run.step_limit", "agent", a.desc.ID, "request_id", ac.RequestID, "steps", ac.Step())
	}

	answer, err = a.Observe(ac)
	if err != nil {
		return a.fail(ac, err)
	}

	if err := ac.Finish(); err != nil {
		return a.fail(ac, err)
	}
	if err := ac.Sink.Complete(); err != nil {
		ac.LogWarn("agent.sink.complete_failed", "request_id", ac.RequestID, "error", err.Error())
	}

	ac.LogInfo("agent.run.complete", "agent", a.desc.ID, "request_id", ac.RequestID, "steps", ac.Step())

	return answer, nil
}

// fail records err as the outcome of the run and emits the error terminal.
func (a *BaseAgent) fail(ac *core.AgentContext, err error) (string, error) {
	if ac.Status().Terminal() {
		return "", err
	}
	_ = ac.Fail()

	ac.LogError("agent.run.failed", "agent", a.desc.ID, "request_id", ac.RequestID, "step", ac.Step(), "error", err.Error())

	ac.Emit(core.MessageFinalAnswer, "Error: "+err.Error())
	if ferr := ac.Sink.Fail(err.Error()); ferr != nil {
		ac.LogWarn("agent.sink.fail_failed", "request_id", ac.RequestID, "error", ferr.Error())
	}
	return "", err
}
