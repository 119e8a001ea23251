// Package relay implements the multi-agent relay router: a meta agent whose
// only tool is the set of other registered agents. Each step the router model
// either relays a task and context to the next agent or closes the pipeline.
package relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/util"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/registry"
)

// Relay hop outcomes recorded in metrics.
const (
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
	OutcomeClosed   = "closed"
)

// Registry is the agent directory the router relays through.
type Registry interface {
	Roster
	Invoke(id, name string, child *core.AgentContext) (string, error)
}

// Router relays work between registered agents.
type Router struct {
	agent.BaseAgent
	registry Registry
	relay    core.Tool
}

// NewRouter creates a router over reg. Unless overridden the instruction is
// DefaultInstruction rendered with the roster and the summary prompt is
// DefaultSummaryPrompt. Tools set in the options are ignored; the router only
// offers the relay tool.
func NewRouter(desc core.AgentDescriptor, llm model.Model, reg Registry, optFns ...func(o *agent.Options)) *Router {
	fns := make([]func(o *agent.Options), 0, len(optFns)+2)
	fns = append(fns, func(o *agent.Options) {
		o.Instruction = RosterInstruction(DefaultInstruction, reg, desc)
		o.SummaryPrompt = DefaultSummaryPrompt
	})
	fns = append(fns, optFns...)
	fns = append(fns, func(o *agent.Options) { o.Tools = nil })

	return &Router{BaseAgent: agent.NewBaseAgent(desc, llm, fns...), registry: reg, relay: NewTool()}
}

// Run implements core.Agent.
func (r *Router) Run(ac *core.AgentContext) (string, error) {
	return r.RunLoop(ac, r)
}

// Think asks the router model for the next routing decision. Commentary
// streams as tool_through. A response without relay calls closes the
// pipeline.
func (r *Router) Think(ac *core.AgentContext) (bool, error) {
	req, err := r.Request(ac, []core.Tool{r.relay})
	if err != nil {
		return false, err
	}
	resp, err := r.Generate(ac, agent.PhaseThink, req, core.MessageToolThrough)
	if err != nil {
		return false, err
	}

	calls := agent.RepairToolCallIDs(resp.ToolCalls)
	ac.Append(core.NewAssistantMessage(resp.Text, calls...))
	ac.SetPendingToolCalls(calls)

	if len(calls) == 0 {
		ac.LogInfo("relay.closed", "router", r.Descriptor().ID, "request_id", ac.RequestID, "reason", "no_decision")
	}
	return len(calls) > 0, nil
}

// Act executes the pending decisions one after another. Every call gets a
// response; a terminal decision ends the loop after the batch.
func (r *Router) Act(ac *core.AgentContext) (bool, error) {
	calls := ac.PendingToolCalls()
	responses := make([]core.ToolResponse, 0, len(calls))
	done := false

	for _, call := range calls {
		resp, closed := r.hop(ac, call)
		responses = append(responses, resp)
		done = done || closed
	}

	ac.Append(core.NewToolMessage(responses))
	ac.ClearPendingToolCalls()

	if done {
		ac.LogInfo("relay.closed", "router", r.Descriptor().ID, "request_id", ac.RequestID, "reason", "null_next_agent")
	}
	return done, nil
}

// hop executes one relay call and reports whether it closed the pipeline.
func (r *Router) hop(ac *core.AgentContext, call core.ToolCall) (core.ToolResponse, bool) {
	resp := core.ToolResponse{ID: call.ID, Name: call.Name}

	if call.Name != ToolName {
		resp.Error = "tool not found: " + call.Name
		ac.Emit(core.MessageToolCallStart, agent.CallingStatus(call))
		r.notify(ac, call.ID, call.Name, resp)
		return resp, false
	}

	decision, err := r.decode(call)
	if err != nil {
		resp.Error = err.Error()
		ac.Emit(core.MessageToolCallStart, agent.CallingStatus(call))
		r.notify(ac, call.ID, ToolName, resp)
		r.Metrics().ObserveRelayHop("", OutcomeRejected)
		return resp, false
	}
	if decision.Terminal() {
		resp.Result = "pipeline closed"
		r.Metrics().ObserveRelayHop("", OutcomeClosed)
		return resp, true
	}

	target := decision.NextAgent
	ac.Emit(core.MessageToolCallStart, core.ToolCallStatus{ID: call.ID, Name: target, Status: core.ToolStatusCalling})

	switch {
	case isSelf(r.Descriptor(), target):
		resp.Error = fmt.Sprintf("cannot relay to %s itself", target)
		r.Metrics().ObserveRelayHop(target, OutcomeRejected)
	case decision.Task == "":
		resp.Error = "task is required when next_agent is set"
		r.Metrics().ObserveRelayHop(target, OutcomeRejected)
	default:
		answer, outcome, err := r.invoke(ac, decision)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Result = answer
		}
		r.Metrics().ObserveRelayHop(target, outcome)
	}

	r.notify(ac, call.ID, target, resp)
	return resp, false
}

func (r *Router) decode(call core.ToolCall) (Decision, error) {
	args, err := util.ParseArguments(call.Arguments)
	if err != nil {
		return Decision{}, err
	}
	if err := util.ValidateParameters(args, r.relay.Parameters()); err != nil {
		return Decision{}, fmt.Errorf("invalid relay decision: %w", err)
	}
	return ParseDecision(args)
}

// invoke runs the target agent synchronously on a child context seeded with
// the relayed context as a prior turn and the task as the user request.
func (r *Router) invoke(ac *core.AgentContext, d Decision) (string, string, error) {
	var seed []core.Message
	if d.Context != "" {
		seed = append(seed, core.NewAssistantMessage(d.Context))
	}
	seed = append(seed, core.NewUserMessage(d.Task))
	child := ac.NewChildContext(seed...)

	ac.LogInfo("relay.hop.start", "router", r.Descriptor().ID, "request_id", ac.RequestID, "target", d.NextAgent, "child_request_id", child.RequestID)
	start := time.Now()

	answer, err := r.registry.Invoke(d.NextAgent, d.NextAgent, child)

	outcome := OutcomeSuccess
	switch {
	case errors.Is(err, registry.ErrAgentNotFound):
		outcome = OutcomeNotFound
	case err != nil:
		outcome = OutcomeError
		err = fmt.Errorf("agent %s failed: %w", d.NextAgent, err)
	}

	ac.LogInfo(
		"relay.hop.complete",
		"router", r.Descriptor().ID,
		"request_id", ac.RequestID,
		"target", d.NextAgent,
		"outcome", outcome,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return answer, outcome, err
}

func (r *Router) notify(ac *core.AgentContext, id, name string, resp core.ToolResponse) {
	st := agent.ResultStatus(resp)
	st.ID = id
	st.Name = name
	ac.Emit(core.MessageToolCallResult, st)
}
