package agent

import (
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/tool"
)

// ToolCallAgent is the general purpose agent: the model narrates, asks for
// tools, the tools run concurrently and their results feed the next step.
type ToolCallAgent struct {
	BaseAgent
}

// NewToolCallAgent creates a tool calling agent.
//
// Example:
//
//	a := agent.NewToolCallAgent(
//	  core.AgentDescriptor{ID: "search", Name: "Searcher", Description: "Finds files"},
//	  llm,
//	  func(o *agent.Options) {
//	    o.Instruction = agent.NewInstructionFromText("You search the repository.")
//	    o.Tools = []core.Tool{grepTool}
//	  },
//	)
func NewToolCallAgent(desc core.AgentDescriptor, llm model.Model, optFns ...func(o *Options)) *ToolCallAgent {
	return &ToolCallAgent{BaseAgent: NewBaseAgent(desc, llm, optFns...)}
}

// Run implements core.Agent.
func (a *ToolCallAgent) Run(ac *core.AgentContext) (string, error) {
	return a.RunLoop(ac, a)
}

// Think asks the model for the next move. Narrative text streams as thinking;
// requested tool calls become pending.
func (a *ToolCallAgent) Think(ac *core.AgentContext) (bool, error) {
	req, err := a.Request(ac, a.Tools(ac))
	if err != nil {
		return false, err
	}
	resp, err := a.Generate(ac, PhaseThink, req, core.MessageThinking)
	if err != nil {
		return false, err
	}

	calls := RepairToolCallIDs(resp.ToolCalls)
	ac.Append(core.NewAssistantMessage(resp.Text, calls...))
	ac.SetPendingToolCalls(calls)

	return len(calls) > 0, nil
}

// Act dispatches every pending call and appends one aggregated tool message.
func (a *ToolCallAgent) Act(ac *core.AgentContext) (bool, error) {
	calls := ac.PendingToolCalls()
	responses := a.Dispatcher().Dispatch(ac, calls, tool.NewRegistry(a.Tools(ac)...), NewSinkObserver(ac))

	ac.Append(core.NewToolMessage(responses))
	ac.ClearPendingToolCalls()

	return false, nil
}

// RepairToolCallIDs assigns generated ids to calls that arrived without one.
func RepairToolCallIDs(calls []core.ToolCall) []core.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]core.ToolCall, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = "call_" + core.NewID()
		}
		out[i] = c
	}
	return out
}
