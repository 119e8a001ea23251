package relay

import (
	"fmt"

	"github.com/hupe1980/agentrelay/core"
)

// ToolName is the name of the single tool the router model may call.
const ToolName = "relay"

// Decision is one routing decision of the router model. An empty NextAgent
// closes the pipeline.
type Decision struct {
	NextAgent string `json:"next_agent"`
	Task      string `json:"task,omitempty"`
	Context   string `json:"context,omitempty"`
}

// Terminal reports whether the decision closes the pipeline.
func (d Decision) Terminal() bool { return d.NextAgent == "" }

// relayTool declares the routing contract to the model. The router executes
// decisions itself; Call only decodes them.
type relayTool struct{}

// NewTool constructs the relay tool.
func NewTool() core.Tool { return relayTool{} }

func (relayTool) Name() string { return ToolName }

func (relayTool) Description() string {
	return "Hand the task to the next agent, or set next_agent to null once the final deliverable has been produced."
}

func (relayTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"next_agent": map[string]any{
				"type":        []any{"string", "null"},
				"description": "ID of the agent to call next, null when the work is complete",
			},
			"task": map[string]any{
				"type":        "string",
				"description": "What the next agent has to do",
			},
			"context": map[string]any{
				"type":        "string",
				"description": "Output of the previous agent the next one needs, file references copied verbatim",
			},
		},
		"required": []string{"next_agent"},
	}
}

func (relayTool) Call(_ *core.ToolContext, args map[string]any) (any, error) {
	return ParseDecision(args)
}

// ParseDecision decodes relay tool arguments.
func ParseDecision(args map[string]any) (Decision, error) {
	var d Decision
	var err error
	if d.NextAgent, err = optionalString(args, "next_agent"); err != nil {
		return Decision{}, err
	}
	if d.Task, err = optionalString(args, "task"); err != nil {
		return Decision{}, err
	}
	if d.Context, err = optionalString(args, "context"); err != nil {
		return Decision{}, err
	}
	return d, nil
}

func optionalString(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("field '%s' must be a string", key)
	}
	return s, nil
}
