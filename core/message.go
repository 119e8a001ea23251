package core

import "strings"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the model. Arguments is the raw
// JSON payload as produced by the provider.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolResponse is the outcome of one ToolCall. Exactly one of Result or Error
// is meaningful; Error carries the failure message when the call failed.
type ToolResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Failed reports whether the response describes a failed call.
func (r ToolResponse) Failed() bool { return r.Error != "" }

// Content returns the text handed back to the model for this response.
func (r ToolResponse) Content() string {
	if r.Error != "" {
		return "Error: " + r.Error
	}
	return r.Result
}

// Message is a single conversation entry kept in an agent's memory.
//
// Assistant messages may carry ToolCalls; tool messages carry the aggregated
// ToolResponses of one act step.
type Message struct {
	Role          Role           `json:"role"`
	Content       string         `json:"content,omitempty"`
	ToolCalls     []ToolCall     `json:"tool_calls,omitempty"`
	ToolResponses []ToolResponse `json:"tool_responses,omitempty"`
}

// NewUserMessage builds a user authored message.
func NewUserMessage(text string) Message { return Message{Role: RoleUser, Content: text} }

// NewAssistantMessage builds an assistant message with optional tool calls.
func NewAssistantMessage(text string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCalls: calls}
}

// NewToolMessage builds the single tool message that aggregates every
// response of one act step.
func NewToolMessage(responses []ToolResponse) Message {
	var b strings.Builder
	for i, r := range responses {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(r.Name)
		b.WriteString(": ")
		b.WriteString(r.Content())
	}
	return Message{Role: RoleTool, Content: b.String(), ToolResponses: responses}
}

// Clone returns a deep copy with independent slices.
func (m Message) Clone() Message {
	out := m
	if m.ToolCalls != nil {
		out.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	}
	if m.ToolResponses != nil {
		out.ToolResponses = append([]ToolResponse(nil), m.ToolResponses...)
	}
	return out
}
