package model

import (
	"context"
	"errors"

	"github.com/hupe1980/agentrelay/core"
)

var (
	// ErrToolExecutionUnsupported is returned when a request asks the provider
	// to execute tools itself. Agents always execute tools on their own.
	ErrToolExecutionUnsupported = errors.New("provider-side tool execution is not supported")
	// ErrMalformedResponse marks a provider reply that cannot be interpreted.
	ErrMalformedResponse = errors.New("malformed model response")
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewToolDefinition describes t for the model.
func NewToolDefinition(t core.Tool) ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: FunctionDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}

// Request captures the normalized model input produced by agents.
type Request struct {
	Instructions string           `json:"instructions"`
	Messages     []core.Message   `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
	// ExecuteTools would let the provider run tools internally. The loop
	// keeps it false so it can observe and stream every tool call.
	ExecuteTools bool `json:"execute_tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
//
// Partial responses carry a text delta only. The final response carries the
// complete text and every tool call.
type Response struct {
	ID           string          `json:"id"`
	Partial      bool            `json:"partial"`
	Text         string          `json:"text,omitempty"`
	ToolCalls    []core.ToolCall `json:"tool_calls,omitempty"`
	FinishReason string          `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage     `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by agents to drive generation.
//
// Both channels are closed when generation ends. Implementations send at
// most one error.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Failed returns closed channels carrying err. Adapters use it for errors
// detected before any provider call.
func Failed(err error) (<-chan Response, <-chan error) {
	out := make(chan Response)
	errCh := make(chan error, 1)
	errCh <- err
	close(out)
	close(errCh)
	return out, errCh
}
