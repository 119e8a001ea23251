package core

import "context"

// Tool is an executable capability an agent may ask for by name.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns a JSON schema describing the accepted arguments.
	Parameters() map[string]any
	Call(toolCtx *ToolContext, args map[string]any) (any, error)
}

// AgentDescriptor is static routing metadata registered at process start.
type AgentDescriptor struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Agent runs one invocation to completion.
//
// Run owns the terminal signal of ac.Sink: on return exactly one of completed
// or error has been emitted. The returned string is the final answer.
type Agent interface {
	Descriptor() AgentDescriptor
	Run(ac *AgentContext) (string, error)
}

// SessionStore persists conversation memory between invocations.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) ([]Message, error)
	Save(ctx context.Context, sessionID string, messages []Message) error
	Clear(ctx context.Context, sessionID string) error
}
