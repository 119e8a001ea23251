package testutil

import (
	"context"

	"github.com/hupe1980/agentrelay/core"
)

// ContextBuilder helps construct agent contexts with fluent chaining for tests.
// Example:
//
//	ac, sink := NewContextBuilder("sess-1").User("hi").MaxSteps(3).Build()
type ContextBuilder struct {
	ctx       context.Context
	sessionID string
	requestID string
	maxSteps  int
	tools     []core.Tool
	memory    []core.Message
}

// NewContextBuilder creates a new builder for a context of the given session.
func NewContextBuilder(sessionID string) *ContextBuilder {
	return &ContextBuilder{ctx: context.Background(), sessionID: sessionID, requestID: "req-" + sessionID}
}

// Context sets the cancellation context (chainable).
func (b *ContextBuilder) Context(ctx context.Context) *ContextBuilder {
	b.ctx = ctx
	return b
}

// RequestID overrides the generated request id (chainable).
func (b *ContextBuilder) RequestID(id string) *ContextBuilder {
	b.requestID = id
	return b
}

// MaxSteps sets the step bound (chainable).
func (b *ContextBuilder) MaxSteps(n int) *ContextBuilder {
	b.maxSteps = n
	return b
}

// Tools adds invocation scoped tools (chainable).
func (b *ContextBuilder) Tools(tools ...core.Tool) *ContextBuilder {
	b.tools = append(b.tools, tools...)
	return b
}

// User appends a user message to the seed memory (chainable).
func (b *ContextBuilder) User(text string) *ContextBuilder {
	b.memory = append(b.memory, core.NewUserMessage(text))
	return b
}

// Message appends arbitrary seed messages (chainable).
func (b *ContextBuilder) Message(msgs ...core.Message) *ContextBuilder {
	b.memory = append(b.memory, msgs...)
	return b
}

// Build returns the context together with the buffer sink collecting its output.
func (b *ContextBuilder) Build() (*core.AgentContext, *core.BufferSink) {
	sink := core.NewBufferSink(b.sessionID, b.requestID)
	ac := core.NewAgentContext(b.ctx, b.sessionID, func(o *core.AgentContextOptions) {
		o.RequestID = b.requestID
		o.MaxSteps = b.maxSteps
		o.Tools = b.tools
		o.Sink = sink
		o.Memory = b.memory
	})
	return ac, sink
}
