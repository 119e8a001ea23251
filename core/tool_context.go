package core

import (
	"context"

	"github.com/hupe1980/agentrelay/logging"
)

// ToolContext is the constrained surface handed to a tool for one call.
type ToolContext struct {
	ctx            context.Context
	functionCallID string
	sessionID      string
	requestID      string

	*loggerAdapter
}

// NewToolContext binds a tool call to its invocation. ctx usually carries the
// per-call deadline.
func NewToolContext(ctx context.Context, ac *AgentContext, functionCallID string) *ToolContext {
	tc := &ToolContext{ctx: ctx, functionCallID: functionCallID}
	var logger logging.Logger
	if ac != nil {
		tc.sessionID = ac.SessionID
		tc.requestID = ac.RequestID
		logger = ac.Logger()
	}
	if tc.ctx == nil {
		tc.ctx = context.Background()
	}
	tc.loggerAdapter = newLoggerAdapter(logger)
	return tc
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// SessionID returns the session ID associated with the tool invocation.
func (tc *ToolContext) SessionID() string { return tc.sessionID }

// RequestID returns the request ID associated with the tool invocation.
func (tc *ToolContext) RequestID() string { return tc.requestID }

// FunctionCallID returns the tool call ID being served.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }
