package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentrelay/logging"
)

// AgentContextOptions configures a new AgentContext.
type AgentContextOptions struct {
	// RequestID correlates every output message. Generated when empty.
	RequestID string
	// MaxSteps bounds the loop. Defaults to DefaultMaxSteps.
	MaxSteps int
	// Tools are the invocation scoped capabilities, added to the agent's own.
	Tools []Tool
	// Sink receives the output stream. Defaults to a DiscardSink.
	Sink Sink
	// Memory seeds the conversation (e.g. a loaded session history).
	Memory []Message
	Logger logging.Logger
}

// AgentContext carries the mutable state of exactly one agent invocation.
//
// It is owned by the loop that runs it; the lock only protects against
// observers (tool notifications, metrics) reading while the loop writes.
// SessionID and RequestID never change after construction.
type AgentContext struct {
	Context   context.Context
	SessionID string
	RequestID string
	Tools     []Tool
	Sink      Sink

	mu      sync.Mutex
	status  Status
	steps   *StepLimiter
	memory  []Message
	pending []ToolCall

	*loggerAdapter
}

// NewAgentContext constructs an idle AgentContext.
func NewAgentContext(ctx context.Context, sessionID string, optFns ...func(o *AgentContextOptions)) *AgentContext {
	opts := AgentContextOptions{
		MaxSteps: DefaultMaxSteps,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.RequestID == "" {
		opts.RequestID = NewID()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	sink := opts.Sink
	if sink == nil {
		sink = &DiscardSink{stamp: stamp{sessionID: sessionID, requestID: opts.RequestID}}
	}
	memory := make([]Message, 0, len(opts.Memory)+4)
	for _, m := range opts.Memory {
		memory = append(memory, m.Clone())
	}
	return &AgentContext{
		Context:       ctx,
		SessionID:     sessionID,
		RequestID:     opts.RequestID,
		Tools:         opts.Tools,
		Sink:          sink,
		status:        StatusIdle,
		steps:         NewStepLimiter(opts.MaxSteps),
		memory:        memory,
		loggerAdapter: newLoggerAdapter(opts.Logger),
	}
}

// NewChildContext builds a fresh context for a delegated invocation. It shares
// the cancellation context, session, step bound and logger; its output is
// forwarded into this context's sink without the child's terminal signal.
func (ac *AgentContext) NewChildContext(seed ...Message) *AgentContext {
	return NewAgentContext(ac.Context, ac.SessionID, func(o *AgentContextOptions) {
		o.MaxSteps = ac.steps.Max()
		o.Sink = NewForwardSink(ac.Sink)
		o.Memory = seed
		o.Logger = ac.Logger()
	})
}

// Status returns the current lifecycle state.
func (ac *AgentContext) Status() Status {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return ac.status
}

func (ac *AgentContext) transition(next Status) error {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if !ac.status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ac.status, next)
	}
	ac.status = next
	return nil
}

// Start moves Idle -> Running.
func (ac *AgentContext) Start() error { return ac.transition(StatusRunning) }

// Finish moves Running -> Finished.
func (ac *AgentContext) Finish() error { return ac.transition(StatusFinished) }

// Fail moves Idle or Running -> Error.
func (ac *AgentContext) Fail() error { return ac.transition(StatusError) }

// Step returns the number of completed steps.
func (ac *AgentContext) Step() int { return ac.steps.Count() }

// MaxSteps returns the step bound.
func (ac *AgentContext) MaxSteps() int { return ac.steps.Max() }

// CanStep reports whether another step is allowed.
func (ac *AgentContext) CanStep() bool { return ac.steps.Remaining() > 0 }

// IncrementStep records a finished step. It fails with ErrStepLimit at the bound.
func (ac *AgentContext) IncrementStep() error { return ac.steps.Increment() }

// Append adds messages to memory in order.
func (ac *AgentContext) Append(msgs ...Message) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	for _, m := range msgs {
		ac.memory = append(ac.memory, m.Clone())
	}
}

// Memory returns a copy of the conversation.
func (ac *AgentContext) Memory() []Message {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	out := make([]Message, len(ac.memory))
	for i, m := range ac.memory {
		out[i] = m.Clone()
	}
	return out
}

// LastMessage returns the newest memory entry.
func (ac *AgentContext) LastMessage() (Message, bool) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if len(ac.memory) == 0 {
		return Message{}, false
	}
	return ac.memory[len(ac.memory)-1].Clone(), true
}

// ClearMemory drops the whole conversation. This is the only non-append
// mutation of memory.
func (ac *AgentContext) ClearMemory() {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.memory = ac.memory[:0]
}

// SetPendingToolCalls records the tool calls of the last model response.
func (ac *AgentContext) SetPendingToolCalls(calls []ToolCall) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.pending = append([]ToolCall(nil), calls...)
}

// PendingToolCalls returns a copy of the calls awaiting action.
func (ac *AgentContext) PendingToolCalls() []ToolCall {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return append([]ToolCall(nil), ac.pending...)
}

// HasPendingToolCalls reports whether an act step is due.
func (ac *AgentContext) HasPendingToolCalls() bool {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return len(ac.pending) > 0
}

// ClearPendingToolCalls empties the pending set once actioned.
func (ac *AgentContext) ClearPendingToolCalls() {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.pending = nil
}

// Emit pushes a typed message to the sink. Write errors after the terminal
// signal are logged and dropped.
func (ac *AgentContext) Emit(t MessageType, content any) {
	if err := ac.Sink.Emit(t, content); err != nil {
		ac.LogDebug("agent.sink.dropped", "request_id", ac.RequestID, "type", string(t), "error", err.Error())
	}
}
