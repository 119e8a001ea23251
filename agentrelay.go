// Package agentrelay provides a high-level façade over the registry and the
// runner enabling rapid construction of tool calling and relay agent systems.
// Most applications interact with this package by:
//  1. Creating an AgentRelay via New() (optionally overriding the in‑memory session store)
//  2. Registering one or more agents (tool calling agents, relay routers, custom agents)
//  3. Invoking agents asynchronously (Invoke) or synchronously (InvokeSync)
//
// The first invocation seals the registry; registration is a startup step.
package agentrelay

import (
	"context"
	"sync"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/registry"
	"github.com/hupe1980/agentrelay/runner"
	"github.com/hupe1980/agentrelay/session"
)

// Options configures the AgentRelay instance.
type Options struct {
	// RunnerConfig holds concurrency, buffering and step bound settings.
	RunnerConfig runner.Config
	// SessionStore defaults to an in-memory implementation.
	SessionStore core.SessionStore
	// Tools are offered to every invocation.
	Tools []core.Tool
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentRelay is the high-level façade aggregating the registry and the runner.
type AgentRelay struct {
	registry *registry.Registry
	runner   *runner.Runner
	seal     sync.Once
}

// New creates a new AgentRelay instance with optional overrides.
func New(optFns ...func(o *Options)) *AgentRelay {
	opts := Options{
		RunnerConfig: runner.DefaultConfig,
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	reg := registry.New()
	r := runner.New(reg, func(o *runner.Options) {
		o.Config = opts.RunnerConfig
		o.SessionStore = opts.SessionStore
		o.Tools = opts.Tools
		o.Logger = opts.Logger
	})
	return &AgentRelay{registry: reg, runner: r}
}

// Registry exposes the agent registry, e.g. to build a relay router over it.
func (m *AgentRelay) Registry() *registry.Registry { return m.registry }

// RegisterAgent adds an agent under its own descriptor.
func (m *AgentRelay) RegisterAgent(a core.Agent) error { return m.registry.RegisterAgent(a) }

// Register adds an agent built per invocation by factory.
func (m *AgentRelay) Register(desc core.AgentDescriptor, factory registry.Factory) error {
	return m.registry.Register(desc, factory)
}

// DescribeAll lists the registered agents.
func (m *AgentRelay) DescribeAll() []core.AgentDescriptor { return m.registry.DescribeAll() }

// Invoke starts an asynchronous invocation returning the request id and the
// output stream.
func (m *AgentRelay) Invoke(ctx context.Context, sessionID, agentID, text string) (string, <-chan core.OutputMessage, error) {
	m.seal.Do(m.registry.Seal)
	return m.runner.Invoke(ctx, sessionID, agentID, text)
}

// InvokeSync runs an invocation to completion returning the final answer and
// every output message.
func (m *AgentRelay) InvokeSync(ctx context.Context, sessionID, agentID, text string) (string, []core.OutputMessage, error) {
	m.seal.Do(m.registry.Seal)
	return m.runner.InvokeSync(ctx, sessionID, agentID, text)
}

// Cancel aborts a running invocation.
func (m *AgentRelay) Cancel(requestID string) error { return m.runner.Cancel(requestID) }

// ClearSession drops the memory of a session.
func (m *AgentRelay) ClearSession(ctx context.Context, sessionID string) error {
	return m.runner.ClearSession(ctx, sessionID)
}
