// Package logging provides a minimal logging interface and adapters.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that agents, the dispatcher and the relay router use for observability:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "text"})
//	ac := core.NewAgentContext(ctx, "session-1", func(o *core.AgentContextOptions) { o.Logger = logger })
//
// Event names are dotted ("agent.loop.step", "dispatch.tool.executed") with
// key/value attributes.
package logging
