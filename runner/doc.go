// Package runner implements the invocation layer of agentrelay.
//
// The Runner serves as the coordination hub between callers (the CLI, an
// HTTP/SSE layer) and the agents of a registry. For every invocation it
// resolves the agent, loads the session memory, appends the user message and
// runs the agent on a fresh core.AgentContext whose output streams into a
// channel. On success the resulting memory is saved back to the session store.
//
// # Responsibilities (abridged)
//   - Agent invocation orchestration (async streaming + sync helper)
//   - Bounded concurrency across invocations
//   - Session history persistence and clearing
//   - Invocation cancellation
//
// Concurrent invocations on the same session are not serialized; the last
// one to finish wins the stored history.
package runner
