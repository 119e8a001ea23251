// Package core provides the foundational domain types, interfaces and execution
// contexts shared by every agentrelay component. It defines the core abstractions for:
//
//   - AgentContext (per-invocation state: status, step bound, memory, pending tool calls)
//   - Messages, tool calls and tool responses exchanged with a language model
//   - Output messages and sinks streaming typed fragments to a live listener
//   - Agents, their static descriptors and the tools they may call
//
// The package keeps implementation concerns (model adapters, dispatch, concrete
// agents, persistence) out of scope, exposing small interfaces so those can live
// in their own packages.
package core
