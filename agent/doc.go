// Package agent implements the bounded think/act/observe loop.
//
// BaseAgent owns the loop, the step bound and the terminal signal of the
// output stream; concrete agents supply a Behavior deciding how a model
// response is interpreted (Think) and how pending tool calls are executed
// (Act). ToolCallAgent is the general tool calling agent; the relay package
// builds its router on the same loop.
//
// Execution model:
//   - One invocation runs on a single goroutine; only the tools of one act
//     step run concurrently (see package dispatch).
//   - Text streamed by the model is classified by a tag.Parser while the call
//     is still in flight and pushed to the sink segment by segment.
//   - Every exit path ends with exactly one completed or error message.
package agent
