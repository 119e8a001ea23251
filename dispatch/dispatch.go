// Package dispatch executes the tool calls of one act step concurrently and
// waits for all of them, producing exactly one response per call.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/util"
	"github.com/hupe1980/agentrelay/observability"
	"github.com/hupe1980/agentrelay/tool"
)

// DefaultTimeout bounds a single tool call.
const DefaultTimeout = 60 * time.Second

// Config configures the dispatcher.
type Config struct {
	MaxParallel    int           // 0 or <1 => no explicit limit (len(calls))
	Timeout        time.Duration // per call; 0 => DefaultTimeout, <0 => none
	LogStartEvents bool          // log a start line per call
}

// Observer receives advisory progress notifications. Calls for sibling tool
// calls may interleave; for one call Start always precedes Result.
type Observer interface {
	OnToolCallStart(call core.ToolCall)
	OnToolCallResult(call core.ToolCall, resp core.ToolResponse)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Start  func(call core.ToolCall)
	Result func(call core.ToolCall, resp core.ToolResponse)
}

// OnToolCallStart implements Observer.
func (o ObserverFuncs) OnToolCallStart(call core.ToolCall) {
	if o.Start != nil {
		o.Start(call)
	}
}

// OnToolCallResult implements Observer.
func (o ObserverFuncs) OnToolCallResult(call core.ToolCall, resp core.ToolResponse) {
	if o.Result != nil {
		o.Result(call, resp)
	}
}

// Options configures optional instrumentation.
type Options struct {
	Metrics *observability.Metrics
	Tracer  trace.Tracer
}

// Dispatcher runs tool calls against a resolver.
type Dispatcher struct {
	cfg     Config
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// New constructs a dispatcher.
func New(cfg Config, optFns ...func(o *Options)) *Dispatcher {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Dispatcher{cfg: cfg, metrics: opts.Metrics, tracer: opts.Tracer}
}

// Dispatch executes calls concurrently and returns one response per call in
// request order, each carrying the id of its request. Unknown tools, invalid
// arguments, tool errors, panics and timeouts all become failed responses;
// Dispatch itself never fails. observer may be nil.
func (d *Dispatcher) Dispatch(ac *core.AgentContext, calls []core.ToolCall, resolver tool.Resolver, observer Observer) []core.ToolResponse {
	n := len(calls)
	if n == 0 {
		return nil
	}
	if observer == nil {
		observer = ObserverFuncs{}
	}

	maxPar := d.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	responses := make([]core.ToolResponse, n)
	batchStart := time.Now()

	var g errgroup.Group
	g.SetLimit(maxPar)
	for i := range calls {
		g.Go(func() error {
			responses[i] = d.execute(ac, calls[i], resolver, observer)
			return nil
		})
	}
	_ = g.Wait()

	ac.LogDebug(
		"dispatch.batch.complete",
		"request_id", ac.RequestID,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return responses
}

func (d *Dispatcher) execute(ac *core.AgentContext, call core.ToolCall, resolver tool.Resolver, observer Observer) core.ToolResponse {
	observer.OnToolCallStart(call)
	if d.cfg.LogStartEvents {
		ac.LogInfo("dispatch.tool.start", "request_id", ac.RequestID, "tool", call.Name, "tool_call_id", call.ID)
	}

	ctx, span := observability.StartSpan(ac.Context, d.tracer, "dispatch.tool",
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.ID),
	)

	start := time.Now()
	result, err := d.run(ctx, ac, call, resolver)
	dur := time.Since(start)

	resp := core.ToolResponse{ID: call.ID, Name: call.Name}
	status := core.ToolStatusSuccess
	if err != nil {
		resp.Error = failureMessage(err)
		status = core.ToolStatusFailed
	} else {
		resp.Result = stringify(result)
	}

	observability.EndSpan(span, err)
	d.metrics.ObserveToolCall(call.Name, status, dur)
	ac.LogInfo(
		"dispatch.tool.executed",
		"request_id", ac.RequestID,
		"tool", call.Name,
		"tool_call_id", call.ID,
		"duration_ms", dur.Milliseconds(),
		"error", err != nil,
	)

	observer.OnToolCallResult(call, resp)
	return resp
}

// run resolves and invokes the tool under the per-call timeout.
func (d *Dispatcher) run(ctx context.Context, ac *core.AgentContext, call core.ToolCall, resolver tool.Resolver) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("canceled before start: %w", err)
	}

	var impl tool.Tool
	ok := false
	if resolver != nil {
		impl, ok = resolver.Resolve(call.Name)
	}
	if !ok {
		return nil, tool.NewToolError(call.Name, "tool not found: "+call.Name, tool.CodeNotFound)
	}

	args, err := util.ParseArguments(call.Arguments)
	if err != nil {
		return nil, &tool.ToolError{Tool: call.Name, Message: err.Error(), Code: tool.CodeValidation}
	}

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		var o outcome
		defer func() {
			if r := recover(); r != nil {
				ac.LogError("dispatch.tool.panic", "tool", call.Name, "recover", r, "stack", string(debug.Stack()))
				o = outcome{err: tool.NewToolError(call.Name, fmt.Sprintf("panic recovered: %v", r), tool.CodePanic)}
			}
			done <- o
		}()
		o.result, o.err = impl.Call(core.NewToolContext(ctx, ac, call.ID), args)
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, tool.NewToolError(call.Name, fmt.Sprintf("timed out after %s", d.cfg.Timeout), tool.CodeTimeout)
		}
		return nil, fmt.Errorf("canceled: %w", ctx.Err())
	}
}

func failureMessage(err error) string {
	var toolErr *tool.ToolError
	if errors.As(err, &toolErr) {
		return toolErr.Message
	}
	return err.Error()
}

// stringify renders a tool result as model-facing text.
func stringify(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	case []byte:
		return string(r)
	case fmt.Stringer:
		return r.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
