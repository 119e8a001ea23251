package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/registry"
	"github.com/hupe1980/agentrelay/session"
)

// ErrRunNotFound is returned by Cancel for unknown or finished requests.
var ErrRunNotFound = errors.New("run not found")

// Config holds the tunables of a Runner.
type Config struct {
	// MaxConcurrentInvocations limits the number of invocations running at
	// once. Further invocations wait for a free slot. 0 means unlimited.
	MaxConcurrentInvocations int
	// EventBufferSize sets the buffer of each output channel.
	EventBufferSize int
	// MaxSteps bounds every invocation's loop. 0 uses core.DefaultMaxSteps.
	MaxSteps int
}

// DefaultConfig provides default configuration values.
var DefaultConfig = Config{
	MaxConcurrentInvocations: 10,
	EventBufferSize:          100,
	MaxSteps:                 core.DefaultMaxSteps,
}

// Directory resolves the agent serving an invocation.
type Directory interface {
	Lookup(idOrName string) (core.AgentDescriptor, registry.Factory, bool)
}

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	Config Config
	// SessionStore persists memory between invocations of a session.
	SessionStore core.SessionStore
	// Tools are handed to every invocation in addition to the agents' own.
	Tools  []core.Tool
	Logger logging.Logger
}

// Runner coordinates invocations: it resolves the agent, loads the session
// memory, runs the agent on a fresh AgentContext streaming into a channel and
// persists the memory afterwards. Public methods are safe for concurrent use.
type Runner struct {
	directory Directory
	cfg       Config
	store     core.SessionStore
	tools     []core.Tool
	logger    logging.Logger
	sem       *semaphore.Weighted

	mu         sync.Mutex
	activeRuns map[string]context.CancelFunc
}

// New constructs a Runner with optional overrides.
func New(directory Directory, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Config:       DefaultConfig,
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Config.EventBufferSize < 0 {
		opts.Config.EventBufferSize = 0
	}

	r := &Runner{
		directory:  directory,
		cfg:        opts.Config,
		store:      opts.SessionStore,
		tools:      opts.Tools,
		logger:     opts.Logger,
		activeRuns: make(map[string]context.CancelFunc),
	}
	if opts.Config.MaxConcurrentInvocations > 0 {
		r.sem = semaphore.NewWeighted(int64(opts.Config.MaxConcurrentInvocations))
	}
	return r
}

// Result is the outcome of one invocation.
type Result struct {
	Answer string
	Err    error
}

// Invoke starts an asynchronous invocation of agentID with the user text. The
// returned channel carries every output message and is closed after the
// terminal completed or error message. Unknown agents and session load
// failures are reported synchronously.
func (r *Runner) Invoke(ctx context.Context, sessionID, agentID, text string) (string, <-chan core.OutputMessage, error) {
	requestID, msgs, _, err := r.start(ctx, sessionID, agentID, text)
	return requestID, msgs, err
}

// InvokeSync runs an invocation to completion and returns the final answer
// together with every output message. A failed run returns its error and the
// messages streamed so far.
func (r *Runner) InvokeSync(ctx context.Context, sessionID, agentID, text string) (string, []core.OutputMessage, error) {
	_, msgs, results, err := r.start(ctx, sessionID, agentID, text)
	if err != nil {
		return "", nil, err
	}
	var out []core.OutputMessage
	for m := range msgs {
		out = append(out, m)
	}
	res := <-results
	return res.Answer, out, res.Err
}

// Cancel aborts a running invocation by request id.
func (r *Runner) Cancel(requestID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[requestID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, requestID)
	}
	cancel()
	return nil
}

// ClearSession drops the stored memory of sessionID.
func (r *Runner) ClearSession(ctx context.Context, sessionID string) error {
	if err := r.store.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to clear session %s: %w", sessionID, err)
	}
	r.logger.Info("runner.session.cleared", "session_id", sessionID)
	return nil
}

func (r *Runner) start(ctx context.Context, sessionID, agentID, text string) (string, <-chan core.OutputMessage, <-chan Result, error) {
	desc, factory, ok := r.directory.Lookup(agentID)
	if !ok {
		return "", nil, nil, fmt.Errorf("%w: %s", registry.ErrAgentNotFound, agentID)
	}

	history, err := r.store.Load(ctx, sessionID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to load session: %w", err)
	}

	requestID := core.NewID()
	runCtx, cancel := context.WithCancel(ctx)
	// A consumer that stops reading can free the run by canceling.
	sink := core.NewChannelSink(runCtx, sessionID, requestID, r.cfg.EventBufferSize)
	results := make(chan Result, 1)

	r.mu.Lock()
	r.activeRuns[requestID] = cancel
	r.mu.Unlock()

	ac := core.NewAgentContext(runCtx, sessionID, func(o *core.AgentContextOptions) {
		o.RequestID = requestID
		o.MaxSteps = r.cfg.MaxSteps
		o.Tools = r.tools
		o.Sink = sink
		o.Memory = append(history, core.NewUserMessage(text))
		o.Logger = r.logger
	})

	go func() {
		defer func() {
			cancel()
			r.mu.Lock()
			delete(r.activeRuns, requestID)
			r.mu.Unlock()
			close(results)
		}()
		results <- r.run(ac, desc, factory)
	}()

	return requestID, sink.Messages(), results, nil
}

func (r *Runner) run(ac *core.AgentContext, desc core.AgentDescriptor, factory registry.Factory) (res Result) {
	start := time.Now()

	if r.sem != nil {
		if err := r.sem.Acquire(ac.Context, 1); err != nil {
			_ = ac.Fail()
			_ = ac.Sink.Fail(err.Error())
			return Result{Err: fmt.Errorf("waiting for invocation slot: %w", err)}
		}
		defer r.sem.Release(1)
	}

	r.logger.Info("runner.invoke.start", "agent", desc.ID, "session_id", ac.SessionID, "request_id", ac.RequestID)

	defer func() {
		if p := recover(); p != nil {
			res = Result{Err: fmt.Errorf("agent %s panicked: %v", desc.ID, p)}
		}
		// The agent owns the terminal signal; close the stream if it did not.
		if !ac.Sink.Closed() {
			msg := "agent returned without a terminal signal"
			if res.Err != nil {
				msg = res.Err.Error()
			}
			_ = ac.Sink.Fail(msg)
		}
		r.logger.Info(
			"runner.invoke.complete",
			"agent", desc.ID,
			"request_id", ac.RequestID,
			"status", ac.Status().String(),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", res.Err != nil,
		)
	}()

	answer, err := factory().Run(ac)
	if err != nil {
		return Result{Err: err}
	}

	// The loop context may already be canceled; persistence uses a detached one.
	saveCtx := context.WithoutCancel(ac.Context)
	if err := r.store.Save(saveCtx, ac.SessionID, ac.Memory()); err != nil {
		r.logger.Error("runner.session.save_failed", "session_id", ac.SessionID, "error", err.Error())
		return Result{Answer: answer, Err: fmt.Errorf("failed to save session: %w", err)}
	}

	return Result{Answer: answer}
}
