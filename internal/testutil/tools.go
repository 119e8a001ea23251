package testutil

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/agentrelay/core"
)

// StubTool is a configurable core.Tool that counts its calls.
type StubTool struct {
	ToolName string
	Result   any
	Err      error
	Fn       func(tc *core.ToolContext, args map[string]any) (any, error)

	calls atomic.Int32
}

// NewEchoTool returns a tool answering "<name>(<args>)".
func NewEchoTool(name string) *StubTool {
	return &StubTool{ToolName: name, Fn: func(_ *core.ToolContext, args map[string]any) (any, error) {
		return fmt.Sprintf("%s(%v)", name, args), nil
	}}
}

// NewFailingTool returns a tool that always fails with msg.
func NewFailingTool(name, msg string) *StubTool {
	return &StubTool{ToolName: name, Err: errors.New(msg)}
}

func (s *StubTool) Name() string        { return s.ToolName }
func (s *StubTool) Description() string { return "stub tool " + s.ToolName }

func (s *StubTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (s *StubTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	s.calls.Add(1)
	if s.Fn != nil {
		return s.Fn(tc, args)
	}
	return s.Result, s.Err
}

// Calls returns how often Call ran.
func (s *StubTool) Calls() int { return int(s.calls.Load()) }
