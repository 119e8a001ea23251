package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentrelay/core"
)

// ErrNoScriptedTurn is returned by MockModel when its script is exhausted.
var ErrNoScriptedTurn = errors.New("mock model: no scripted turn left")

// Turn is one scripted model reply.
type Turn struct {
	Text      string
	ToolCalls []core.ToolCall
	// Err is returned after Text has been streamed.
	Err error
	// Delay is waited before the first chunk.
	Delay time.Duration
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// It replays scripted turns in order and records every request.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	turns     []Turn
	next      int
	requests  []Request
	chunkSize int
	respond   func(req Request) Turn
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string, turns ...Turn) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		turns:     turns,
		chunkSize: 4,
	}
}

// AddTurn appends scripted replies.
func (m *MockModel) AddTurn(turns ...Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turns...)
}

// SetResponder installs a fallback used once the script is exhausted.
func (m *MockModel) SetResponder(fn func(req Request) Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.respond = fn
}

// SetChunkSize sets how many bytes each streamed partial carries.
func (m *MockModel) SetChunkSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > 0 {
		m.chunkSize = n
	}
}

// Requests returns every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Calls returns the number of Generate invocations.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *MockModel) take(req Request) (Turn, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.next < len(m.turns) {
		t := m.turns[m.next]
		m.next++
		return t, m.chunkSize, nil
	}
	if m.respond != nil {
		return m.respond(req), m.chunkSize, nil
	}
	return Turn{}, m.chunkSize, fmt.Errorf("%w (call %d)", ErrNoScriptedTurn, len(m.requests))
}

// Generate implements Model; emits optional streaming chunks then the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	if req.ExecuteTools {
		return Failed(ErrToolExecutionUnsupported)
	}
	turn, chunk, err := m.take(req)
	if err != nil {
		return Failed(err)
	}

	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if turn.Delay > 0 {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case <-time.After(turn.Delay):
			}
		}
		if req.Stream || turn.Err != nil {
			for i := 0; i < len(turn.Text); i += chunk {
				end := min(i+chunk, len(turn.Text))
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: turn.Text[i:end]}:
				}
			}
		}
		if turn.Err != nil {
			errCh <- turn.Err
			return
		}
		finish := "stop"
		if len(turn.ToolCalls) > 0 {
			finish = "tool_calls"
		}
		respCh <- Response{
			ID:           core.NewID(),
			Partial:      false,
			Text:         turn.Text,
			ToolCalls:    append([]core.ToolCall(nil), turn.ToolCalls...),
			FinishReason: finish,
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
