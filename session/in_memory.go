package session

import (
	"context"
	"sync"

	"github.com/hupe1980/agentrelay/core"
)

// InMemoryStore is a volatile SessionStore implementation storing
// conversation memory in a process local map. It is safe for concurrent
// access and best suited for tests or ephemeral demo servers. Messages are
// cloned on the way in and out to prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]core.Message
}

// NewInMemoryStore constructs an empty in‑memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string][]core.Message)}
}

// Load returns a copy of the stored messages. Unknown sessions are empty.
func (s *InMemoryStore) Load(ctx context.Context, sessionID string) ([]core.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.sessions[sessionID]), nil
}

// Save replaces the stored history of sessionID.
func (s *InMemoryStore) Save(ctx context.Context, sessionID string, messages []core.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = cloneMessages(messages)
	return nil
}

// Clear drops the history of sessionID.
func (s *InMemoryStore) Clear(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Sessions returns the number of stored sessions.
func (s *InMemoryStore) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func cloneMessages(in []core.Message) []core.Message {
	if len(in) == 0 {
		return nil
	}
	out := make([]core.Message, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}
