package tag

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentrelay/core"
)

// ErrInvalidStrategy is returned for malformed or conflicting rules.
var ErrInvalidStrategy = errors.New("invalid tag strategy")

// Strategy maps a marker pair to an output channel.
type Strategy struct {
	Start   string
	End     string
	Channel core.MessageType
}

// Registry is an ordered, immutable set of strategies.
type Registry struct {
	strategies []Strategy
}

// NewRegistry validates and stores strategies in the given order.
func NewRegistry(strategies ...Strategy) (*Registry, error) {
	seen := make(map[string]struct{}, len(strategies))
	for i, s := range strategies {
		switch {
		case s.Start == "":
			return nil, fmt.Errorf("%w: strategy %d has empty start marker", ErrInvalidStrategy, i)
		case s.End == "":
			return nil, fmt.Errorf("%w: strategy %q has empty end marker", ErrInvalidStrategy, s.Start)
		case s.Channel == "":
			return nil, fmt.Errorf("%w: strategy %q has no channel", ErrInvalidStrategy, s.Start)
		case s.Channel.Terminal():
			return nil, fmt.Errorf("%w: strategy %q maps to terminal type %q", ErrInvalidStrategy, s.Start, s.Channel)
		}
		if _, dup := seen[s.Start]; dup {
			return nil, fmt.Errorf("%w: duplicate start marker %q", ErrInvalidStrategy, s.Start)
		}
		seen[s.Start] = struct{}{}
	}
	return &Registry{strategies: append([]Strategy(nil), strategies...)}, nil
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(strategies ...Strategy) *Registry {
	r, err := NewRegistry(strategies...)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultStrategies are the markers understood by the built-in agents.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Start: "<think>", End: "</think>", Channel: core.MessageThinking},
		{Start: "<tool_through>", End: "</tool_through>", Channel: core.MessageToolThrough},
		{Start: "<final_answer>", End: "</final_answer>", Channel: core.MessageFinalAnswer},
		{Start: "<report>", End: "</report>", Channel: core.MessageReportResult},
	}
}

// DefaultRegistry returns a registry holding DefaultStrategies.
func DefaultRegistry() *Registry { return MustRegistry(DefaultStrategies()...) }

// Strategies returns a copy of the rules.
func (r *Registry) Strategies() []Strategy { return append([]Strategy(nil), r.strategies...) }

// Len returns the number of rules.
func (r *Registry) Len() int { return len(r.strategies) }

// NewParser starts a parse session over this registry.
func (r *Registry) NewParser() *Parser { return &Parser{registry: r, active: -1} }

// matchStart returns the index of the strategy whose start marker equals s.
func (r *Registry) matchStart(s string) int {
	for i, st := range r.strategies {
		if st.Start == s {
			return i
		}
	}
	return -1
}

// startPrefix reports whether s is a strict prefix of any start marker.
func (r *Registry) startPrefix(s string) bool {
	for _, st := range r.strategies {
		if len(s) < len(st.Start) && strings.HasPrefix(st.Start, s) {
			return true
		}
	}
	return false
}
