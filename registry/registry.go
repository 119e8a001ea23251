// Package registry holds the agents known to a process. Agents are
// registered explicitly at startup; after Seal the registry is read-only and
// lookups take no locks.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/agentrelay/core"
)

var (
	// ErrAgentNotFound is returned when no agent matches an id or name.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrDuplicateAgent is returned when an id or name is registered twice.
	ErrDuplicateAgent = errors.New("agent already registered")
	// ErrSealed is returned by Register after Seal.
	ErrSealed = errors.New("registry is sealed")
)

// Factory builds the agent serving one invocation.
type Factory func() core.Agent

// Static returns a Factory that always yields a.
func Static(a core.Agent) Factory { return func() core.Agent { return a } }

type entry struct {
	desc    core.AgentDescriptor
	factory Factory
}

type index struct {
	entries []entry
	byID    map[string]int
	byName  map[string]int
}

// Registry maps agent ids and names to factories.
type Registry struct {
	mu     sync.Mutex
	sealed atomic.Bool
	idx    index
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{idx: index{byID: map[string]int{}, byName: map[string]int{}}}
}

// Register adds an agent. IDs and names must be unique across the registry.
func (r *Registry) Register(desc core.AgentDescriptor, factory Factory) error {
	if desc.ID == "" {
		return errors.New("agent id is required")
	}
	if factory == nil {
		return fmt.Errorf("agent %q: factory is required", desc.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed.Load() {
		return fmt.Errorf("%w: cannot register %q", ErrSealed, desc.ID)
	}
	if r.idx.taken(desc.ID) {
		return fmt.Errorf("%w: %q", ErrDuplicateAgent, desc.ID)
	}
	if desc.Name != "" && desc.Name != desc.ID && r.idx.taken(desc.Name) {
		return fmt.Errorf("%w: %q", ErrDuplicateAgent, desc.Name)
	}

	r.idx.byID[desc.ID] = len(r.idx.entries)
	if desc.Name != "" {
		r.idx.byName[desc.Name] = len(r.idx.entries)
	}
	r.idx.entries = append(r.idx.entries, entry{desc: desc, factory: factory})
	return nil
}

// RegisterAgent registers a ready agent under its own descriptor.
func (r *Registry) RegisterAgent(a core.Agent) error {
	return r.Register(a.Descriptor(), Static(a))
}

// Seal freezes the registry. It is idempotent.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed.Store(true)
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool { return r.sealed.Load() }

func (idx *index) taken(key string) bool {
	_, byID := idx.byID[key]
	_, byName := idx.byName[key]
	return byID || byName
}

func (r *Registry) view(fn func(idx *index)) {
	if r.sealed.Load() {
		fn(&r.idx)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.idx)
}

// DescribeAll returns every descriptor in registration order.
func (r *Registry) DescribeAll() []core.AgentDescriptor {
	var out []core.AgentDescriptor
	r.view(func(idx *index) {
		out = make([]core.AgentDescriptor, len(idx.entries))
		for i, e := range idx.entries {
			out[i] = e.desc
		}
	})
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	n := 0
	r.view(func(idx *index) { n = len(idx.entries) })
	return n
}

// Lookup resolves an agent by id, falling back to name.
func (r *Registry) Lookup(idOrName string) (core.AgentDescriptor, Factory, bool) {
	return r.find(idOrName, idOrName)
}

func (r *Registry) find(id, name string) (desc core.AgentDescriptor, factory Factory, ok bool) {
	r.view(func(idx *index) {
		i, found := -1, false
		for _, probe := range []struct {
			key string
			m   map[string]int
		}{{id, idx.byID}, {name, idx.byName}, {id, idx.byName}, {name, idx.byID}} {
			if probe.key == "" {
				continue
			}
			if i, found = probe.m[probe.key]; found {
				break
			}
		}
		if !found {
			return
		}
		desc, factory, ok = idx.entries[i].desc, idx.entries[i].factory, true
	})
	return desc, factory, ok
}

// Invoke runs the agent identified by id, or by name when id does not match,
// on child and returns its final answer. The agent's Run owns child's
// terminal signal.
func (r *Registry) Invoke(id, name string, child *core.AgentContext) (string, error) {
	_, factory, ok := r.find(id, name)
	if !ok {
		key := id
		if key == "" {
			key = name
		}
		return "", fmt.Errorf("%w: %s", ErrAgentNotFound, key)
	}
	return factory().Run(child)
}
