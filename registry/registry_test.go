package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
)

type stubAgent struct {
	desc   core.AgentDescriptor
	answer string
	runs   int
}

func (s *stubAgent) Descriptor() core.AgentDescriptor { return s.desc }

func (s *stubAgent) Run(ac *core.AgentContext) (string, error) {
	s.runs++
	_ = ac.Start()
	_ = ac.Finish()
	_ = ac.Sink.Complete()
	return s.answer, nil
}

func newStub(id, name string) *stubAgent {
	return &stubAgent{desc: core.AgentDescriptor{ID: id, Name: name, Description: name + " agent"}, answer: "from " + id}
}

func TestRegistry_DescribeAllKeepsOrder(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterAgent(newStub("b", "Beta")))
	require.NoError(t, r.RegisterAgent(newStub("a", "Alpha")))
	r.Seal()

	descs := r.DescribeAll()
	require.Len(t, descs, 2)
	assert.Equal(t, "b", descs[0].ID)
	assert.Equal(t, "a", descs[1].ID)
	assert.Equal(t, "Alpha agent", descs[1].Description)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_Duplicates(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterAgent(newStub("search", "Searcher")))

	assert.ErrorIs(t, r.RegisterAgent(newStub("search", "Other")), ErrDuplicateAgent)
	assert.ErrorIs(t, r.RegisterAgent(newStub("other", "Searcher")), ErrDuplicateAgent)
	assert.ErrorIs(t, r.RegisterAgent(newStub("Searcher", "")), ErrDuplicateAgent)
	assert.NoError(t, r.RegisterAgent(newStub("same", "same")))
}

func TestRegistry_Validation(t *testing.T) {
	r := New()
	assert.Error(t, r.Register(core.AgentDescriptor{}, Static(newStub("x", "x"))))
	assert.Error(t, r.Register(core.AgentDescriptor{ID: "x"}, nil))
}

func TestRegistry_SealRejectsRegistration(t *testing.T) {
	r := New()
	r.Seal()
	r.Seal()
	assert.True(t, r.Sealed())
	assert.ErrorIs(t, r.RegisterAgent(newStub("late", "Late")), ErrSealed)
}

func TestRegistry_Lookup(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterAgent(newStub("search", "Searcher")))

	desc, _, ok := r.Lookup("search")
	require.True(t, ok)
	assert.Equal(t, "Searcher", desc.Name)

	desc, _, ok = r.Lookup("Searcher")
	require.True(t, ok)
	assert.Equal(t, "search", desc.ID)

	_, _, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistry_Invoke(t *testing.T) {
	stub := newStub("search", "Searcher")
	r := New()
	require.NoError(t, r.RegisterAgent(stub))
	r.Seal()

	child := core.NewAgentContext(context.Background(), "s")
	answer, err := r.Invoke("", "Searcher", child)
	require.NoError(t, err)
	assert.Equal(t, "from search", answer)
	assert.Equal(t, 1, stub.runs)

	answer, err = r.Invoke("Searcher", "", core.NewAgentContext(context.Background(), "s"))
	require.NoError(t, err)
	assert.Equal(t, "from search", answer)
}

func TestRegistry_InvokeNotFound(t *testing.T) {
	r := New()
	r.Seal()

	_, err := r.Invoke("ghost", "", core.NewAgentContext(context.Background(), "s"))
	require.ErrorIs(t, err, ErrAgentNotFound)
	assert.EqualError(t, err, "agent not found: ghost")
}

func TestRegistry_FactoryPerInvocation(t *testing.T) {
	built := 0
	r := New()
	require.NoError(t, r.Register(core.AgentDescriptor{ID: "fresh"}, func() core.Agent {
		built++
		return newStub("fresh", "")
	}))
	r.Seal()

	for range 3 {
		_, err := r.Invoke("fresh", "", core.NewAgentContext(context.Background(), "s"))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, built)
}

func TestRegistry_ConcurrentReadsAfterSeal(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterAgent(newStub("a", "A")))
	r.Seal()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_, _, ok := r.Lookup("A")
				assert.True(t, ok)
				assert.Len(t, r.DescribeAll(), 1)
			}
		}()
	}
	wg.Wait()
}
