package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(*core.AgentContext) (string, error) { return m.text, m.err }

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static instruction")
	assert.True(t, inst.IsStatic())

	got, err := inst.Resolve(core.NewAgentContext(context.Background(), "s"))
	require.NoError(t, err)
	assert.Equal(t, "static instruction", got)
}

func TestInstruction_Provider(t *testing.T) {
	inst := NewInstructionFromProvider(mockProvider{text: "dynamic"})
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(core.NewAgentContext(context.Background(), "s"))
	require.NoError(t, err)
	assert.Equal(t, "dynamic", got)
}

func TestInstruction_ProviderError(t *testing.T) {
	inst := NewInstructionFromProvider(mockProvider{err: errors.New("boom")})

	_, err := inst.Resolve(core.NewAgentContext(context.Background(), "s"))
	assert.EqualError(t, err, "boom")
}

func TestInstruction_Func(t *testing.T) {
	inst := NewInstructionFromFunc(func(ac *core.AgentContext) (string, error) {
		return "session " + ac.SessionID, nil
	})

	got, err := inst.Resolve(core.NewAgentContext(context.Background(), "abc"))
	require.NoError(t, err)
	assert.Equal(t, "session abc", got)
}

func TestInstruction_Template(t *testing.T) {
	inst := NewInstructionFromTemplate("You are {{.role}} in session {{.SessionID}}.", map[string]any{"role": "a researcher"})

	got, err := inst.Resolve(core.NewAgentContext(context.Background(), "s42"))
	require.NoError(t, err)
	assert.Equal(t, "You are a researcher in session s42.", got)
}
