package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
)

func TestBuildMessages_MergesAdjacentUserTurns(t *testing.T) {
	msgs := buildMessages([]core.Message{
		{Role: core.RoleSystem, Content: "ignored here"},
		core.NewUserMessage("list files"),
		core.NewAssistantMessage("looking", core.ToolCall{ID: "t1", Name: "ls", Arguments: `{"dir":"."}`}),
		core.NewToolMessage([]core.ToolResponse{{ID: "t1", Name: "ls", Result: "a.go"}}),
		core.NewUserMessage("continue"),
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Len(t, msgs[1].Content, 2)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	assert.Len(t, msgs[2].Content, 2)
}

func TestBuildSystem(t *testing.T) {
	blocks := buildSystem(model.Request{
		Instructions: "route tasks",
		Messages:     []core.Message{{Role: core.RoleSystem, Content: "extra"}},
	})
	require.Len(t, blocks, 2)
	assert.Equal(t, "route tasks", blocks[0].Text)
	assert.Equal(t, "extra", blocks[1].Text)
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        "relay",
			Description: "hand off",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"task": map[string]any{"type": "string"}},
				"required":   []any{"task"},
			},
		},
	}})

	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "relay", tools[0].OfTool.Name)
	assert.Equal(t, []string{"task"}, tools[0].OfTool.InputSchema.Required)
}

func TestGenerate_RejectsProviderToolExecution(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test" })
	_, errCh := m.Generate(t.Context(), model.Request{ExecuteTools: true})
	assert.ErrorIs(t, <-errCh, model.ErrToolExecutionUnsupported)
	assert.Equal(t, "anthropic", m.Info().Provider)
}
