package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
)

const sampleYAML = `
model:
  provider: mock
  script:
    - tool_calls:
        - id: r1
          name: relay
          arguments: '{"next_agent":"search","task":"find main"}'
    - text: "main.go is it"
    - text: "main.go"
    - tool_calls:
        - id: r2
          name: relay
          arguments: '{"next_agent":null}'
    - text: "The entry point is main.go."
loop:
  max_steps: 5
  tool_timeout: 2s
  max_parallel_tools: 4
  log_tool_starts: true
agents:
  - id: search
    name: Searcher
    description: Finds files
    instruction: You search the repository.
  - id: router
    name: Router
    description: Routes work
    kind: relay
logging:
  level: debug
  format: text
metrics:
  enabled: true
`

func TestParse_DefaultsAndValues(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, ProviderMock, cfg.Model.Provider)
	assert.Len(t, cfg.Model.Script, 5)
	assert.Equal(t, 5, cfg.Loop.MaxSteps)
	assert.Equal(t, 2*time.Second, cfg.Loop.ToolTimeout)
	assert.True(t, cfg.Loop.StreamingEnabled())
	assert.Equal(t, 4, cfg.Loop.Dispatch().MaxParallel)
	assert.True(t, cfg.Loop.Dispatch().LogStartEvents)
	assert.Equal(t, KindAgent, cfg.Agents[0].Kind)
	assert.Equal(t, KindRelay, cfg.Agents[1].Kind)
	assert.Equal(t, core.AgentDescriptor{ID: "search", Name: "Searcher", Description: "Finds files"}, cfg.Agents[0].Descriptor())
	assert.Equal(t, 100, cfg.Runtime.ChannelBufferSize)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
	assert.NoError(t, cfg.Validate())
}

func TestParse_MinimalDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Parse([]byte("agents:\n  - id: a\n"))
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Model.Provider)
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
	assert.Equal(t, core.DefaultMaxSteps, cfg.Loop.MaxSteps)
	assert.Equal(t, 60*time.Second, cfg.Loop.ToolTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestParse_AnthropicKeyFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "ak-test")

	cfg, err := Parse([]byte("model:\n  provider: anthropic\nagents:\n  - id: a\n"))
	require.NoError(t, err)
	assert.Equal(t, "ak-test", cfg.Model.APIKey)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("model: [unclosed"))
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Parse([]byte(`
model:
  provider: gemini
loop:
  max_steps: -1
agents:
  - id: a
  - id: a
  - id: b
    kind: weird
tracing:
  exporter: zipkin
`))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		`unknown model provider "gemini"`,
		"loop.max_steps must be positive",
		`duplicate agent id "a"`,
		`unknown kind "weird"`,
		`unknown tracing exporter "zipkin"`,
	} {
		assert.Contains(t, err.Error(), want)
	}

	cfg, err = Parse([]byte("agents: []\n"))
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key is required")
	assert.Contains(t, err.Error(), "at least one agent")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentrelay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Agents, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuild_RunsScriptedRelay(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	var logs bytes.Buffer
	app, err := cfg.Build(func(o *BuildOptions) { o.LogOutput = &logs })
	require.NoError(t, err)
	require.NotNil(t, app.Metrics)
	require.NotNil(t, app.Gatherer)

	descs := app.Relay.DescribeAll()
	require.Len(t, descs, 2)
	assert.Equal(t, "search", descs[0].ID)

	answer, msgs, err := app.Relay.InvokeSync(context.Background(), "s1", "router", "where is main?")
	require.NoError(t, err)
	assert.Equal(t, "The entry point is main.go.", answer)
	assert.Equal(t, core.MessageCompleted, msgs[len(msgs)-1].Type)

	assert.Contains(t, logs.String(), "config.agent.registered")

	families, err := app.Gatherer.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestBuild_ModelOverride(t *testing.T) {
	cfg, err := Parse([]byte("model:\n  provider: mock\nagents:\n  - id: a\n"))
	require.NoError(t, err)

	llm := model.NewMockModel("override", "mock", model.Turn{Text: "x"}, model.Turn{Text: "y"})
	app, err := cfg.Build(func(o *BuildOptions) { o.Model = llm })
	require.NoError(t, err)

	answer, _, err := app.Relay.InvokeSync(context.Background(), "s", "a", "hi")
	require.NoError(t, err)
	assert.Equal(t, "y", answer)
	assert.Equal(t, 2, llm.Calls())
}

func TestNewModel_Providers(t *testing.T) {
	for _, provider := range []string{ProviderOpenAI, ProviderAnthropic, ProviderMock} {
		cfg := &Config{Model: ModelConfig{Provider: provider, APIKey: "k", Name: "x", RequestsPerSecond: 5, Burst: 1}}
		m, err := cfg.NewModel()
		require.NoError(t, err, provider)
		assert.Equal(t, provider, m.Info().Provider)
	}

	_, err := (&Config{Model: ModelConfig{Provider: "nope"}}).NewModel()
	assert.Error(t, err)
}

func TestScriptedModel_EchoesWhenScriptEnds(t *testing.T) {
	m := newScriptedModel(ModelConfig{})
	respCh, errCh := m.Generate(context.Background(), model.Request{Messages: []core.Message{core.NewUserMessage("ping")}})

	var final model.Response
	for r := range respCh {
		final = r
	}
	for err := range errCh {
		require.NoError(t, err)
	}
	assert.Equal(t, "echo: ping", final.Text)
}
