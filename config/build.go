package config

import (
	"fmt"
	"io"
	"os"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/agentrelay"
	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/model/anthropic"
	"github.com/hupe1980/agentrelay/model/openai"
	"github.com/hupe1980/agentrelay/observability"
	"github.com/hupe1980/agentrelay/relay"
	"github.com/hupe1980/agentrelay/runner"
)

// App is a fully wired process built from a Config.
type App struct {
	Relay    *agentrelay.AgentRelay
	Model    model.Model
	Logger   logging.Logger
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
}

// BuildOptions carries process level overrides.
type BuildOptions struct {
	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer
	// Tools are offered to every invocation.
	Tools []core.Tool
	// Model replaces the configured provider, e.g. in tests.
	Model model.Model
}

// NewLogger builds the process logger.
func (c *Config) NewLogger(w io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    c.Logging.Format,
		Output:    w,
		Component: "agentrelay",
	}), nil
}

// NewModel builds the configured language model, rate limited when
// requests_per_second is set.
func (c *Config) NewModel() (model.Model, error) {
	var m model.Model
	mc := c.Model

	switch mc.Provider {
	case ProviderOpenAI:
		m = openai.NewModel(func(o *openai.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}
			o.Temperature = mc.Temperature
			o.MaxCompletionTokens = int64(mc.MaxTokens)
			o.APIKey = mc.APIKey
			o.BaseURL = mc.BaseURL
		})
	case ProviderAnthropic:
		m = anthropic.NewModel(func(o *anthropic.Options) {
			if mc.Name != "" {
				o.Model = sdk.Model(mc.Name)
			}
			o.Temperature = mc.Temperature
			if mc.MaxTokens > 0 {
				o.MaxTokens = int64(mc.MaxTokens)
			}
			o.APIKey = mc.APIKey
			o.BaseURL = mc.BaseURL
		})
	case ProviderMock:
		m = newScriptedModel(mc)
	default:
		return nil, fmt.Errorf("unknown model provider %q", mc.Provider)
	}

	return model.WithRateLimit(m, mc.RequestsPerSecond, mc.Burst), nil
}

func newScriptedModel(mc ModelConfig) *model.MockModel {
	name := mc.Name
	if name == "" {
		name = "mock"
	}
	mock := model.NewMockModel(name, ProviderMock)
	for _, st := range mc.Script {
		turn := model.Turn{Text: st.Text}
		for _, tc := range st.ToolCalls {
			turn.ToolCalls = append(turn.ToolCalls, core.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
		mock.AddTurn(turn)
	}
	mock.SetResponder(func(req model.Request) model.Turn {
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == core.RoleUser {
				return model.Turn{Text: "echo: " + req.Messages[i].Content}
			}
		}
		return model.Turn{Text: "echo"}
	})
	return mock
}

// Build wires logger, metrics, model, runner and every configured agent.
// The configuration is validated first.
func (c *Config) Build(optFns ...func(o *BuildOptions)) (*App, error) {
	var opts BuildOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger, err := c.NewLogger(opts.LogOutput)
	if err != nil {
		return nil, err
	}

	app := &App{Logger: logger}
	if c.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metrics, err := observability.NewMetrics(reg)
		if err != nil {
			return nil, err
		}
		app.Metrics = metrics
		app.Gatherer = reg
	}

	app.Model = opts.Model
	if app.Model == nil {
		if app.Model, err = c.NewModel(); err != nil {
			return nil, err
		}
	}

	app.Relay = agentrelay.New(func(o *agentrelay.Options) {
		o.RunnerConfig = runner.Config{
			MaxConcurrentInvocations: c.Runtime.MaxConcurrentInvocations,
			EventBufferSize:          c.Runtime.ChannelBufferSize,
			MaxSteps:                 c.Loop.MaxSteps,
		}
		o.Tools = opts.Tools
		o.Logger = logger
	})

	for _, ac := range c.Agents {
		agentOpts := func(o *agent.Options) {
			if ac.Instruction != "" {
				o.Instruction = agent.NewInstructionFromText(ac.Instruction)
			}
			o.Streaming = c.Loop.StreamingEnabled()
			o.Dispatch = c.Loop.Dispatch()
			o.Metrics = app.Metrics
		}

		var a core.Agent
		switch ac.Kind {
		case KindRelay:
			a = relay.NewRouter(ac.Descriptor(), app.Model, app.Relay.Registry(), agentOpts)
		default:
			a = agent.NewToolCallAgent(ac.Descriptor(), app.Model, agentOpts)
		}
		if err := app.Relay.RegisterAgent(a); err != nil {
			return nil, err
		}
		logger.Debug("config.agent.registered", "agent", ac.ID, "kind", ac.Kind)
	}

	return app, nil
}

// TracingConfig converts the tracing section for observability.InitTracing.
func (c *Config) TracingConfig() observability.TracingConfig {
	return observability.TracingConfig{
		ServiceName: c.Tracing.ServiceName,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		Headers:     c.Tracing.Headers,
		Insecure:    c.Tracing.Insecure,
	}
}
