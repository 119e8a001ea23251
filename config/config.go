// Package config loads the YAML configuration of an agentrelay process and
// builds the model, the agents and the ambient stack from it.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/dispatch"
)

// Providers understood by the model section.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Agent kinds.
const (
	KindAgent = "agent"
	KindRelay = "relay"
)

// Config represents the application configuration.
type Config struct {
	Model   ModelConfig   `yaml:"model"`
	Loop    LoopConfig    `yaml:"loop"`
	Runtime RuntimeConfig `yaml:"runtime"`
	Agents  []AgentConfig `yaml:"agents"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ModelConfig selects and tunes the language model shared by all agents.
type ModelConfig struct {
	Provider          string  `yaml:"provider"` // openai, anthropic, mock
	Name              string  `yaml:"name"`
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Temperature       float64 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	// Script holds the replies of the mock provider.
	Script []ScriptTurn `yaml:"script"`
}

// ScriptTurn is one scripted mock reply.
type ScriptTurn struct {
	Text      string           `yaml:"text"`
	ToolCalls []ScriptToolCall `yaml:"tool_calls"`
}

// ScriptToolCall is a scripted tool call; Arguments is raw JSON.
type ScriptToolCall struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Arguments string `yaml:"arguments"`
}

// LoopConfig tunes the agent loop and the tool dispatcher.
type LoopConfig struct {
	MaxSteps         int           `yaml:"max_steps"`
	ToolTimeout      time.Duration `yaml:"tool_timeout"`
	MaxParallelTools int           `yaml:"max_parallel_tools"`
	Streaming        *bool         `yaml:"streaming"`
	LogToolStarts    bool          `yaml:"log_tool_starts"`
}

// StreamingEnabled reports the effective streaming flag (default true).
func (l LoopConfig) StreamingEnabled() bool { return l.Streaming == nil || *l.Streaming }

// Dispatch returns the dispatcher configuration.
func (l LoopConfig) Dispatch() dispatch.Config {
	return dispatch.Config{MaxParallel: l.MaxParallelTools, Timeout: l.ToolTimeout, LogStartEvents: l.LogToolStarts}
}

// RuntimeConfig holds runner configuration.
type RuntimeConfig struct {
	ChannelBufferSize        int `yaml:"channel_buffer_size"`
	MaxConcurrentInvocations int `yaml:"max_concurrent_invocations"`
}

// AgentConfig holds configuration for a single agent.
type AgentConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Instruction string `yaml:"instruction"`
	Kind        string `yaml:"kind"` // agent or relay
}

// Descriptor returns the routing metadata of the agent.
func (a AgentConfig) Descriptor() core.AgentDescriptor {
	return core.AgentDescriptor{ID: a.ID, Name: a.Name, Description: a.Description}
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Exporter    string            `yaml:"exporter"` // none, stdout, otlp
	Endpoint    string            `yaml:"endpoint"`
	ServiceName string            `yaml:"service_name"`
	Headers     map[string]string `yaml:"headers"`
	Insecure    bool              `yaml:"insecure"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and environment fallbacks.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Model.Provider == "" {
		c.Model.Provider = ProviderOpenAI
	}
	if c.Loop.MaxSteps == 0 {
		c.Loop.MaxSteps = core.DefaultMaxSteps
	}
	if c.Loop.ToolTimeout == 0 {
		c.Loop.ToolTimeout = dispatch.DefaultTimeout
	}
	if c.Runtime.ChannelBufferSize == 0 {
		c.Runtime.ChannelBufferSize = 100
	}
	if c.Runtime.MaxConcurrentInvocations == 0 {
		c.Runtime.MaxConcurrentInvocations = 10
	}
	for i := range c.Agents {
		if c.Agents[i].Kind == "" {
			c.Agents[i].Kind = KindAgent
		}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "none"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "agentrelay"
	}

	// Load API keys from environment if not in config
	if c.Model.APIKey == "" {
		switch c.Model.Provider {
		case ProviderOpenAI:
			c.Model.APIKey = os.Getenv("OPENAI_API_KEY")
		case ProviderAnthropic:
			c.Model.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	switch c.Model.Provider {
	case ProviderOpenAI, ProviderAnthropic:
		if c.Model.APIKey == "" {
			errs = append(errs, fmt.Errorf("model.api_key is required for provider %s", c.Model.Provider))
		}
	case ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown model provider %q", c.Model.Provider))
	}

	if c.Loop.MaxSteps < 0 {
		errs = append(errs, errors.New("loop.max_steps must be positive"))
	}
	if c.Loop.MaxParallelTools < 0 {
		errs = append(errs, errors.New("loop.max_parallel_tools must not be negative"))
	}

	if len(c.Agents) == 0 {
		errs = append(errs, errors.New("at least one agent must be configured"))
	}
	seen := map[string]bool{}
	for i, a := range c.Agents {
		if a.ID == "" {
			errs = append(errs, fmt.Errorf("agents[%d].id is required", i))
			continue
		}
		if seen[a.ID] {
			errs = append(errs, fmt.Errorf("duplicate agent id %q", a.ID))
		}
		seen[a.ID] = true
		if a.Kind != KindAgent && a.Kind != KindRelay {
			errs = append(errs, fmt.Errorf("agent %q: unknown kind %q", a.ID, a.Kind))
		}
	}

	switch c.Tracing.Exporter {
	case "none", "stdout", "otlp":
	default:
		errs = append(errs, fmt.Errorf("unknown tracing exporter %q", c.Tracing.Exporter))
	}

	return errors.Join(errs...)
}
