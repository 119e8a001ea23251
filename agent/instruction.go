package agent

import (
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/util"
)

// Provider supplies dynamic instruction text at runtime.
// Implementations can derive instructions from the invocation, environment, etc.
type Provider interface {
	Instruction(ac *core.AgentContext) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(ac *core.AgentContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ac *core.AgentContext) (string, error) { return f(ac) }

// Instruction represents either a static instruction string or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(ac *core.AgentContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// NewInstructionFromTemplate renders text with text/template on every
// resolve. The data exposes .SessionID, .RequestID and .Step plus vars.
func NewInstructionFromTemplate(text string, vars map[string]any) Instruction {
	return NewInstructionFromFunc(func(ac *core.AgentContext) (string, error) {
		data := make(map[string]any, len(vars)+3)
		for k, v := range vars {
			data[k] = v
		}
		data["SessionID"] = ac.SessionID
		data["RequestID"] = ac.RequestID
		data["Step"] = ac.Step()
		return util.RenderTemplate(text, data)
	})
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(ac *core.AgentContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ac)
	}
	return i.text, nil
}
