package relay

import (
	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/util"
)

// DefaultInstruction is the router system prompt. It is rendered with .Name
// (the router) and .Agents (every other registered descriptor).
const DefaultInstruction = `You are {{.Name}}, a router coordinating specialist agents. You never do the work yourself and you never answer the user's question directly.

Available agents:
{{range .Agents}}- {{.ID}} ({{.Name}}): {{.Description}}
{{end}}
On every turn call the relay tool exactly once.
To hand work to an agent set next_agent to its id, describe the task and put the relevant output of the previous agent into context. File references and conclusions must be passed through unchanged; never alter or invent them.
When the final deliverable has been produced set next_agent to null.`

// DefaultSummaryPrompt closes a relay run.
const DefaultSummaryPrompt = "Write the final answer for the user based on the conversation above. " +
	"Do not mention agent names, tool names or the routing process. " +
	"If files are referenced, list them ranked by relevance, most relevant first."

// Roster describes a registry without the router itself.
type Roster interface {
	DescribeAll() []core.AgentDescriptor
}

// RosterInstruction renders tmpl with the roster at every resolve.
func RosterInstruction(tmpl string, roster Roster, self core.AgentDescriptor) agent.Instruction {
	return agent.NewInstructionFromFunc(func(*core.AgentContext) (string, error) {
		var agents []core.AgentDescriptor
		for _, d := range roster.DescribeAll() {
			if isSelf(self, d.ID) {
				continue
			}
			agents = append(agents, d)
		}
		name := self.Name
		if name == "" {
			name = self.ID
		}
		return util.RenderTemplate(tmpl, map[string]any{"Name": name, "Agents": agents})
	})
}

func isSelf(self core.AgentDescriptor, key string) bool {
	return key != "" && (key == self.ID || key == self.Name)
}
