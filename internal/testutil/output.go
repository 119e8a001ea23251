package testutil

import (
	"strings"

	"github.com/hupe1980/agentrelay/core"
)

// Types returns the type of every message in order.
func Types(msgs []core.OutputMessage) []core.MessageType {
	out := make([]core.MessageType, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

// Count returns how many messages have type t.
func Count(msgs []core.OutputMessage, t core.MessageType) int {
	n := 0
	for _, m := range msgs {
		if m.Type == t {
			n++
		}
	}
	return n
}

// Text concatenates the string content of every message of type t.
func Text(msgs []core.OutputMessage, t core.MessageType) string {
	var b strings.Builder
	for _, m := range msgs {
		if m.Type != t {
			continue
		}
		if s, ok := m.Content.(string); ok {
			b.WriteString(s)
		}
	}
	return b.String()
}

// Statuses returns the tool call payloads of messages of type t.
func Statuses(msgs []core.OutputMessage, t core.MessageType) []core.ToolCallStatus {
	var out []core.ToolCallStatus
	for _, m := range msgs {
		if m.Type != t {
			continue
		}
		if st, ok := m.Content.(core.ToolCallStatus); ok {
			out = append(out, st)
		}
	}
	return out
}

// TerminalCount returns the number of completed and error messages.
func TerminalCount(msgs []core.OutputMessage) int {
	return Count(msgs, core.MessageCompleted) + Count(msgs, core.MessageError)
}
