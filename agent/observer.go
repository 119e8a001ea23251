package agent

import (
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/dispatch"
)

// NewSinkObserver reports tool progress to the invocation's output stream as
// tool_call_start and tool_call_result messages.
func NewSinkObserver(ac *core.AgentContext) dispatch.Observer {
	return dispatch.ObserverFuncs{
		Start: func(call core.ToolCall) {
			ac.Emit(core.MessageToolCallStart, CallingStatus(call))
		},
		Result: func(call core.ToolCall, resp core.ToolResponse) {
			ac.Emit(core.MessageToolCallResult, ResultStatus(resp))
		},
	}
}

// CallingStatus is the tool_call_start payload of call.
func CallingStatus(call core.ToolCall) core.ToolCallStatus {
	return core.ToolCallStatus{ID: call.ID, Name: call.Name, Status: core.ToolStatusCalling}
}

// ResultStatus is the tool_call_result payload of resp.
func ResultStatus(resp core.ToolResponse) core.ToolCallStatus {
	st := core.ToolCallStatus{ID: resp.ID, Name: resp.Name, Status: core.ToolStatusSuccess, Result: resp.Result}
	if resp.Failed() {
		st.Status = core.ToolStatusFailed
		st.Result = ""
		st.Error = resp.Error
	}
	return st
}
