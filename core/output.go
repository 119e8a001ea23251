package core

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrSinkClosed is returned when writing to a sink that already received its
	// terminal signal.
	ErrSinkClosed = errors.New("output sink closed")
	// ErrSinkCanceled is returned when a message was dropped because the
	// consumer stopped reading and the invocation context was canceled.
	ErrSinkCanceled = errors.New("output sink canceled")
)

// MessageType classifies an OutputMessage for the listening client.
type MessageType string

const (
	MessageThinking       MessageType = "thinking"
	MessageToolThrough    MessageType = "tool_through"
	MessageFinalAnswer    MessageType = "final_answer"
	MessageReportResult   MessageType = "report_result"
	MessageToolCallStart  MessageType = "tool_call_start"
	MessageToolCallResult MessageType = "tool_call_result"
	MessageCompleted      MessageType = "completed"
	MessageError          MessageType = "error"
)

// Terminal reports whether the type ends an output stream.
func (t MessageType) Terminal() bool { return t == MessageCompleted || t == MessageError }

// CompletedSentinel is the content of the completed terminal message.
const CompletedSentinel = "[DONE]"

// Tool call notification states.
const (
	ToolStatusCalling = "calling"
	ToolStatusSuccess = "success"
	ToolStatusFailed  = "failed"
)

// ToolCallStatus is the payload of tool_call_start and tool_call_result messages.
type ToolCallStatus struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// OutputMessage is one typed fragment pushed to the external listener.
type OutputMessage struct {
	SessionID string      `json:"sessionId"`
	RequestID string      `json:"requestId"`
	MessageID string      `json:"messageId"`
	Type      MessageType `json:"type"`
	Content   any         `json:"content"`
}

// Sink is the write-only, ordered output channel of an invocation.
//
// Complete and Fail are terminal and emit-once: after either has been called,
// every further write returns ErrSinkClosed.
type Sink interface {
	Emit(t MessageType, content any) error
	Complete() error
	Fail(message string) error
	Closed() bool
}

// stamp assigns ids to messages and tracks the terminal state shared by all
// sink implementations.
type stamp struct {
	mu        sync.Mutex
	sessionID string
	requestID string
	closed    bool
}

// write builds the message and hands it to deliver while holding the lock so
// delivery order equals call order. Terminal types close the sink.
func (s *stamp) write(t MessageType, content any, deliver func(OutputMessage) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	if t.Terminal() {
		s.closed = true
	}
	return deliver(OutputMessage{
		SessionID: s.sessionID,
		RequestID: s.requestID,
		MessageID: NewID(),
		Type:      t,
		Content:   content,
	})
}

func (s *stamp) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ChannelSink streams messages over a Go channel. The channel is closed right
// after the terminal message has been delivered.
//
// A send waits for the consumer until ctx is done. After that, messages that
// do not fit the buffer are dropped with ErrSinkCanceled, and a terminal
// write still closes the channel.
type ChannelSink struct {
	stamp
	ch   chan OutputMessage
	done <-chan struct{}
}

// NewChannelSink creates a ChannelSink with the given buffer size bound to ctx.
func NewChannelSink(ctx context.Context, sessionID, requestID string, buffer int) *ChannelSink {
	if buffer < 0 {
		buffer = 0
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &ChannelSink{
		stamp: stamp{sessionID: sessionID, requestID: requestID},
		ch:    make(chan OutputMessage, buffer),
		done:  ctx.Done(),
	}
}

// Messages returns the receive side of the stream.
func (s *ChannelSink) Messages() <-chan OutputMessage { return s.ch }

// Emit implements Sink.
func (s *ChannelSink) Emit(t MessageType, content any) error {
	return s.write(t, content, func(m OutputMessage) error {
		if t.Terminal() {
			defer close(s.ch)
		}
		select {
		case s.ch <- m:
			return nil
		default:
		}
		select {
		case s.ch <- m:
			return nil
		case <-s.done:
			return ErrSinkCanceled
		}
	})
}

// Complete implements Sink.
func (s *ChannelSink) Complete() error { return s.Emit(MessageCompleted, CompletedSentinel) }

// Fail implements Sink.
func (s *ChannelSink) Fail(message string) error { return s.Emit(MessageError, message) }

// Closed implements Sink.
func (s *ChannelSink) Closed() bool { return s.isClosed() }

// BufferSink collects messages in memory. Useful for synchronous callers and tests.
type BufferSink struct {
	stamp
	msgs []OutputMessage
}

// NewBufferSink creates an empty BufferSink.
func NewBufferSink(sessionID, requestID string) *BufferSink {
	return &BufferSink{stamp: stamp{sessionID: sessionID, requestID: requestID}}
}

// Emit implements Sink.
func (s *BufferSink) Emit(t MessageType, content any) error {
	return s.write(t, content, func(m OutputMessage) error {
		s.msgs = append(s.msgs, m)
		return nil
	})
}

// Complete implements Sink.
func (s *BufferSink) Complete() error { return s.Emit(MessageCompleted, CompletedSentinel) }

// Fail implements Sink.
func (s *BufferSink) Fail(message string) error { return s.Emit(MessageError, message) }

// Closed implements Sink.
func (s *BufferSink) Closed() bool { return s.isClosed() }

// Messages returns a copy of everything collected so far.
func (s *BufferSink) Messages() []OutputMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OutputMessage(nil), s.msgs...)
}

// ForwardSink relays a child invocation's content messages into a parent sink.
// The child's own terminal signal only closes the ForwardSink; it never reaches
// the parent, whose stream keeps a single terminal message. Child final_answer
// segments are retyped to tool_through so only the parent answers the user.
type ForwardSink struct {
	mu     sync.Mutex
	parent Sink
	closed bool
}

// NewForwardSink wraps parent.
func NewForwardSink(parent Sink) *ForwardSink { return &ForwardSink{parent: parent} }

// Emit implements Sink.
func (s *ForwardSink) Emit(t MessageType, content any) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSinkClosed
	}
	if t.Terminal() {
		s.closed = true
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	if s.parent == nil {
		return nil
	}
	if t == MessageFinalAnswer {
		t = MessageToolThrough
	}
	return s.parent.Emit(t, content)
}

// Complete implements Sink.
func (s *ForwardSink) Complete() error { return s.Emit(MessageCompleted, CompletedSentinel) }

// Fail implements Sink.
func (s *ForwardSink) Fail(message string) error { return s.Emit(MessageError, message) }

// Closed implements Sink.
func (s *ForwardSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// DiscardSink drops every message but still honours the emit-once terminal rule.
type DiscardSink struct {
	stamp
}

// Emit implements Sink.
func (s *DiscardSink) Emit(t MessageType, content any) error {
	return s.write(t, content, func(OutputMessage) error { return nil })
}

// Complete implements Sink.
func (s *DiscardSink) Complete() error { return s.Emit(MessageCompleted, CompletedSentinel) }

// Fail implements Sink.
func (s *DiscardSink) Fail(message string) error { return s.Emit(MessageError, message) }

// Closed implements Sink.
func (s *DiscardSink) Closed() bool { return s.isClosed() }
