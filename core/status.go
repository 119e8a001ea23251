package core

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a status change would move backwards.
var ErrInvalidTransition = errors.New("invalid status transition")

// Status is the lifecycle state of one agent invocation.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusFinished
	StatusError
)

// String returns the name of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s == StatusFinished || s == StatusError }

// CanTransition reports whether s may move to next.
// Allowed: Idle -> Running, Idle -> Error, Running -> Finished, Running -> Error.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusIdle:
		return next == StatusRunning || next == StatusError
	case StatusRunning:
		return next == StatusFinished || next == StatusError
	default:
		return false
	}
}
