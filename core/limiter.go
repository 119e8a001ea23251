package core

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultMaxSteps bounds the think/act iterations of one invocation.
const DefaultMaxSteps = 30

// ErrStepLimit is returned once a StepLimiter has no steps left.
var ErrStepLimit = errors.New("step limit reached")

// StepLimiter enforces the maximum number of loop steps per invocation.
// The count never exceeds max.
type StepLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewStepLimiter creates a new limiter. A max <= 0 selects DefaultMaxSteps.
func NewStepLimiter(max int) *StepLimiter {
	if max <= 0 {
		max = DefaultMaxSteps
	}
	return &StepLimiter{max: max}
}

// Increment consumes one step and returns ErrStepLimit if none was left.
func (sl *StepLimiter) Increment() error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.count >= sl.max {
		return fmt.Errorf("%w: %d", ErrStepLimit, sl.max)
	}
	sl.count++

	return nil
}

// Count returns the number of steps taken.
func (sl *StepLimiter) Count() int {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	return sl.count
}

// Max returns the configured bound.
func (sl *StepLimiter) Max() int { return sl.max }

// Remaining returns how many steps are left before hitting the limit.
func (sl *StepLimiter) Remaining() int {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	return sl.max - sl.count
}
