package testutil

import (
	"sync"
	"time"
)

// Epoch is the fixed start instant used by deterministic time sources.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// StepTime is a deterministic wall-time source for tests.
//
// Every call to Now() returns the previous instant plus a fixed step, so
// snapshots and journal rows get reproducible timestamps.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepTime struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// NewStepTime creates a time source starting at Epoch advancing by one
// second per call.
func NewStepTime() *StepTime {
	return NewStepTimeAt(Epoch, time.Second)
}

// NewStepTimeAt creates a time source starting at start advancing by step.
func NewStepTimeAt(start time.Time, step time.Duration) *StepTime {
	return &StepTime{next: start, step: step}
}

// Now returns the current instant and advances the source.
func (s *StepTime) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.next
	s.next = s.next.Add(s.step)
	return t
}

// Reset rewinds the source to Epoch.
func (s *StepTime) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = Epoch
}
