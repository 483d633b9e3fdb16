package chrono

import (
	"sync"
	"time"
)

// API is the interface that anything depending on the system clock should use.
//
// note: fault injection point
type API interface {
	Now() time.Time
}

// StandardImpl is the standard implementation of API using the standard library.
type StandardImpl struct{}

func NewStandardImpl() StandardImpl {
	return StandardImpl{}
}

func (StandardImpl) Now() time.Time {
	return time.Now().UTC()
}

// SteppedImpl is a deterministic clock, every call to Now advances it by a fixed step.
type SteppedImpl struct {
	mutex   sync.Mutex
	current time.Time
	step    time.Duration
}

func NewSteppedImpl(start time.Time, step time.Duration) *SteppedImpl {
	return &SteppedImpl{current: start, step: step}
}

func (s *SteppedImpl) Now() time.Time {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	now := s.current
	s.current = s.current.Add(s.step)
	return now
}
