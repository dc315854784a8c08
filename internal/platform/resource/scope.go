// Package resource releases external processes and sessions on every exit path.
package resource

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"formsai/internal/logger"
)

// DefaultGrace is how long a graceful stop may take before the forced stop runs.
const DefaultGrace = 2 * time.Second

// ErrGraceExceeded is reported when the graceful stop did not finish in time.
var ErrGraceExceeded = errors.New("graceful stop exceeded grace period")

// Scope owns one resource. Release runs the graceful stop, and escalates to the
// forced stop when the graceful one fails or outlives the grace period. Release
// is idempotent and safe to defer alongside explicit calls.
type Scope struct {
	name     string
	graceful func() error
	forced   func() error
	grace    time.Duration
	log      *logger.Logger

	once      sync.Once
	err       error
	escalated bool
}

// Option customises a Scope.
type Option func(*Scope)

func WithGrace(d time.Duration) Option {
	return func(s *Scope) {
		if d > 0 {
			s.grace = d
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Scope) { s.log = l }
}

// New creates a scope. Either stop function may be nil.
func New(name string, graceful, forced func() error, opts ...Option) *Scope {
	s := &Scope{name: name, graceful: graceful, forced: forced, grace: DefaultGrace}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Release stops the resource once and returns the outcome of that first call.
func (s *Scope) Release() error {
	s.once.Do(func() { s.err = s.release() })
	return s.err
}

// Escalated reports whether the forced stop had to run.
func (s *Scope) Escalated() bool {
	s.Release()
	return s.escalated
}

func (s *Scope) release() error {
	gracefulErr := s.runGraceful()
	if gracefulErr == nil {
		return nil
	}
	if s.forced == nil {
		return fmt.Errorf("release %s: %w", s.name, gracefulErr)
	}
	s.escalated = true
	if s.log != nil {
		s.log.LogWarnf("Graceful stop of %s failed (%v), forcing", s.name, gracefulErr)
	}
	if err := s.forced(); err != nil {
		return fmt.Errorf("release %s: %w", s.name, errors.Join(gracefulErr, err))
	}
	return nil
}

func (s *Scope) runGraceful() error {
	if s.graceful == nil {
		return ErrGraceExceeded
	}
	done := make(chan error, 1)
	go func() { done <- s.graceful() }()
	timer := time.NewTimer(s.grace)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return ErrGraceExceeded
	}
}
