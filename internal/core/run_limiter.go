package core

// run_limiter.go caps how many imports run at once across all containers.
//
// Each run holds a slot for its whole duration. When every slot is taken a
// new run waits up to maxWait, then fails with ErrTooManyRuns. Drain blocks
// shutdown until running imports have finished.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyRuns is returned when no run slot frees up in time.
var ErrTooManyRuns = errors.New("too many imports running, please try again later")

const (
	// DefaultMaxConcurrentRuns is the default limit for parallel imports.
	DefaultMaxConcurrentRuns = 2
	// DefaultMaxWait is how long to wait for a slot before rejecting.
	DefaultMaxWait = 30 * time.Second
)

// RunLimiter is a counting semaphore over import runs.
type RunLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	running sync.WaitGroup
}

// RunLimiterStatus is a snapshot for monitoring.
type RunLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// NewRunLimiter allows at most maxConcurrent runs. Non-positive arguments
// fall back to the defaults.
func NewRunLimiter(maxConcurrent int, maxWait time.Duration) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &RunLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting up to maxWait. The caller must Release it.
func (l *RunLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.running.Add(1)
		return nil
	case <-timer.C:
		return ErrTooManyRuns
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *RunLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.running.Add(1)
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *RunLimiter) Release() {
	<-l.slots
	l.running.Done()
}

// Active returns the number of slots in use.
func (l *RunLimiter) Active() int {
	return len(l.slots)
}

// Status returns the limiter's current state.
func (l *RunLimiter) Status() RunLimiterStatus {
	active := len(l.slots)
	return RunLimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - active,
		MaxConcurrent: cap(l.slots),
	}
}

// Drain blocks until every slot is released or ctx is done.
func (l *RunLimiter) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
