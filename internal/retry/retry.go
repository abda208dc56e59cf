// Package retry provides small retry/backoff policies for waiting on a
// contended resource for a bounded time, turning "try again" into "wait
// up to N seconds". No other package in this module imports it: the
// distributor store and the urgency-history file lock do their own
// waiting.
package retry

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

// Inspired by the code from Temporal's retry policy implementation (License: MIT License).
// https://github.com/temporalio/temporal/blob/2a1044994085bffbeeee789cad52ecf2650c501c/common/backoff/retrypolicy.go

var (
	// ErrRetriesExhausted is returned when the maximum number of retries has been reached.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrOperationCanceled is returned when the retry operation is canceled via context.
	ErrOperationCanceled = errors.New("operation canceled")
)

type (
	// Policy computes the wait interval before the next attempt.
	Policy interface {
		ComputeNextInterval(retryCount int, elapsedTime time.Duration) (time.Duration, error)
	}

	// Retrier manages the state of retry operations.
	Retrier interface {
		// Next waits for the next retry interval or returns an error if retries are exhausted.
		Next(ctx context.Context) error
		Reset()
	}
)

var (
	noMaximumAttempts = 0

	defaultBackoffFactor = 2.0
	defaultMaxInterval   = 10 * time.Second
	defaultMaxRetries    = noMaximumAttempts
)

// ExponentialPolicy doubles (by default) the wait interval on every attempt,
// capped at MaxInterval.
type ExponentialPolicy struct {
	InitialInterval time.Duration
	BackoffFactor   float64
	MaxInterval     time.Duration
	MaxRetries      int
}

// NewExponentialPolicy builds an ExponentialPolicy with sane defaults.
func NewExponentialPolicy(initialInterval time.Duration) *ExponentialPolicy {
	return &ExponentialPolicy{
		InitialInterval: initialInterval,
		BackoffFactor:   defaultBackoffFactor,
		MaxInterval:     defaultMaxInterval,
		MaxRetries:      defaultMaxRetries,
	}
}

// ComputeNextInterval implements Policy.
func (p *ExponentialPolicy) ComputeNextInterval(retryCount int, _ time.Duration) (time.Duration, error) {
	if p.MaxRetries > 0 && retryCount >= p.MaxRetries {
		return 0, ErrRetriesExhausted
	}
	interval := float64(p.InitialInterval) * math.Pow(p.BackoffFactor, float64(retryCount))
	if interval > float64(p.MaxInterval) {
		interval = float64(p.MaxInterval)
	}
	return time.Duration(interval), nil
}

// BoundedPolicy retries at a constant interval until a total deadline
// elapses — the shape the spec calls for when a lock "may block for up to
// N seconds before failing".
type BoundedPolicy struct {
	Interval time.Duration
	Deadline time.Duration
}

// NewBoundedPolicy builds a BoundedPolicy for the given wait budget.
func NewBoundedPolicy(interval, deadline time.Duration) *BoundedPolicy {
	return &BoundedPolicy{Interval: interval, Deadline: deadline}
}

// ComputeNextInterval implements Policy.
func (p *BoundedPolicy) ComputeNextInterval(_ int, elapsedTime time.Duration) (time.Duration, error) {
	if elapsedTime >= p.Deadline {
		return 0, ErrRetriesExhausted
	}
	return p.Interval, nil
}

// NewRetrier creates a new Retrier instance with the specified retry policy.
func NewRetrier(policy Policy) Retrier {
	return &retrierImpl{policy: policy}
}

type retrierImpl struct {
	policy     Policy
	retryCount int
	startTime  time.Time
	mu         sync.Mutex
}

// Next implements Retrier.
func (r *retrierImpl) Next(ctx context.Context) error {
	r.mu.Lock()
	if r.startTime.IsZero() {
		r.startTime = time.Now()
	}
	elapsed := time.Since(r.startTime)

	interval, err := r.policy.ComputeNextInterval(r.retryCount, elapsed)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.retryCount++
	r.mu.Unlock()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ErrOperationCanceled
	}
}

// Reset implements Retrier.
func (r *retrierImpl) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryCount = 0
	r.startTime = time.Time{}
}
