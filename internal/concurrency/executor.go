// Package concurrency runs critical sections under a lease lock with a bounded retry burst.
package concurrency

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lockguard/lockguard/internal/metrics"
	"github.com/lockguard/lockguard/internal/models"
	"github.com/lockguard/lockguard/pkg/logger"
)

const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 500 * time.Millisecond

	probePrefix = "check-"
)

var tracer = otel.Tracer("github.com/lockguard/lockguard/internal/concurrency")

// Option configures an Executor.
type Option func(*Executor)

// WithAttempts sets the total number of acquisition attempts.
func WithAttempts(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.attempts = n
		}
	}
}

// WithRetryDelay sets the fixed wait between two attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(e *Executor) {
		if d >= 0 {
			e.retryDelay = d
		}
	}
}

// WithIDGenerator replaces the owner token generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Executor) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// Executor wraps work in acquire/release of a lease lock.
type Executor struct {
	logger *logger.Logger
	locks  models.LockManager

	attempts   int
	retryDelay time.Duration
	newID      func() string
}

func NewExecutor(locks models.LockManager, logger *logger.Logger, opts ...Option) *Executor {
	e := &Executor{
		logger:     logger,
		locks:      locks,
		attempts:   DefaultAttempts,
		retryDelay: DefaultRetryDelay,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes action while holding the lock on resourceID.
// See ExecuteWithLock.
func (e *Executor) Run(ctx context.Context, resourceID string, action func(ctx context.Context) error) error {
	_, err := ExecuteWithLock(ctx, e, resourceID, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, action(ctx)
	})
	return err
}

// ExecuteWithLock acquires resourceID under a fresh owner token, runs action once and
// releases the lock before returning, whatever action returned.
//
// Acquisition is attempted up to the configured number of times with a fixed delay
// between attempts. When every attempt fails the returned error has kind
// LockAcquisitionExhausted and action is not called. Cancelling ctx during a wait
// returns an error of kind WaitInterrupted wrapping ctx.Err().
func ExecuteWithLock[T any](ctx context.Context, e *Executor, resourceID string, action func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	ctx, span := tracer.Start(ctx, "Executor.ExecuteWithLock",
		trace.WithAttributes(attribute.String("lockguard.resource", resourceID)))
	defer span.End()

	processID := e.newID()
	acquired, attempts, err := e.acquire(ctx, resourceID, processID)
	span.SetAttributes(attribute.Int("lockguard.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return zero, err
	}
	if !acquired {
		metrics.ExecutorCounter.WithLabelValues(metrics.ResultExhausted).Inc()
		e.logger.Warnw("Could not acquire lock", "resource", resourceID, "attempts", attempts)
		err := &Error{Kind: LockAcquisitionExhausted, ResourceID: resourceID, Attempts: attempts}
		span.SetStatus(codes.Error, err.Error())
		return zero, err
	}

	// Release must run even when ctx is already cancelled.
	defer e.locks.Release(context.WithoutCancel(ctx), resourceID, processID)

	metrics.ExecutorCounter.WithLabelValues(metrics.ResultExecuted).Inc()
	result, err := action(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	return result, nil
}

func (e *Executor) acquire(ctx context.Context, resourceID, processID string) (bool, int, error) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 1; attempt <= e.attempts; attempt++ {
		if e.locks.Acquire(ctx, resourceID, processID, resourceID) {
			return true, attempt, nil
		}
		if attempt == e.attempts {
			return false, attempt, nil
		}

		e.logger.Debugw("Lock busy, retrying", "resource", resourceID, "attempt", attempt, "delay", e.retryDelay)
		if timer == nil {
			timer = time.NewTimer(e.retryDelay)
		} else {
			timer.Reset(e.retryDelay)
		}
		select {
		case <-timer.C:
		case <-ctx.Done():
			metrics.ExecutorCounter.WithLabelValues(metrics.ResultInterrupted).Inc()
			e.logger.Warnw("Interrupted while waiting for lock", "resource", resourceID, "attempt", attempt, "error", ctx.Err())
			return false, attempt, &Error{Kind: WaitInterrupted, ResourceID: resourceID, Attempts: attempt, Err: ctx.Err()}
		}
	}
	return false, e.attempts, nil
}

// IsResourceLocked reports whether resourceID is currently held.
// It takes the lock under a disposable token and releases it straight away, so a free
// resource is left exactly as it was found.
func (e *Executor) IsResourceLocked(ctx context.Context, resourceID string) bool {
	probeID := probePrefix + e.newID()
	if !e.locks.Acquire(ctx, resourceID, probeID, resourceID) {
		return true
	}
	e.locks.Release(context.WithoutCancel(ctx), resourceID, probeID)
	return false
}
