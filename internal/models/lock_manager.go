package models

import "context"

// LockManager owns lease lock semantics on top of a LockStore.
type LockManager interface {
	// Acquire tries once to take the lock. Contention and storage failures both return false.
	Acquire(ctx context.Context, resourceID, processID, payload string, opts ...AcquireOption) bool
	// Release deletes the lock only when processID still owns it.
	Release(ctx context.Context, resourceID, processID string)
}

// BusinessDayChecker decides whether downstream processing may run on a given day.
type BusinessDayChecker interface {
	IsBusinessDay(ctx context.Context, day Date, calendarCode string) (bool, error)
}
