package models

import (
	"context"
	"time"
)

// LockStore is the persistence contract of the lock table.
// TryCreate must be atomic with respect to the key uniqueness constraint:
// among concurrent callers racing on one key exactly one may succeed.
type LockStore interface {
	// TryCreate inserts lock unless a row with the same key exists.
	// It returns false with a nil error when the key is taken.
	TryCreate(ctx context.Context, lock *DistributedLock) (bool, error)
	// FindByKey returns the row for key, or nil when there is none.
	FindByKey(ctx context.Context, key string) (*DistributedLock, error)
	// DeleteIfOwnedBy removes the row for key only when its owner matches.
	DeleteIfOwnedBy(ctx context.Context, key, owner string) (bool, error)
	// DeleteExpired removes every row with ExpiresAt <= now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// MarkCollision flags the row for key as collided. No-op when the row is gone.
	MarkCollision(ctx context.Context, key string, now time.Time) error
}

// HolidaySource lists non-business days per calendar code.
type HolidaySource interface {
	ListHolidays(ctx context.Context) ([]*Holiday, error)
}

// HolidayStore is a HolidaySource that also accepts new holidays.
type HolidayStore interface {
	HolidaySource
	// AddHoliday registers a non-business day, ignoring days already present.
	AddHoliday(ctx context.Context, holiday *Holiday) error
}
