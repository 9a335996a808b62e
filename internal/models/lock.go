package models

import "time"

// DistributedLock is one row of the shared lock table.
// At most one row exists per LockKey; the uniqueness is enforced by the store.
type DistributedLock struct {
	// ID is the surrogate primary key.
	ID uint64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// LockKey identifies the protected resource.
	LockKey string `json:"lock_key" gorm:"column:lock_key;size:255;not null;uniqueIndex:idx_distributed_locks_key"`
	// Owner is the token of the acquisition attempt holding the lock.
	Owner string `json:"owner" gorm:"column:owner;size:100;not null"`
	// AcquiredAt is the moment the row was created.
	AcquiredAt time.Time `json:"acquired_at" gorm:"column:acquired_at;not null"`
	// ExpiresAt is AcquiredAt plus the lease duration.
	ExpiresAt time.Time `json:"expires_at" gorm:"column:expires_at;not null;index:idx_distributed_locks_expires_at"`
	// ModifierIdentity is the caller identity recorded at acquisition.
	ModifierIdentity string `json:"modifier_identity" gorm:"column:modifier_identity;size:50;not null"`
	// ServiceTag names the service that took the lock.
	ServiceTag string `json:"service_tag" gorm:"column:service_tag;size:100;not null"`
	// CollisionObserved is set when another attempt lost the race while this row was live.
	CollisionObserved bool `json:"collision_observed" gorm:"column:collision_observed;not null;default:false"`
	// CollisionAt is the moment the collision was recorded.
	CollisionAt *time.Time `json:"collision_at,omitempty" gorm:"column:collision_at"`
	// Payload is a diagnostic copy of the request that took the lock.
	Payload *string `json:"payload,omitempty" gorm:"column:payload;type:text"`
}

// TableName specifies the table name for GORM
func (DistributedLock) TableName() string {
	return "distributed_locks"
}

// IsLive reports whether the lease is still running at now.
func (l *DistributedLock) IsLive(now time.Time) bool {
	return l.ExpiresAt.After(now)
}

// AcquireOptions carries per-call metadata for an acquisition.
type AcquireOptions struct {
	// Modifier overrides the default identity recorded on the row.
	Modifier string
}

// AcquireOption configures a single Acquire call.
type AcquireOption func(*AcquireOptions)

// WithModifier records identity as the modifier of the lock row for this call only.
func WithModifier(identity string) AcquireOption {
	return func(o *AcquireOptions) {
		o.Modifier = identity
	}
}
