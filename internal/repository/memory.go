package repository

import (
	"context"
	"sync"
	"time"

	"github.com/lockguard/lockguard/internal/models"
)

// MemoryStore keeps the lock table in process memory.
// It only coordinates goroutines of a single process; use it for development and tests.
type MemoryStore struct {
	mu       sync.Mutex
	locks    map[string]models.DistributedLock
	holidays []*models.Holiday
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locks: make(map[string]models.DistributedLock)}
}

func (m *MemoryStore) TryCreate(_ context.Context, lock *models.DistributedLock) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.locks[lock.LockKey]; exists {
		return false, nil
	}
	m.locks[lock.LockKey] = *lock
	return true, nil
}

func (m *MemoryStore) FindByKey(_ context.Context, key string) (*models.DistributedLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[key]
	if !ok {
		return nil, nil
	}
	return &lock, nil
}

func (m *MemoryStore) DeleteIfOwnedBy(_ context.Context, key, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[key]
	if !ok || lock.Owner != owner {
		return false, nil
	}
	delete(m.locks, key)
	return true, nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for key, lock := range m.locks {
		if !lock.ExpiresAt.After(now) {
			delete(m.locks, key)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) MarkCollision(_ context.Context, key string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[key]
	if !ok {
		return nil
	}
	lock.CollisionObserved = true
	lock.CollisionAt = &now
	m.locks[key] = lock
	return nil
}

// Len returns the number of rows currently stored.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

func (m *MemoryStore) ListHolidays(context.Context) ([]*models.Holiday, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	holidays := make([]*models.Holiday, len(m.holidays))
	copy(holidays, m.holidays)
	return holidays, nil
}

// AddHoliday registers a non-business day, ignoring days already present.
func (m *MemoryStore) AddHoliday(_ context.Context, holiday *models.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range m.holidays {
		if h.CalendarCode == holiday.CalendarCode && h.Day == holiday.Day {
			return nil
		}
	}
	h := *holiday
	m.holidays = append(m.holidays, &h)
	return nil
}
