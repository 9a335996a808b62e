// Package lockmanager implements lease locks on top of a shared lock table.
//
// A lock is a row keyed by resource id. Acquisition is a single insert attempt
// whose exclusivity comes from the store's uniqueness constraint; release deletes
// the row only for the owner that created it. Leases have a fixed duration and
// are never renewed: work that outlives the lease may overlap with a new holder.
package lockmanager

import (
	"context"
	"sync"
	"time"

	"github.com/lockguard/lockguard/internal/metrics"
	"github.com/lockguard/lockguard/internal/models"
	"github.com/lockguard/lockguard/pkg/logger"
)

const (
	// DefaultLeaseTTL is the lease granted when Options.LeaseTTL is zero.
	DefaultLeaseTTL = 30 * time.Second
	// DefaultSweepInterval is the sweep period when Options.SweepInterval is zero.
	DefaultSweepInterval = 300000 * time.Millisecond
	// DefaultServiceTag is recorded on rows when Options.ServiceTag is empty.
	DefaultServiceTag = "defaultService"
	// DefaultIdentity is recorded as modifier when no identity is supplied.
	DefaultIdentity = "SYSTEM"
)

// Options configures a Manager.
type Options struct {
	LeaseTTL        time.Duration
	SweepInterval   time.Duration
	ServiceTag      string
	DefaultIdentity string
	// Now overrides the wall clock, mostly for tests.
	Now func() time.Time
}

// Manager owns acquire, release and the periodic sweep of expired leases.
type Manager struct {
	logger *logger.Logger
	store  models.LockStore

	leaseTTL        time.Duration
	sweepInterval   time.Duration
	serviceTag      string
	defaultIdentity string
	now             func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewManager creates a Manager over store.
func NewManager(store models.LockStore, logger *logger.Logger, opts Options) *Manager {
	m := &Manager{
		logger:          logger,
		store:           store,
		leaseTTL:        opts.LeaseTTL,
		sweepInterval:   opts.SweepInterval,
		serviceTag:      opts.ServiceTag,
		defaultIdentity: opts.DefaultIdentity,
		now:             opts.Now,
	}
	if m.leaseTTL <= 0 {
		m.leaseTTL = DefaultLeaseTTL
	}
	if m.sweepInterval <= 0 {
		m.sweepInterval = DefaultSweepInterval
	}
	if m.serviceTag == "" {
		m.serviceTag = DefaultServiceTag
	}
	if m.defaultIdentity == "" {
		m.defaultIdentity = DefaultIdentity
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.logger = logger.With("service", m.serviceTag)
	return m
}

// LeaseTTL returns the lease granted to each acquisition.
func (m *Manager) LeaseTTL() time.Duration {
	return m.leaseTTL
}

// Acquire makes a single attempt to take the lock on resourceID for processID.
// payload is kept on the row for diagnostics. It returns false when the key is
// held by a live lease or when the store fails; the two are not distinguished.
func (m *Manager) Acquire(ctx context.Context, resourceID, processID, payload string, opts ...models.AcquireOption) bool {
	options := models.AcquireOptions{Modifier: m.defaultIdentity}
	for _, opt := range opts {
		opt(&options)
	}

	now := m.now().UTC()

	// Expired rows would otherwise block the insert below.
	if removed, err := m.store.DeleteExpired(ctx, now); err != nil {
		m.logger.Warnw("Failed to remove expired locks before acquire", "resource", resourceID, "error", err)
	} else if removed > 0 {
		metrics.SweptCounter.Add(float64(removed))
	}

	lock := &models.DistributedLock{
		LockKey:          resourceID,
		Owner:            processID,
		AcquiredAt:       now,
		ExpiresAt:        now.Add(m.leaseTTL),
		ModifierIdentity: options.Modifier,
		ServiceTag:       m.serviceTag,
		Payload:          &payload,
	}

	created, err := m.store.TryCreate(ctx, lock)
	if err != nil {
		m.logger.Errorw("Failed to acquire lock", "resource", resourceID, "process", processID, "error", err)
		metrics.AcquireCounter.WithLabelValues(metrics.ResultError).Inc()
		return false
	}

	if !created {
		m.logger.Debugw("Lock already held", "resource", resourceID, "process", processID)
		metrics.AcquireCounter.WithLabelValues(metrics.ResultContended).Inc()
		if err := m.store.MarkCollision(ctx, resourceID, now); err != nil {
			m.logger.Errorw("Failed to record lock collision", "resource", resourceID, "error", err)
		} else {
			metrics.CollisionCounter.Inc()
		}
		return false
	}

	m.logger.Debugw("Lock acquired", "resource", resourceID, "process", processID, "expires_at", lock.ExpiresAt)
	metrics.AcquireCounter.WithLabelValues(metrics.ResultAcquired).Inc()
	return true
}

// AcquireResource acquires resourceID using the resource id itself as payload.
func (m *Manager) AcquireResource(ctx context.Context, resourceID, processID string, opts ...models.AcquireOption) bool {
	return m.Acquire(ctx, resourceID, processID, resourceID, opts...)
}

// Release deletes the lock on resourceID if processID still owns it.
// A lock that expired and was taken by another owner is left untouched.
// Errors are logged, never returned.
func (m *Manager) Release(ctx context.Context, resourceID, processID string) {
	lock, err := m.store.FindByKey(ctx, resourceID)
	if err != nil {
		m.logger.Errorw("Failed to look up lock for release", "resource", resourceID, "process", processID, "error", err)
		metrics.ReleaseCounter.WithLabelValues(metrics.ResultError).Inc()
		return
	}
	if lock == nil || lock.Owner != processID {
		metrics.ReleaseCounter.WithLabelValues(metrics.ResultNotOwner).Inc()
		return
	}

	// The owner is checked again by the store so a concurrent re-acquire is never removed.
	deleted, err := m.store.DeleteIfOwnedBy(ctx, resourceID, processID)
	if err != nil {
		m.logger.Errorw("Failed to release lock", "resource", resourceID, "process", processID, "error", err)
		metrics.ReleaseCounter.WithLabelValues(metrics.ResultError).Inc()
		return
	}
	if !deleted {
		metrics.ReleaseCounter.WithLabelValues(metrics.ResultNotOwner).Inc()
		return
	}

	m.logger.Debugw("Lock released", "resource", resourceID, "process", processID)
	metrics.ReleaseCounter.WithLabelValues(metrics.ResultReleased).Inc()
}

// Inspect returns the stored row for resourceID, or nil when there is none.
func (m *Manager) Inspect(ctx context.Context, resourceID string) (*models.DistributedLock, error) {
	return m.store.FindByKey(ctx, resourceID)
}

// Sweep deletes every lock whose lease has run out and returns how many were removed.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	removed, err := m.store.DeleteExpired(ctx, m.now().UTC())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		metrics.SweptCounter.Add(float64(removed))
		m.logger.Debugw("Removed expired locks", "count", removed)
	}
	return removed, nil
}

// Start launches the periodic sweep. Calling Start on a running manager is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := m.Sweep(ctx); err != nil {
					m.logger.Errorw("Failed to remove expired locks", "error", err)
				}
			case <-ctx.Done():
				m.logger.Info("Lock sweeper stopped")
				return
			}
		}
	}()
	m.logger.Infow("Lock sweeper started", "interval", m.sweepInterval, "lease_ttl", m.leaseTTL)
}

// Stop halts the sweep and waits for an in-flight sweep to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.cancel()
	m.running = false
	m.mu.Unlock()

	m.wg.Wait()
}
