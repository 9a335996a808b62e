// Package calendar answers business day questions from a cached holiday table.
package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lockguard/lockguard/internal/models"
	"github.com/lockguard/lockguard/pkg/logger"
)

// Service caches the holidays of every calendar and refreshes them periodically.
// Saturdays and Sundays are never business days.
type Service struct {
	logger   *logger.Logger
	source   models.HolidaySource
	interval time.Duration

	// In-memory cache: calendar code -> set of YYYY-MM-DD days
	holidays   map[string]map[string]struct{}
	loaded     bool
	cacheMutex sync.RWMutex

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a Service reading holidays from source every interval.
func NewService(source models.HolidaySource, interval time.Duration, logger *logger.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		logger:   logger,
		source:   source,
		interval: interval,
		holidays: make(map[string]map[string]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Seed registers days (YYYY-MM-DD) as holidays of calendarCode in store.
// Days already present are left alone.
func Seed(ctx context.Context, store models.HolidayStore, calendarCode string, days []string) error {
	for _, day := range days {
		if _, err := time.Parse(time.DateOnly, day); err != nil {
			return fmt.Errorf("invalid holiday %q: %w", day, err)
		}
		if err := store.AddHoliday(ctx, &models.Holiday{CalendarCode: calendarCode, Day: day}); err != nil {
			return err
		}
	}
	return nil
}

// Refresh reloads the holiday cache from the source.
func (s *Service) Refresh(ctx context.Context) error {
	holidays, err := s.source.ListHolidays(ctx)
	if err != nil {
		return fmt.Errorf("failed to load holidays: %w", err)
	}

	newCache := make(map[string]map[string]struct{})
	for _, h := range holidays {
		days, ok := newCache[h.CalendarCode]
		if !ok {
			days = make(map[string]struct{})
			newCache[h.CalendarCode] = days
		}
		days[h.Day] = struct{}{}
	}

	// Update the cache atomically
	s.cacheMutex.Lock()
	s.holidays = newCache
	s.loaded = true
	s.cacheMutex.Unlock()

	s.logger.Infow("Holiday calendar loaded", "holidays", len(holidays), "calendars", len(newCache))
	return nil
}

// IsBusinessDay reports whether day is a business day of calendarCode.
// The cache is loaded on first use when Start has not done it yet.
func (s *Service) IsBusinessDay(ctx context.Context, day models.Date, calendarCode string) (bool, error) {
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return false, nil
	}

	s.cacheMutex.RLock()
	loaded := s.loaded
	s.cacheMutex.RUnlock()
	if !loaded {
		if err := s.Refresh(ctx); err != nil {
			return false, err
		}
	}

	s.cacheMutex.RLock()
	defer s.cacheMutex.RUnlock()
	_, holiday := s.holidays[calendarCode][day.String()]
	return !holiday, nil
}

// StartPeriodicUpdate loads the calendar and keeps it fresh until Stop is called.
func (s *Service) StartPeriodicUpdate() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if err := s.Refresh(s.ctx); err != nil {
			s.logger.Errorw("Failed to load holiday calendar on startup", "error", err)
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.Refresh(s.ctx); err != nil {
					s.logger.Errorw("Failed to refresh holiday calendar", "error", err)
				}
			case <-s.ctx.Done():
				s.logger.Info("Holiday calendar periodic update stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the periodic update.
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()
}
