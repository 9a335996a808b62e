package calendar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockguard/lockguard/internal/models"
	"github.com/lockguard/lockguard/pkg/logger"
)

type fakeSource struct {
	mu       sync.Mutex
	holidays []*models.Holiday
	err      error
	calls    int
}

func (f *fakeSource) ListHolidays(context.Context) ([]*models.Holiday, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.holidays, nil
}

func (f *fakeSource) set(holidays ...*models.Holiday) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holidays = holidays
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func day(y int, m time.Month, d int) models.Date {
	return models.Date{Year: y, Month: m, Day: d}
}

func TestIsBusinessDay(t *testing.T) {
	source := &fakeSource{holidays: []*models.Holiday{
		{CalendarCode: "P00020", Day: "2024-12-25"},
		{CalendarCode: "OTHER", Day: "2024-12-24"},
	}}
	s := NewService(source, time.Hour, logger.NewNop())
	ctx := context.Background()

	tests := []struct {
		name string
		day  models.Date
		code string
		want bool
	}{
		{"weekday", day(2024, time.December, 23), "P00020", true},
		{"holiday", day(2024, time.December, 25), "P00020", false},
		{"holiday of another calendar", day(2024, time.December, 24), "P00020", true},
		{"saturday", day(2024, time.December, 21), "P00020", false},
		{"sunday", day(2024, time.December, 22), "P00020", false},
		{"unknown calendar", day(2024, time.December, 25), "NOPE", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.IsBusinessDay(ctx, tt.day, tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, 1, source.callCount())
}

func TestIsBusinessDayWeekendSkipsSource(t *testing.T) {
	source := &fakeSource{err: errors.New("db down")}
	s := NewService(source, time.Hour, logger.NewNop())

	ok, err := s.IsBusinessDay(context.Background(), day(2024, time.March, 2), "P00020")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, source.callCount())
}

func TestIsBusinessDaySourceError(t *testing.T) {
	source := &fakeSource{err: errors.New("db down")}
	s := NewService(source, time.Hour, logger.NewNop())

	_, err := s.IsBusinessDay(context.Background(), day(2024, time.March, 4), "P00020")
	assert.ErrorContains(t, err, "db down")
}

func TestPeriodicUpdate(t *testing.T) {
	source := &fakeSource{}
	s := NewService(source, 10*time.Millisecond, logger.NewNop())
	s.StartPeriodicUpdate()
	defer s.Stop()

	ctx := context.Background()
	monday := day(2024, time.March, 4)
	assert.Eventually(t, func() bool { return source.callCount() >= 1 }, time.Second, 5*time.Millisecond)

	source.set(&models.Holiday{CalendarCode: "P00020", Day: "2024-03-04"})
	assert.Eventually(t, func() bool {
		ok, err := s.IsBusinessDay(ctx, monday, "P00020")
		return err == nil && !ok
	}, time.Second, 5*time.Millisecond)
}

type memoryHolidays struct {
	fakeSource
}

func (m *memoryHolidays) AddHoliday(_ context.Context, holiday *models.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays = append(m.holidays, holiday)
	return nil
}

func TestSeed(t *testing.T) {
	store := &memoryHolidays{}
	ctx := context.Background()

	require.NoError(t, Seed(ctx, store, "P00020", []string{"2024-03-18", "2024-09-16"}))

	s := NewService(store, time.Hour, logger.NewNop())
	ok, err := s.IsBusinessDay(ctx, day(2024, time.March, 18), "P00020")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.IsBusinessDay(ctx, day(2024, time.March, 18), "OTHER")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Error(t, Seed(ctx, store, "P00020", []string{"18/03/2024"}))
	assert.Len(t, store.holidays, 2)
}
