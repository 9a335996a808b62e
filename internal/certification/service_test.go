package certification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockguard/lockguard/internal/concurrency"
	"github.com/lockguard/lockguard/internal/fingerprint"
	"github.com/lockguard/lockguard/internal/lockmanager"
	"github.com/lockguard/lockguard/internal/models"
	"github.com/lockguard/lockguard/internal/repository"
	"github.com/lockguard/lockguard/pkg/logger"
)

var monday = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

type fakeCalendar struct {
	mu          sync.Mutex
	businessDay bool
	err         error
	days        []models.Date
	codes       []string
}

func (f *fakeCalendar) IsBusinessDay(_ context.Context, day models.Date, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.days = append(f.days, day)
	f.codes = append(f.codes, code)
	return f.businessDay, f.err
}

type fakeNotifier struct {
	mu        sync.Mutex
	responses []*models.CertificationResponse
}

func (f *fakeNotifier) Notify(_ context.Context, _ *models.CertificationRequest, response *models.CertificationResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, response)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.responses)
}

type validatorFunc func(*models.CertificationRequest) (*models.CertificationResponse, error)

func (f validatorFunc) Validate(r *models.CertificationRequest) (*models.CertificationResponse, error) {
	return f(r)
}

type fixture struct {
	service  *Service
	store    *repository.MemoryStore
	calendar *fakeCalendar
	notifier *fakeNotifier
}

func newFixture(t *testing.T, validator models.CertificationValidator) *fixture {
	t.Helper()
	log := logger.NewNop()
	store := repository.NewMemoryStore()
	manager := lockmanager.NewManager(store, log, lockmanager.Options{})
	f := &fixture{
		store:    store,
		calendar: &fakeCalendar{businessDay: true},
		notifier: &fakeNotifier{},
	}
	f.service = NewService(
		fingerprint.NewGate(manager, "certificacion", log),
		concurrency.NewExecutor(manager, log, concurrency.WithRetryDelay(time.Millisecond)),
		f.calendar,
		validator,
		f.notifier,
		log,
		WithClock(func() time.Time { return monday }),
	)
	return f
}

func validRequest() *models.CertificationRequest {
	return &models.CertificationRequest{
		NSS:            "12345678901",
		CURP:           "gaxx010101hdfrrn09",
		TipoPrestacion: "TP01",
		Operacion:      "certificacion",
		Origen:         "3",
	}
}

func TestCertifyAccepted(t *testing.T) {
	f := newFixture(t, DefaultValidator{})

	resp := f.service.Certify(context.Background(), validRequest())
	f.service.Wait()

	assert.Equal(t, models.ResultAccepted, resp.ResultadoOperacion)
	assert.Equal(t, DiagnosticValid, resp.DiagnosticoProcesar)
	assert.Equal(t, "TP01", resp.TipoPrestacion)
	assert.Equal(t, "GAXX010101HDFRRN09", resp.CURP)
	assert.Equal(t, "3", resp.Origen)
	assert.Equal(t, 1, f.notifier.count())
	assert.Equal(t, 0, f.store.Len())

	require.Len(t, f.calendar.days, 1)
	assert.Equal(t, models.Date{Year: 2024, Month: time.March, Day: 4}, f.calendar.days[0])
	assert.Equal(t, DefaultCalendarCode, f.calendar.codes[0])
}

func TestCertifyInvalidWorker(t *testing.T) {
	f := newFixture(t, DefaultValidator{})
	req := validRequest()
	req.NSS = "123"

	resp := f.service.Certify(context.Background(), req)
	f.service.Wait()

	assert.Equal(t, models.ResultRejected, resp.ResultadoOperacion)
	assert.Equal(t, DiagnosticInvalidWorker, resp.DiagnosticoProcesar)
	assert.Equal(t, "TP01", resp.TipoPrestacion)
	assert.Equal(t, 1, f.notifier.count())
}

func TestCertifyNonBusinessDay(t *testing.T) {
	called := false
	f := newFixture(t, validatorFunc(func(*models.CertificationRequest) (*models.CertificationResponse, error) {
		called = true
		return &models.CertificationResponse{}, nil
	}))
	f.calendar.businessDay = false

	resp := f.service.Certify(context.Background(), validRequest())
	f.service.Wait()

	assert.Equal(t, models.ResultRejected, resp.ResultadoOperacion)
	assert.Equal(t, models.DiagnosticUnavailable, resp.DiagnosticoProcesar)
	assert.Equal(t, "TP01", resp.TipoPrestacion)
	assert.False(t, called)
	assert.Equal(t, 0, f.notifier.count())
}

func TestCertifyCalendarError(t *testing.T) {
	f := newFixture(t, DefaultValidator{})
	f.calendar.err = errors.New("db down")

	resp := f.service.Certify(context.Background(), validRequest())

	assert.Equal(t, models.DiagnosticInternalError, resp.DiagnosticoProcesar)
	assert.Equal(t, "TP01", resp.TipoPrestacion)
	assert.Equal(t, 0, f.store.Len())
}

func TestCertifyValidatorError(t *testing.T) {
	f := newFixture(t, validatorFunc(func(*models.CertificationRequest) (*models.CertificationResponse, error) {
		return nil, errors.New("backend timeout")
	}))

	resp := f.service.Certify(context.Background(), validRequest())
	f.service.Wait()

	assert.Equal(t, models.ResultRejected, resp.ResultadoOperacion)
	assert.Equal(t, models.DiagnosticInternalError, resp.DiagnosticoProcesar)
	assert.Equal(t, 0, f.notifier.count())
	assert.Equal(t, 0, f.store.Len())
}

func TestCertifyValidatorPanic(t *testing.T) {
	f := newFixture(t, validatorFunc(func(*models.CertificationRequest) (*models.CertificationResponse, error) {
		panic("nil map")
	}))

	resp := f.service.Certify(context.Background(), validRequest())

	assert.Equal(t, models.DiagnosticInternalError, resp.DiagnosticoProcesar)
	assert.Equal(t, 0, f.store.Len())
}

func TestCertifyNilResponse(t *testing.T) {
	f := newFixture(t, validatorFunc(func(*models.CertificationRequest) (*models.CertificationResponse, error) {
		return nil, nil
	}))

	resp := f.service.Certify(context.Background(), validRequest())
	assert.Equal(t, models.DiagnosticInternalError, resp.DiagnosticoProcesar)
}

func TestCertifyDuplicateInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	f := newFixture(t, validatorFunc(func(r *models.CertificationRequest) (*models.CertificationResponse, error) {
		close(entered)
		<-release
		return &models.CertificationResponse{ResultadoOperacion: models.ResultAccepted, DiagnosticoProcesar: DiagnosticValid}, nil
	}))

	var first *models.CertificationResponse
	done := make(chan struct{})
	go func() {
		defer close(done)
		first = f.service.Certify(context.Background(), validRequest())
	}()

	<-entered
	dup := f.service.Certify(context.Background(), validRequest())
	assert.Equal(t, models.ResultRejected, dup.ResultadoOperacion)
	assert.Equal(t, models.DiagnosticUnavailable, dup.DiagnosticoProcesar)
	assert.Equal(t, "TP01", dup.TipoPrestacion)

	close(release)
	<-done
	f.service.Wait()
	assert.Equal(t, models.ResultAccepted, first.ResultadoOperacion)
	assert.Equal(t, "TP01", first.TipoPrestacion)
	assert.Equal(t, 1, f.notifier.count())
	assert.Equal(t, 0, f.store.Len())
}

func TestCertifyWorkerBusy(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f := newFixture(t, validatorFunc(func(r *models.CertificationRequest) (*models.CertificationResponse, error) {
		once.Do(func() {
			close(entered)
			<-release
		})
		return &models.CertificationResponse{ResultadoOperacion: models.ResultAccepted}, nil
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.service.Certify(context.Background(), validRequest())
	}()
	<-entered

	// Same worker, different request: passes the gate but not the NSS lock.
	other := validRequest()
	other.TipoPrestacion = "TP02"
	resp := f.service.Certify(context.Background(), other)
	assert.Equal(t, models.DiagnosticUnavailable, resp.DiagnosticoProcesar)
	assert.Equal(t, "TP02", resp.TipoPrestacion)

	close(release)
	<-done
	f.service.Wait()
}
