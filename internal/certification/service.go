// Package certification serves certification validation requests.
//
// A request goes through the fingerprint gate, then the business day check, then
// the validator, which runs while holding the lock of the worker's NSS. Accepted
// or rejected, every validated request is reported to the notification service
// in the background.
package certification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lockguard/lockguard/internal/concurrency"
	"github.com/lockguard/lockguard/internal/fingerprint"
	"github.com/lockguard/lockguard/internal/models"
	"github.com/lockguard/lockguard/pkg/logger"
)

const (
	// DefaultCalendarCode is the calendar checked before validating.
	DefaultCalendarCode = "P00020"

	nssLockPrefix = "nss:"
)

// Service is the certification business core.
type Service struct {
	logger *logger.Logger

	gate        *fingerprint.Gate
	executor    *concurrency.Executor
	calendar    models.BusinessDayChecker
	validator   models.CertificationValidator
	notificator models.NotificationService

	calendarCode string
	now          func() time.Time

	// Background notifications
	wg sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithCalendarCode sets the calendar whose business days allow processing.
func WithCalendarCode(code string) Option {
	return func(s *Service) {
		if code != "" {
			s.calendarCode = code
		}
	}
}

// WithClock overrides the clock used to pick the processing day.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a new Service instance
func NewService(
	gate *fingerprint.Gate,
	executor *concurrency.Executor,
	calendar models.BusinessDayChecker,
	validator models.CertificationValidator,
	notificator models.NotificationService,
	logger *logger.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		logger:       logger,
		gate:         gate,
		executor:     executor,
		calendar:     calendar,
		validator:    validator,
		notificator:  notificator,
		calendarCode: DefaultCalendarCode,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Certify validates request and always returns a response; failures are mapped
// to diagnostic codes. Identical requests already in flight and requests on
// non business days are rejected with DiagnosticUnavailable, as are requests
// whose NSS stays locked by another request. Anything unexpected is rejected
// with DiagnosticInternalError.
func (s *Service) Certify(ctx context.Context, request *models.CertificationRequest) (response *models.CertificationResponse) {
	s.logger.Infow("Certification request received", "nss", request.NSS, "tipo_prestacion", request.TipoPrestacion)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("Certification panicked", "nss", request.NSS, "panic", r)
			response = models.RejectedResponse(request, models.DiagnosticInternalError)
		}
	}()

	response, outcome, err := fingerprint.Guard(ctx, s.gate, request, func(ctx context.Context) (*models.CertificationResponse, error) {
		return s.process(ctx, request)
	})
	switch {
	case outcome == fingerprint.Duplicate:
		return models.RejectedResponse(request, models.DiagnosticUnavailable)
	case errors.Is(err, concurrency.ErrConcurrency):
		s.logger.Warnw("Worker busy, request rejected", "nss", request.NSS, "error", err)
		return models.RejectedResponse(request, models.DiagnosticUnavailable)
	case err != nil:
		s.logger.Errorw("Certification failed", "nss", request.NSS, "error", err)
		return models.RejectedResponse(request, models.DiagnosticInternalError)
	}
	return response
}

func (s *Service) process(ctx context.Context, request *models.CertificationRequest) (*models.CertificationResponse, error) {
	today := models.DateOf(s.now())
	businessDay, err := s.calendar.IsBusinessDay(ctx, today, s.calendarCode)
	if err != nil {
		return nil, fmt.Errorf("failed to check business day: %w", err)
	}
	if !businessDay {
		s.logger.Infow("Not a business day, request rejected", "day", today, "calendar", s.calendarCode)
		return models.RejectedResponse(request, models.DiagnosticUnavailable), nil
	}

	response, err := concurrency.ExecuteWithLock(ctx, s.executor, nssLockPrefix+request.NSS,
		func(ctx context.Context) (*models.CertificationResponse, error) {
			return s.validator.Validate(request)
		})
	if err != nil {
		return nil, err
	}
	if response == nil {
		return nil, fmt.Errorf("validator returned no response for nss %s", request.NSS)
	}
	response.TipoPrestacion = request.TipoPrestacion

	s.notify(ctx, request, response)
	return response, nil
}

// notify hands the outcome to the notification service without waiting for delivery.
func (s *Service) notify(ctx context.Context, request *models.CertificationRequest, response *models.CertificationResponse) {
	if s.notificator == nil {
		return
	}
	notifyCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Errorw("Notification panicked", "nss", request.NSS, "panic", r)
			}
		}()
		s.notificator.Notify(notifyCtx, request, response)
	}()
}

// Wait blocks until every background notification has been delivered or dropped.
func (s *Service) Wait() {
	s.wg.Wait()
}
