package models

import "context"

// NotificationService receives the outcome of every successfully processed request.
// Implementations must not block the caller for long and never fail the request.
type NotificationService interface {
	Notify(ctx context.Context, request *CertificationRequest, response *CertificationResponse)
}
