package models

import "context"

// APIServer is the HTTP ingress of the service.
type APIServer interface {
	Start() error
	Shutdown() error
}

// Certifier processes certification requests and never fails: errors become diagnostics.
type Certifier interface {
	Certify(ctx context.Context, request *CertificationRequest) *CertificationResponse
}

// LockProbe tells whether a resource is currently locked without disturbing it.
type LockProbe interface {
	IsResourceLocked(ctx context.Context, resourceID string) bool
}

// LockInspector reads the stored lock row of a resource.
type LockInspector interface {
	Inspect(ctx context.Context, resourceID string) (*DistributedLock, error)
}
