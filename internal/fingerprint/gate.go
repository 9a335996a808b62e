// Package fingerprint drops duplicate in-flight submissions of the same request.
//
// A request is canonicalized to JSON with sorted object keys, hashed with SHA-256 and
// used as a lease lock key under a namespace. While one submission holds the key an
// identical one is reported as a duplicate without reaching the business code.
package fingerprint

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lockguard/lockguard/internal/metrics"
	"github.com/lockguard/lockguard/internal/models"
	"github.com/lockguard/lockguard/pkg/logger"
)

// Outcome is the decision taken by the gate for one request.
type Outcome int

const (
	// Processed means the request held its fingerprint lock while next ran.
	Processed Outcome = iota + 1
	// Duplicate means an identical request was in flight; next did not run.
	Duplicate
	// Unprotected means fingerprinting failed and next ran without deduplication.
	Unprotected
)

func (o Outcome) String() string {
	switch o {
	case Processed:
		return metrics.OutcomeProcessed
	case Duplicate:
		return metrics.OutcomeDuplicate
	case Unprotected:
		return metrics.OutcomeUnprotected
	default:
		return "unknown"
	}
}

var tracer = otel.Tracer("github.com/lockguard/lockguard/internal/fingerprint")

// Gate deduplicates requests through a LockManager.
type Gate struct {
	logger    *logger.Logger
	locks     models.LockManager
	namespace string
	newID     func() string
}

func NewGate(locks models.LockManager, namespace string, logger *logger.Logger) *Gate {
	return &Gate{
		logger:    logger,
		locks:     locks,
		namespace: namespace,
		newID:     uuid.NewString,
	}
}

// Canonicalize returns a stable JSON encoding of v: equal values always produce
// identical bytes regardless of field or map ordering.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}

	// Maps are encoded with sorted keys.
	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("failed to encode canonical request: %w", err)
	}
	return canonical, nil
}

// Fingerprint returns the hex SHA-256 of the canonical form of v and the canonical bytes.
func Fingerprint(v any) (string, []byte, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", nil, err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), canonical, nil
}

// Key returns the lock key the gate uses for request.
func (g *Gate) Key(request any) (string, []byte, error) {
	hash, canonical, err := Fingerprint(request)
	if err != nil {
		return "", nil, err
	}
	return g.namespace + ":" + hash, canonical, nil
}

// Guard runs next unless an identical request is already being processed.
// On Duplicate the zero R is returned and next is not called. The fingerprint lock
// is released after next returns, whatever it returned.
func Guard[R any](ctx context.Context, g *Gate, request any, next func(ctx context.Context) (R, error)) (R, Outcome, error) {
	ctx, span := tracer.Start(ctx, "Gate.Guard", trace.WithAttributes(attribute.String("lockguard.namespace", g.namespace)))
	defer span.End()

	key, canonical, err := g.Key(request)
	if err != nil {
		g.logger.Errorw("Failed to fingerprint request, processing without deduplication", "namespace", g.namespace, "error", err)
		metrics.GateCounter.WithLabelValues(metrics.OutcomeUnprotected).Inc()
		span.SetAttributes(attribute.String("lockguard.outcome", Unprotected.String()))
		result, err := next(ctx)
		return result, Unprotected, err
	}
	span.SetAttributes(attribute.String("lockguard.key", key))

	processID := g.newID()
	if !g.locks.Acquire(ctx, key, processID, string(canonical)) {
		g.logger.Infow("Duplicate request in flight", "key", key)
		metrics.GateCounter.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		span.SetAttributes(attribute.String("lockguard.outcome", Duplicate.String()))
		var zero R
		return zero, Duplicate, nil
	}
	defer g.locks.Release(context.WithoutCancel(ctx), key, processID)

	metrics.GateCounter.WithLabelValues(metrics.OutcomeProcessed).Inc()
	span.SetAttributes(attribute.String("lockguard.outcome", Processed.String()))
	result, err := next(ctx)
	return result, Processed, err
}
