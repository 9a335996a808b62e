package metrics

import "github.com/prometheus/client_golang/prometheus"

// Label values of the lock and gate counters.
const (
	ResultAcquired  = "acquired"
	ResultContended = "contended"
	ResultError     = "error"

	ResultReleased = "released"
	ResultNotOwner = "not_owner"

	ResultExecuted    = "executed"
	ResultExhausted   = "exhausted"
	ResultInterrupted = "interrupted"

	OutcomeProcessed   = "processed"
	OutcomeDuplicate   = "duplicate"
	OutcomeUnprotected = "unprotected"
)

var (
	// AcquireCounter tracks lock acquisition attempts by result.
	AcquireCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lockguard_lock_acquire_total",
		Help: "Total number of lock acquisition attempts",
	}, []string{"result"})
	// CollisionCounter tracks acquisitions that lost the race against a live row.
	CollisionCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lockguard_lock_collisions_total",
		Help: "Total number of collisions recorded on live locks",
	})
	// ReleaseCounter tracks release calls by result.
	ReleaseCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lockguard_lock_release_total",
		Help: "Total number of lock release calls",
	}, []string{"result"})
	// SweptCounter tracks expired rows removed by sweeps.
	SweptCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lockguard_lock_swept_total",
		Help: "Total number of expired locks removed",
	})
	// ExecutorCounter tracks critical section executions by result.
	ExecutorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lockguard_executor_total",
		Help: "Total number of critical section executions",
	}, []string{"result"})
	// GateCounter tracks fingerprint gate decisions by outcome.
	GateCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lockguard_gate_requests_total",
		Help: "Total number of requests seen by the fingerprint gate",
	}, []string{"outcome"})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterMetrics registers lockguard collectors on the provided registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AcquireCounter, CollisionCounter, ReleaseCounter, SweptCounter, ExecutorCounter, GateCounter)
}
