package concurrency

import (
	"errors"
	"fmt"
)

// Kind classifies a concurrency failure. A key held by a live lease is not one:
// Acquire reports it as false.
type Kind int

const (
	// LockAcquisitionExhausted means every attempt of the retry budget failed.
	LockAcquisitionExhausted Kind = iota + 1
	// WaitInterrupted means the context was cancelled while waiting between attempts.
	WaitInterrupted
)

func (k Kind) String() string {
	switch k {
	case LockAcquisitionExhausted:
		return "lock acquisition exhausted"
	case WaitInterrupted:
		return "wait interrupted"
	default:
		return "unknown"
	}
}

var (
	// ErrConcurrency matches every *Error.
	ErrConcurrency = errors.New("concurrency error")
	// ErrAcquisitionExhausted matches errors of kind LockAcquisitionExhausted.
	ErrAcquisitionExhausted = errors.New("lock acquisition exhausted")
	// ErrWaitInterrupted matches errors of kind WaitInterrupted.
	ErrWaitInterrupted = errors.New("wait interrupted")
)

// Error is returned by the executor when the critical section could not run.
type Error struct {
	Kind       Kind
	ResourceID string
	// Attempts is the number of acquisition attempts made before giving up.
	Attempts int
	// Err is the cause, the context error for WaitInterrupted.
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s on resource %q after %d attempt(s)", e.Kind, e.ResourceID, e.Attempts)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConcurrency:
		return true
	case ErrAcquisitionExhausted:
		return e.Kind == LockAcquisitionExhausted
	case ErrWaitInterrupted:
		return e.Kind == WaitInterrupted
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return 0
}
