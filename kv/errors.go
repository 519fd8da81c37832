package kv

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a key does not resolve to a value. In a
	// weakly consistent store it also covers "durably stored but not yet
	// visible"; the two cases are indistinguishable to the caller.
	ErrNotFound = errors.New("kv: not found")

	// ErrCASConflict is returned by PutIf when the current value does not
	// match the expected value. Retrying the same call unchanged cannot
	// succeed; re-read and recompute first.
	ErrCASConflict = errors.New("kv: compare-and-swap conflict")

	// ErrCorrupt is returned when stored bytes fail an integrity check.
	ErrCorrupt = errors.New("kv: corrupt value")
)

// ErrorKind classifies a StoreError for retry purposes.
type ErrorKind int

const (
	// Transient failures may succeed if retried unchanged: timeouts,
	// throttling, a quorum that is temporarily unreachable.
	Transient ErrorKind = iota + 1

	// Permanent failures cannot succeed as given: validation failures,
	// missing objects, CAS conflicts, detected corruption. Callers must
	// change their input or surface the failure.
	Permanent
)

func (k ErrorKind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// StoreError is a store-level failure tagged with a retry classification and
// an optional underlying cause. Callers branch on the tag via IsTransient and
// IsPermanent, never on message text.
type StoreError struct {
	Kind ErrorKind
	Op   string // operation that failed, e.g. "weak_put"
	Err  error  // optional underlying cause
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("kv: %s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("kv: %s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewTransient wraps err as a Transient StoreError for op.
func NewTransient(op string, err error) error {
	return &StoreError{Kind: Transient, Op: op, Err: err}
}

// NewPermanent wraps err as a Permanent StoreError for op.
func NewPermanent(op string, err error) error {
	return &StoreError{Kind: Permanent, Op: op, Err: err}
}

// IsTransient reports whether err is classified as retryable-unchanged.
func IsTransient(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == Transient
}

// IsPermanent reports whether err is classified as non-retryable.
//
// The bare sentinels (ErrNotFound, ErrCASConflict, ErrCorrupt) and Key
// validation failures count as permanent even when not wrapped in a
// StoreError.
func IsPermanent(err error) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind == Permanent
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCASConflict) || errors.Is(err, ErrCorrupt) {
		return true
	}
	var ike *InvalidKeyError
	return errors.As(err, &ike)
}
