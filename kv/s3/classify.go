package s3

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"

	"github.com/hupe1980/castore/kv"
)

// throttleCodes are client-fault API codes that are nevertheless retryable.
var throttleCodes = map[string]struct{}{
	"Throttling":               {},
	"ThrottlingException":      {},
	"SlowDown":                 {},
	"RequestLimitExceeded":     {},
	"TooManyRequestsException": {},
	"RequestTimeout":           {},
}

// classify maps an AWS error onto the kv taxonomy:
//
//   - missing objects -> kv.ErrNotFound
//   - throttling, server faults, timeouts, transport failures -> Transient
//   - other client faults (validation, access denied) -> Permanent
func classify(op string, err error) error {
	if notFound(err) {
		return kv.NewPermanent(op, kv.ErrNotFound)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return kv.NewTransient(op, err)
	}

	var ae smithy.APIError
	if errors.As(err, &ae) {
		if _, ok := throttleCodes[ae.ErrorCode()]; ok {
			return kv.NewTransient(op, err)
		}
		if ae.ErrorFault() == smithy.FaultClient {
			return kv.NewPermanent(op, err)
		}
		return kv.NewTransient(op, err)
	}

	// Anything below the API layer (DNS, TLS, connection resets) is worth
	// retrying.
	return kv.NewTransient(op, err)
}
