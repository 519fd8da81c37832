package kv

import (
	"context"

	"golang.org/x/time/rate"
)

// ThrottledStore wraps a WeakStore and bounds its byte throughput with a
// token-bucket limiter, one token per payload byte. Use it to keep bulk
// writers from starving other tenants of a shared backend.
//
// The wrapped contract is unchanged: throttling delays operations, it never
// reorders or drops them.
type ThrottledStore struct {
	inner   WeakStore
	limiter *rate.Limiter
}

// NewThrottledStore wraps inner with limiter. The limiter's rate and burst
// are in bytes; payloads larger than the burst are admitted in burst-sized
// installments.
func NewThrottledStore(inner WeakStore, limiter *rate.Limiter) *ThrottledStore {
	return &ThrottledStore{inner: inner, limiter: limiter}
}

// waitBytes reserves n tokens, splitting requests that exceed the burst.
func (s *ThrottledStore) waitBytes(ctx context.Context, n int) error {
	burst := s.limiter.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := s.limiter.WaitN(ctx, chunk); err != nil {
			return NewTransient("throttle", err)
		}
		n -= chunk
	}
	return nil
}

// WeakGet implements WeakStore, charging for the bytes actually returned.
func (s *ThrottledStore) WeakGet(ctx context.Context, key Key) ([]byte, error) {
	v, err := s.inner.WeakGet(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.waitBytes(ctx, len(v)); err != nil {
		return nil, err
	}
	return v, nil
}

// WeakPut implements WeakStore, charging for the payload before writing.
func (s *ThrottledStore) WeakPut(ctx context.Context, key Key, value []byte) error {
	if err := s.waitBytes(ctx, len(value)); err != nil {
		return err
	}
	return s.inner.WeakPut(ctx, key, value)
}

// WeakExists implements WeakStore. Existence probes are not charged.
func (s *ThrottledStore) WeakExists(ctx context.Context, key Key) (bool, error) {
	return s.inner.WeakExists(ctx, key)
}

// WeakDelete implements WeakStore.
func (s *ThrottledStore) WeakDelete(ctx context.Context, key Key) error {
	return s.inner.WeakDelete(ctx, key)
}

// WeakIter implements WeakStore, charging one token per returned key.
func (s *ThrottledStore) WeakIter(ctx context.Context, cursor Cursor, maxItems int) (IterationResult, error) {
	res, err := s.inner.WeakIter(ctx, cursor, maxItems)
	if err != nil {
		return IterationResult{}, err
	}
	if err := s.waitBytes(ctx, len(res.Keys)); err != nil {
		return IterationResult{}, err
	}
	return res, nil
}

var _ WeakStore = (*ThrottledStore)(nil)
