package kv

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// WaitOptions tunes WaitVisible's backoff loop.
type WaitOptions struct {
	// InitialBackoff is the delay after the first miss. Default 10ms.
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential growth. Default 1s.
	MaxBackoff time.Duration
	// MaxAttempts bounds the number of probes. Default 10.
	MaxAttempts int
}

func (o *WaitOptions) withDefaults() WaitOptions {
	out := WaitOptions{InitialBackoff: 10 * time.Millisecond, MaxBackoff: time.Second, MaxAttempts: 10}
	if o == nil {
		return out
	}
	if o.InitialBackoff > 0 {
		out.InitialBackoff = o.InitialBackoff
	}
	if o.MaxBackoff > 0 {
		out.MaxBackoff = o.MaxBackoff
	}
	if o.MaxAttempts > 0 {
		out.MaxAttempts = o.MaxAttempts
	}
	return out
}

// WaitVisible polls ws until key becomes visible, backing off exponentially
// with jitter between probes.
//
// It is the canonical way to bridge a WeakStore's visibility window after a
// successful put. Transient probe errors are retried like misses; Permanent
// errors other than ErrNotFound abort immediately. If the key is still not
// visible after MaxAttempts probes, the result is a Transient StoreError so
// the caller may keep waiting on a fresh budget.
func WaitVisible(ctx context.Context, ws WeakStore, key Key, opts *WaitOptions) error {
	o := opts.withDefaults()
	backoff := o.InitialBackoff

	for attempt := 1; ; attempt++ {
		ok, err := ws.WeakExists(ctx, key)
		if err != nil && IsPermanent(err) {
			return err
		}
		if err == nil && ok {
			return nil
		}
		if attempt >= o.MaxAttempts {
			return NewTransient("wait_visible",
				fmt.Errorf("key %s not visible after %d attempts", key, attempt))
		}

		// Full jitter keeps concurrent waiters from probing in lockstep.
		sleep := time.Duration(rand.Int63n(int64(backoff))) + backoff/2
		select {
		case <-ctx.Done():
			return NewTransient("wait_visible", ctx.Err())
		case <-time.After(sleep):
		}
		if backoff *= 2; backoff > o.MaxBackoff {
			backoff = o.MaxBackoff
		}
	}
}
