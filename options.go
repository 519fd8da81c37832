package castore

import (
	"github.com/hupe1980/castore/codec"
)

type options struct {
	codec            codec.Codec
	logger           *Logger
	metricsCollector MetricsCollector
	verifyOnRead     bool
	putConcurrency   int
}

// Option configures Odb constructor behavior.
//
// Options exist to avoid exploding the API surface
// (e.g. codec-specific constructor variants).
type Option func(*options)

// WithCodec configures the codec applied to stored payloads.
//
// The codec transforms bytes on their way to and from the backend; object
// identity is always computed on the raw content, so the codec can change
// without re-identifying anything. If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLogger configures structured logging. If nil is passed, logging is
// disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector configures operational metrics collection.
// Use BasicMetricsCollector for in-memory counters or implement the
// interface to integrate with monitoring systems.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithVerifyOnRead configures digest verification on GetObject. When
// enabled, every read recomputes the content digest and fails with
// kv.ErrCorrupt on mismatch. Off by default; the cost is one hash per read.
func WithVerifyOnRead(verify bool) Option {
	return func(o *options) {
		o.verifyOnRead = verify
	}
}

// WithPutConcurrency bounds the number of parallel uploads PutObjects
// issues. Values below 1 reset to the default of 8.
func WithPutConcurrency(n int) Option {
	return func(o *options) {
		o.putConcurrency = n
	}
}
