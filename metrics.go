package castore

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    putCounter   prometheus.Counter
//	    getHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordPut(size int, deduped bool, duration time.Duration, err error) {
//	    p.putCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordPut is called after each PutObject.
	// size is the raw content size, deduped reports whether the upload was
	// skipped because the object already existed, err is nil if successful.
	RecordPut(size int, deduped bool, duration time.Duration, err error)

	// RecordBatchPut is called after each PutObjects.
	// count is the number of objects attempted, failed is the number that
	// failed, duration is the total time taken.
	RecordBatchPut(count, failed int, duration time.Duration)

	// RecordGet is called after each GetObject.
	// size is the decoded content size, err is nil if successful.
	RecordGet(size int, duration time.Duration, err error)

	// RecordHas is called after each HasObject.
	RecordHas(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPut(int, bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordBatchPut(int, int, time.Duration)    {}
func (NoopMetricsCollector) RecordGet(int, time.Duration, error)       {}
func (NoopMetricsCollector) RecordHas(time.Duration, error)            {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	PutCount       atomic.Int64
	PutErrors      atomic.Int64
	PutDeduped     atomic.Int64
	PutBytes       atomic.Int64
	PutTotalNanos  atomic.Int64
	BatchPutCount  atomic.Int64
	BatchPutItems  atomic.Int64
	BatchPutFailed atomic.Int64
	GetCount       atomic.Int64
	GetErrors      atomic.Int64
	GetBytes       atomic.Int64
	GetTotalNanos  atomic.Int64
	HasCount       atomic.Int64
	HasErrors      atomic.Int64
}

// RecordPut implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPut(size int, deduped bool, duration time.Duration, err error) {
	b.PutCount.Add(1)
	b.PutTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PutErrors.Add(1)
		return
	}
	b.PutBytes.Add(int64(size))
	if deduped {
		b.PutDeduped.Add(1)
	}
}

// RecordBatchPut implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatchPut(count, failed int, duration time.Duration) {
	b.BatchPutCount.Add(1)
	b.BatchPutItems.Add(int64(count))
	b.BatchPutFailed.Add(int64(failed))
}

// RecordGet implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGet(size int, duration time.Duration, err error) {
	b.GetCount.Add(1)
	b.GetTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.GetErrors.Add(1)
		return
	}
	b.GetBytes.Add(int64(size))
}

// RecordHas implements MetricsCollector.
func (b *BasicMetricsCollector) RecordHas(duration time.Duration, err error) {
	b.HasCount.Add(1)
	if err != nil {
		b.HasErrors.Add(1)
	}
}
