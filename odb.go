package castore

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/castore/codec"
	"github.com/hupe1980/castore/kv"
)

const defaultPutConcurrency = 8

// Odb is a content-addressable object database over a kv.WeakStore.
//
// Objects are immutable: PutObject derives the key from the content, so a
// stored object can never change under its Oid, and duplicate puts of equal
// content are harmless. Reads inherit the backend's weak visibility; an
// object is durable once PutObject returns, even if WeakGet cannot see it
// yet.
type Odb struct {
	store            kv.WeakStore
	codec            codec.Codec
	logger           *Logger
	metricsCollector MetricsCollector
	verifyOnRead     bool
	putConcurrency   int
}

// NewOdb creates an object database over store.
func NewOdb(store kv.WeakStore, opts ...Option) *Odb {
	o := options{
		codec:            codec.Default,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		putConcurrency:   defaultPutConcurrency,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.putConcurrency < 1 {
		o.putConcurrency = defaultPutConcurrency
	}

	return &Odb{
		store:            store,
		codec:            o.codec,
		logger:           o.logger,
		metricsCollector: o.metricsCollector,
		verifyOnRead:     o.verifyOnRead,
		putConcurrency:   o.putConcurrency,
	}
}

// PutObject stores content and returns its Oid. Storing content that is
// already present succeeds without rewriting it.
func (db *Odb) PutObject(ctx context.Context, content []byte) (Oid, error) {
	start := time.Now()
	oid, deduped, err := db.putObject(ctx, content)
	db.metricsCollector.RecordPut(len(content), deduped, time.Since(start), err)
	db.logger.LogPut(ctx, oid, len(content), deduped, err)
	if err != nil {
		return Oid{}, err
	}
	return oid, nil
}

func (db *Odb) putObject(ctx context.Context, content []byte) (oid Oid, deduped bool, err error) {
	oid = IdentifyObject(content)

	// Content-addressed writes are idempotent, so a visible object means the
	// upload can be skipped. A false negative just costs a redundant write.
	if ok, err := db.store.WeakExists(ctx, oid.key); err == nil && ok {
		return oid, true, nil
	}

	encoded, err := db.codec.Encode(content)
	if err != nil {
		return oid, false, kv.NewPermanent("put_object", err)
	}
	if err := db.store.WeakPut(ctx, oid.key, encoded); err != nil {
		return oid, false, err
	}
	return oid, false, nil
}

// PutObjects stores a batch of contents with bounded parallelism and returns
// their Oids in input order. On error some objects may already be stored;
// retrying the whole batch is safe because puts are idempotent.
func (db *Odb) PutObjects(ctx context.Context, contents [][]byte) ([]Oid, error) {
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(db.putConcurrency)

	oids := make([]Oid, len(contents))
	var failed atomic.Int64
	for i, content := range contents {
		g.Go(func() error {
			oid, _, err := db.putObject(gctx, content)
			if err != nil {
				failed.Add(1)
				return err
			}
			oids[i] = oid
			return nil
		})
	}
	err := g.Wait()

	db.metricsCollector.RecordBatchPut(len(contents), int(failed.Load()), time.Since(start))
	db.logger.LogBatchPut(ctx, len(contents), int(failed.Load()))
	if err != nil {
		return nil, err
	}
	return oids, nil
}

// GetObject returns the content stored under oid. A missing object yields
// kv.ErrNotFound; a payload that fails to decode, or fails digest
// verification when enabled, yields kv.ErrCorrupt.
func (db *Odb) GetObject(ctx context.Context, oid Oid) ([]byte, error) {
	start := time.Now()
	content, err := db.getObject(ctx, oid)
	db.metricsCollector.RecordGet(len(content), time.Since(start), err)
	db.logger.LogGet(ctx, oid, len(content), err)
	return content, err
}

func (db *Odb) getObject(ctx context.Context, oid Oid) ([]byte, error) {
	if oid.IsZero() {
		return nil, kv.NewPermanent("get_object", &InvalidOidError{})
	}

	encoded, err := db.store.WeakGet(ctx, oid.key)
	if err != nil {
		return nil, err
	}

	content, err := db.codec.Decode(encoded)
	if err != nil {
		return nil, kv.NewPermanent("get_object", fmt.Errorf("%w: %s decode: %s", kv.ErrCorrupt, db.codec.Name(), err))
	}

	if db.verifyOnRead && IdentifyObject(content) != oid {
		return nil, kv.NewPermanent("get_object", fmt.Errorf("%w: digest mismatch for %s", kv.ErrCorrupt, oid))
	}
	return content, nil
}

// HasObject reports whether oid is visible in the backend. A false result
// can be stale: a recent PutObject may not be visible yet.
func (db *Odb) HasObject(ctx context.Context, oid Oid) (bool, error) {
	start := time.Now()
	ok, err := db.store.WeakExists(ctx, oid.key)
	db.metricsCollector.RecordHas(time.Since(start), err)
	return ok, err
}
