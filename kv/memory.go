package kv

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

const defaultPageSize = 1024

// MemStore is an in-memory backend implementing both WeakStore and Store.
//
// It exists for tests and for composing pipelines without external
// infrastructure. "Durable" here means retained for the lifetime of the
// process. Safe for concurrent use.
//
// Iteration uses an append-only slot arena: every key is assigned a slot on
// first write and a roaring bitmap tracks the live slots. A cursor is just
// the next slot to visit, so sequences are resumable and independent of one
// another. Keys written during a sequence get higher slots and may therefore
// appear in it; deleted keys drop out of the bitmap.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
	slots   []string // slot -> key text, append-only
	live    *roaring.Bitmap
	lag     time.Duration
}

type memEntry struct {
	value     []byte
	slot      uint32
	visibleAt time.Time // weak reads miss the entry before this instant
}

// MemOption configures a MemStore.
type MemOption func(*MemStore)

// WithVisibilityLag delays weak-read visibility of every WeakPut by d,
// simulating an eventually consistent backend. Strong operations are not
// affected: Get and Exists observe writes immediately, as the Store contract
// requires. Intended for exercising retry and backoff logic in tests.
func WithVisibilityLag(d time.Duration) MemOption {
	return func(m *MemStore) { m.lag = d }
}

// NewMemStore creates an empty in-memory store.
func NewMemStore(opts ...MemOption) *MemStore {
	m := &MemStore{
		entries: make(map[string]*memEntry),
		live:    roaring.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Len returns the number of stored keys, ignoring visibility lag.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// put stores a copy of value under key, assigning a slot on first write.
func (m *MemStore) put(key Key, value []byte, visibleAt time.Time) {
	copied := make([]byte, len(value))
	copy(copied, value)

	if e, ok := m.entries[key.s]; ok {
		e.value = copied
		if visibleAt.Before(e.visibleAt) {
			e.visibleAt = visibleAt
		}
		return
	}

	slot := uint32(len(m.slots))
	m.slots = append(m.slots, key.s)
	m.live.Add(slot)
	m.entries[key.s] = &memEntry{value: copied, slot: slot, visibleAt: visibleAt}
}

// get returns a copy of the entry's value, honoring visibility when weak.
func (m *MemStore) get(key Key, weak bool) ([]byte, bool) {
	e, ok := m.entries[key.s]
	if !ok || (weak && time.Now().Before(e.visibleAt)) {
		return nil, false
	}
	copied := make([]byte, len(e.value))
	copy(copied, e.value)
	return copied, true
}

// WeakGet implements WeakStore.
func (m *MemStore) WeakGet(_ context.Context, key Key) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.get(key, true)
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// WeakPut implements WeakStore.
func (m *MemStore) WeakPut(_ context.Context, key Key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.put(key, value, time.Now().Add(m.lag))
	return nil
}

// WeakExists implements WeakStore.
func (m *MemStore) WeakExists(_ context.Context, key Key) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.get(key, true)
	return ok, nil
}

// WeakDelete implements WeakStore.
func (m *MemStore) WeakDelete(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key.s]; ok {
		m.live.Remove(e.slot)
		delete(m.entries, key.s)
	}
	return nil
}

// memCursor is the arena position a sequence resumes from.
type memCursor struct {
	Next uint32 `cbor:"n"`
}

// WeakIter implements WeakStore.
func (m *MemStore) WeakIter(_ context.Context, cursor Cursor, maxItems int) (IterationResult, error) {
	if maxItems <= 0 {
		maxItems = defaultPageSize
	}

	var state memCursor
	if !cursor.IsZero() {
		if err := DecodeCursor(cursor, &state); err != nil {
			return IterationResult{}, err
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var keys []Key

	it := m.live.Iterator()
	it.AdvanceIfNeeded(state.Next)
	for it.HasNext() && len(keys) < maxItems {
		slot := it.Next()
		state.Next = slot + 1

		e := m.entries[m.slots[slot]]
		if now.Before(e.visibleAt) {
			continue // not yet visible; eventual consistency may omit it
		}
		keys = append(keys, Key{s: m.slots[slot]})
	}

	if !it.HasNext() {
		return IterationResult{Keys: keys}, nil
	}
	next, err := EncodeCursor(state)
	if err != nil {
		return IterationResult{}, err
	}
	return IterationResult{Keys: keys, Next: next}, nil
}

// Get implements Store.
func (m *MemStore) Get(_ context.Context, key Key) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.get(key, false)
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// Put implements Store. The write is immediately visible, including to weak
// reads.
func (m *MemStore) Put(_ context.Context, key Key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.put(key, value, time.Now())
	return nil
}

// PutIf implements Store. A nil expected means the key must be absent.
func (m *MemStore) PutIf(_ context.Context, key Key, expected, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.get(key, false)
	switch {
	case expected == nil:
		if ok {
			return ErrCASConflict
		}
	case !ok || !bytes.Equal(current, expected):
		return ErrCASConflict
	}

	m.put(key, value, time.Now())
	return nil
}

// Exists implements Store.
func (m *MemStore) Exists(_ context.Context, key Key) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.get(key, false)
	return ok, nil
}

var (
	_ WeakStore = (*MemStore)(nil)
	_ Store     = (*MemStore)(nil)
)
