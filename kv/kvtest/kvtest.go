// Package kvtest provides reusable conformance suites for kv backends.
//
// Backend packages call RunWeakStoreTests and/or RunStoreTests from their own
// _test.go files with a factory that yields a fresh, empty store per subtest.
// The suites assert only contractual behavior, so they tolerate eventual
// consistency by polling where the contract allows a visibility window.
package kvtest

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/castore/kv"
)

// WeakFactory yields a fresh, empty WeakStore for one subtest.
type WeakFactory func(t *testing.T) kv.WeakStore

// StoreFactory yields a fresh, empty Store for one subtest.
type StoreFactory func(t *testing.T) kv.Store

const (
	eventuallyWait = 5 * time.Second
	eventuallyTick = 10 * time.Millisecond
)

// RunWeakStoreTests drives a WeakStore implementation through the weak
// contract: durable round-trips, harmless duplicate puts, deletion, and
// bounded resumable iteration.
func RunWeakStoreTests(t *testing.T, name string, factory WeakFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("RoundTrip", func(t *testing.T) { testWeakRoundTrip(t, factory(t)) })
		t.Run("GetMissing", func(t *testing.T) { testWeakGetMissing(t, factory(t)) })
		t.Run("DuplicatePut", func(t *testing.T) { testWeakDuplicatePut(t, factory(t)) })
		t.Run("Delete", func(t *testing.T) { testWeakDelete(t, factory(t)) })
		t.Run("IterationCompleteness", func(t *testing.T) { testIterationCompleteness(t, factory(t)) })
		t.Run("IterationResume", func(t *testing.T) { testIterationResume(t, factory(t)) })
		t.Run("IterationEmpty", func(t *testing.T) { testIterationEmpty(t, factory(t)) })
	})
}

// RunStoreTests drives a Store implementation through the strong contract:
// immediate read-after-write and the compare-and-swap matrix.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("ImmediateConsistency", func(t *testing.T) { testImmediateConsistency(t, factory(t)) })
		t.Run("Overwrite", func(t *testing.T) { testStrongOverwrite(t, factory(t)) })
		t.Run("CAS", func(t *testing.T) { testCAS(t, factory(t)) })
		t.Run("GetMissing", func(t *testing.T) { testStrongGetMissing(t, factory(t)) })
	})
}

// seedKeys returns n distinct valid keys.
func seedKeys(n int) []kv.Key {
	keys := make([]kv.Key, n)
	for i := range keys {
		keys[i] = kv.MustKey(fmt.Sprintf("%04x", i))
	}
	return keys
}

func testWeakRoundTrip(t *testing.T, ws kv.WeakStore) {
	ctx := context.Background()
	key := kv.MustKey("c0ffee")
	value := []byte("round-trip payload")

	require.NoError(t, ws.WeakPut(ctx, key, value))
	require.NoError(t, kv.WaitVisible(ctx, ws, key, &kv.WaitOptions{MaxAttempts: 50}))

	// Visibility of exists does not force visibility of get at the same
	// instant, so poll the read too.
	require.Eventually(t, func() bool {
		got, err := ws.WeakGet(ctx, key)
		return err == nil && bytes.Equal(got, value)
	}, eventuallyWait, eventuallyTick)

	ok, err := ws.WeakExists(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
}

func testWeakGetMissing(t *testing.T, ws kv.WeakStore) {
	ctx := context.Background()

	_, err := ws.WeakGet(ctx, kv.MustKey("dead"))
	require.ErrorIs(t, err, kv.ErrNotFound)
	require.True(t, kv.IsPermanent(err))

	ok, err := ws.WeakExists(ctx, kv.MustKey("dead"))
	require.NoError(t, err)
	require.False(t, ok)
}

func testWeakDuplicatePut(t *testing.T, ws kv.WeakStore) {
	ctx := context.Background()
	key := kv.MustKey("abad1dea")
	v1 := []byte("first")
	v2 := []byte("second")

	require.NoError(t, ws.WeakPut(ctx, key, v1))
	require.NoError(t, ws.WeakPut(ctx, key, v2))

	// Which write wins is implementation-defined; the store must settle on
	// one of the two intact values.
	require.Eventually(t, func() bool {
		got, err := ws.WeakGet(ctx, key)
		return err == nil && (bytes.Equal(got, v1) || bytes.Equal(got, v2))
	}, eventuallyWait, eventuallyTick)
}

func testWeakDelete(t *testing.T, ws kv.WeakStore) {
	ctx := context.Background()
	key := kv.MustKey("0b501e7e")

	require.NoError(t, ws.WeakPut(ctx, key, []byte("doomed")))
	require.NoError(t, kv.WaitVisible(ctx, ws, key, &kv.WaitOptions{MaxAttempts: 50}))
	require.NoError(t, ws.WeakDelete(ctx, key))

	require.Eventually(t, func() bool {
		ok, err := ws.WeakExists(ctx, key)
		return err == nil && !ok
	}, eventuallyWait, eventuallyTick)
}

// collectAll drains an iteration sequence and returns the union of keys seen.
func collectAll(t *testing.T, ws kv.WeakStore, maxItems int) map[kv.Key]int {
	t.Helper()
	ctx := context.Background()
	seen := make(map[kv.Key]int)

	var cursor kv.Cursor
	for page := 0; ; page++ {
		require.Less(t, page, 10_000, "iteration did not terminate")

		res, err := ws.WeakIter(ctx, cursor, maxItems)
		require.NoError(t, err)
		require.LessOrEqual(t, len(res.Keys), maxItems, "page exceeds maxItems")

		for _, k := range res.Keys {
			seen[k]++
		}
		if res.Done() {
			return seen
		}
		cursor = res.Next
	}
}

func testIterationCompleteness(t *testing.T, ws kv.WeakStore) {
	ctx := context.Background()
	keys := seedKeys(25)
	for _, k := range keys {
		require.NoError(t, ws.WeakPut(ctx, k, []byte("v-"+k.String())))
		require.NoError(t, kv.WaitVisible(ctx, ws, k, &kv.WaitOptions{MaxAttempts: 50}))
	}

	// Duplicates and extra keys are allowed; omissions are not.
	seen := collectAll(t, ws, 7)
	for _, k := range keys {
		require.Contains(t, seen, k)
	}
}

func testIterationResume(t *testing.T, ws kv.WeakStore) {
	ctx := context.Background()
	keys := seedKeys(12)
	for _, k := range keys {
		require.NoError(t, ws.WeakPut(ctx, k, []byte("x")))
		require.NoError(t, kv.WaitVisible(ctx, ws, k, &kv.WaitOptions{MaxAttempts: 50}))
	}

	seen := make(map[kv.Key]int)
	res, err := ws.WeakIter(ctx, kv.Cursor{}, 5)
	require.NoError(t, err)
	for _, k := range res.Keys {
		seen[k]++
	}
	require.False(t, res.Done(), "12 keys cannot fit one page of 5")

	// Round-trip the cursor through its serialized form, as a caller
	// resuming after a process restart would.
	cursor := kv.ResumeCursor(res.Next.Token())
	for {
		res, err = ws.WeakIter(ctx, cursor, 5)
		require.NoError(t, err)
		for _, k := range res.Keys {
			seen[k]++
		}
		if res.Done() {
			break
		}
		cursor = res.Next
	}

	for _, k := range keys {
		require.Contains(t, seen, k)
	}
}

func testIterationEmpty(t *testing.T, ws kv.WeakStore) {
	ctx := context.Background()

	res, err := ws.WeakIter(ctx, kv.Cursor{}, 10)
	require.NoError(t, err)
	require.Empty(t, res.Keys)
	require.True(t, res.Done())
}

func testImmediateConsistency(t *testing.T, s kv.Store) {
	ctx := context.Background()
	key := kv.MustKey("5eed")
	value := []byte("strong value")

	require.NoError(t, s.Put(ctx, key, value))

	// No retry allowed: read-after-write must hold immediately.
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, value, got)

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
}

func testStrongOverwrite(t *testing.T, s kv.Store) {
	ctx := context.Background()
	key := kv.MustKey("beef")

	require.NoError(t, s.Put(ctx, key, []byte("old")))
	require.NoError(t, s.Put(ctx, key, []byte("new")))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), got)
}

func testCAS(t *testing.T, s kv.Store) {
	ctx := context.Background()
	key := kv.MustKey("ca5")
	v1, v2, v3 := []byte("v1"), []byte("v2"), []byte("v3")

	// Absent key: create succeeds once.
	require.NoError(t, s.PutIf(ctx, key, nil, v1))

	err := s.PutIf(ctx, key, nil, v2)
	require.ErrorIs(t, err, kv.ErrCASConflict)
	require.True(t, kv.IsPermanent(err))

	// Matching expectation: swap succeeds and is immediately visible.
	require.NoError(t, s.PutIf(ctx, key, v1, v2))
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, v2, got)

	// Stale expectation: current value is v2, not v1.
	require.ErrorIs(t, s.PutIf(ctx, key, v1, v3), kv.ErrCASConflict)

	// The failed swap must not have modified anything.
	got, err = s.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, v2, got)
}

func testStrongGetMissing(t *testing.T, s kv.Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, kv.MustKey("f00d"))
	require.ErrorIs(t, err, kv.ErrNotFound)

	ok, err := s.Exists(ctx, kv.MustKey("f00d"))
	require.NoError(t, err)
	require.False(t, ok)
}
