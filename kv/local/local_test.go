package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/castore/kv"
	"github.com/hupe1980/castore/kv/kvtest"
	"github.com/hupe1980/castore/kv/local"
)

func TestStore_Conformance(t *testing.T) {
	kvtest.RunWeakStoreTests(t, "LocalStore", func(t *testing.T) kv.WeakStore {
		s, err := local.New(t.TempDir())
		require.NoError(t, err)
		return s
	})
}

func TestStore_Layout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := local.New(root)
	require.NoError(t, err)

	require.NoError(t, s.WeakPut(ctx, kv.MustKey("abcdef"), []byte("sharded")))
	require.NoError(t, s.WeakPut(ctx, kv.MustKey("a"), []byte("short")))

	// Long keys shard by their first two characters; the file name is the
	// full key either way.
	_, err = os.Stat(filepath.Join(root, "ab", "abcdef"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "a", "a"))
	require.NoError(t, err)
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	s1, err := local.New(root)
	require.NoError(t, err)
	require.NoError(t, s1.WeakPut(ctx, kv.MustKey("feed"), []byte("persisted")))

	// A fresh store over the same root sees the durably written value.
	s2, err := local.New(root)
	require.NoError(t, err)
	got, err := s2.WeakGet(ctx, kv.MustKey("feed"))
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got)
}

func TestStore_IterationIgnoresTempFiles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := local.New(root)
	require.NoError(t, err)

	require.NoError(t, s.WeakPut(ctx, kv.MustKey("cafe"), []byte("v")))

	// Simulate an orphaned temp file left behind by a crashed writer.
	require.NoError(t, os.WriteFile(filepath.Join(root, "ca", ".tmp-123456"), []byte("junk"), 0o644))

	res, err := s.WeakIter(ctx, kv.Cursor{}, 10)
	require.NoError(t, err)
	require.True(t, res.Done())
	assert.Equal(t, []kv.Key{kv.MustKey("cafe")}, res.Keys)
}

func TestStore_CursorSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s1, err := local.New(root)
	require.NoError(t, err)

	keys := []kv.Key{
		kv.MustKey("aa01"), kv.MustKey("aa02"),
		kv.MustKey("bb01"), kv.MustKey("bb02"),
		kv.MustKey("cc01"),
	}
	for _, k := range keys {
		require.NoError(t, s1.WeakPut(ctx, k, []byte("x")))
	}

	res, err := s1.WeakIter(ctx, kv.Cursor{}, 2)
	require.NoError(t, err)
	require.Len(t, res.Keys, 2)
	require.False(t, res.Done())
	token := res.Next.Token()

	// "Restart": a new store instance resumes from the serialized token.
	s2, err := local.New(root)
	require.NoError(t, err)

	seen := make(map[kv.Key]bool)
	for _, k := range res.Keys {
		seen[k] = true
	}
	cursor := kv.ResumeCursor(token)
	for {
		res, err = s2.WeakIter(ctx, cursor, 2)
		require.NoError(t, err)
		for _, k := range res.Keys {
			require.False(t, seen[k], "key %s repeated after clean resume", k)
			seen[k] = true
		}
		if res.Done() {
			break
		}
		cursor = res.Next
	}

	for _, k := range keys {
		assert.True(t, seen[k], "key %s missing", k)
	}
}

func TestStore_OverwriteIsAtomic(t *testing.T) {
	ctx := context.Background()
	s, err := local.New(t.TempDir())
	require.NoError(t, err)
	key := kv.MustKey("d00d")

	require.NoError(t, s.WeakPut(ctx, key, []byte("first value, quite long")))
	require.NoError(t, s.WeakPut(ctx, key, []byte("second")))

	got, err := s.WeakGet(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}
