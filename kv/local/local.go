// Package local provides a filesystem-backed WeakStore.
//
// Values live under a root directory, sharded by the first two key characters
// to keep directories small:
//
//	root/ab/abcdef...   (keys of length >= 2)
//	root/a/a            (single-character keys)
//
// The file name is always the full key, so keys are recovered from directory
// listings without decoding.
//
// # Durability and atomicity
//
// WeakPut writes to a temp file in the target shard, fsyncs it, renames it
// over the final path and fsyncs the shard directory before reporting
// success (durable before success). Rename gives all-or-nothing visibility:
// a concurrent reader sees either a previous complete value or the new one,
// never a torn write. Overwrites keep the last renamed value; concurrent
// writers of the same key race benignly, per the WeakStore contract.
//
// Reads on a local filesystem are immediately consistent, which trivially
// satisfies the weak visibility rules.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/hupe1980/castore/kv"
)

const defaultPageSize = 1024

// Store is a filesystem-backed WeakStore rooted at a directory.
type Store struct {
	root string
}

// New creates (if needed) the root directory and returns a Store over it.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, kv.NewTransient("new_local_store", err)
	}
	return &Store{root: root}, nil
}

// shard returns the shard directory name for key.
func shard(key kv.Key) string {
	s := key.String()
	if len(s) < 2 {
		return s
	}
	return s[:2]
}

func (s *Store) path(key kv.Key) string {
	return filepath.Join(s.root, shard(key), key.String())
}

// WeakGet implements kv.WeakStore.
func (s *Store) WeakGet(_ context.Context, key kv.Key) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, kv.NewTransient("weak_get", err)
	}
	return data, nil
}

// WeakPut implements kv.WeakStore.
func (s *Store) WeakPut(_ context.Context, key kv.Key, value []byte) error {
	dir := filepath.Join(s.root, shard(key))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return kv.NewTransient("weak_put", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return kv.NewTransient("weak_put", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return kv.NewTransient("weak_put", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return kv.NewTransient("weak_put", err)
	}
	if err := tmp.Close(); err != nil {
		return kv.NewTransient("weak_put", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return kv.NewTransient("weak_put", err)
	}
	// The rename itself must survive a crash.
	if err := syncDir(dir); err != nil {
		return kv.NewTransient("weak_put", err)
	}
	return nil
}

// syncDir fsyncs a directory so a completed rename is durable.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// WeakExists implements kv.WeakStore.
func (s *Store) WeakExists(_ context.Context, key kv.Key) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, kv.NewTransient("weak_exists", err)
}

// WeakDelete implements kv.WeakStore. Deleting an absent key succeeds.
func (s *Store) WeakDelete(_ context.Context, key kv.Key) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return kv.NewTransient("weak_delete", err)
	}
	return nil
}

// localCursor resumes an iteration at a shard/key position.
type localCursor struct {
	Shard string `cbor:"s"` // next shard at or after this name
	Last  string `cbor:"l"` // last key returned within Shard
}

// WeakIter implements kv.WeakStore. Keys are yielded in lexicographic order
// of (shard, key); that order is an implementation detail, not a contract.
func (s *Store) WeakIter(_ context.Context, cursor kv.Cursor, maxItems int) (kv.IterationResult, error) {
	if maxItems <= 0 {
		maxItems = defaultPageSize
	}

	var state localCursor
	if !cursor.IsZero() {
		if err := kv.DecodeCursor(cursor, &state); err != nil {
			return kv.IterationResult{}, err
		}
	}

	shards, err := s.listShards()
	if err != nil {
		return kv.IterationResult{}, err
	}

	var keys []kv.Key
	for _, sh := range shards {
		if sh < state.Shard {
			continue
		}
		names, err := s.listShardKeys(sh)
		if err != nil {
			return kv.IterationResult{}, err
		}
		for _, name := range names {
			if sh == state.Shard && name <= state.Last {
				continue
			}
			k, err := kv.NewKey(name)
			if err != nil {
				continue // stray non-key file, e.g. an orphaned temp
			}
			if len(keys) == maxItems {
				// Page full and more remain: resume right after the
				// previously returned key.
				next, err := kv.EncodeCursor(state)
				if err != nil {
					return kv.IterationResult{}, err
				}
				return kv.IterationResult{Keys: keys, Next: next}, nil
			}
			keys = append(keys, k)
			state.Shard, state.Last = sh, name
		}
	}
	return kv.IterationResult{Keys: keys}, nil
}

// listShards returns the shard directory names under root, sorted.
func (s *Store) listShards() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, kv.NewTransient("weak_iter", err)
	}
	shards := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			shards = append(shards, e.Name())
		}
	}
	sort.Strings(shards)
	return shards, nil
}

// listShardKeys returns the file names in one shard, sorted. A shard removed
// between listing and reading is treated as empty.
func (s *Store) listShardKeys(sh string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, sh))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, kv.NewTransient("weak_iter", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) String() string {
	return fmt.Sprintf("local.Store(%s)", s.root)
}

var _ kv.WeakStore = (*Store)(nil)
