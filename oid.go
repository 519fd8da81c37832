package castore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/hupe1980/castore/kv"
)

// OidHexLen is the length of an object ID in hex characters.
const OidHexLen = sha256.Size * 2

// Oid identifies an object by its content. Two byte sequences share an Oid
// exactly when they are equal, so Oids are stable across backends, processes,
// and time. The zero Oid identifies nothing.
type Oid struct {
	key kv.Key
}

// IdentifyObject derives the Oid for content. It is a pure function of the
// bytes (SHA-256, lowercase hex) and performs no I/O; changing it would
// orphan every stored object, so it is not configurable.
func IdentifyObject(content []byte) Oid {
	sum := sha256.Sum256(content)
	return Oid{key: kv.MustKey(hex.EncodeToString(sum[:]))}
}

// ParseOid parses the string form of an Oid, e.g. one read back from a
// manifest or index.
func ParseOid(s string) (Oid, error) {
	key, err := kv.NewKey(s)
	if err != nil {
		return Oid{}, err
	}
	if len(s) != OidHexLen {
		return Oid{}, &InvalidOidError{Str: s}
	}
	return Oid{key: key}, nil
}

// Key returns the storage key the object lives under.
func (o Oid) Key() kv.Key { return o.key }

// String returns the lowercase hex digest.
func (o Oid) String() string { return o.key.String() }

// IsZero reports whether o is the zero Oid.
func (o Oid) IsZero() bool { return o.key.IsZero() }

// InvalidOidError indicates a string that is not a well-formed object ID.
type InvalidOidError struct {
	Str string
}

func (e *InvalidOidError) Error() string {
	return fmt.Sprintf("castore: invalid oid %q: must be %d lowercase hex characters", e.Str, OidHexLen)
}
