package kv

import "fmt"

// Key identifies a value in a WeakStore or Store.
//
// A Key wraps a non-empty string over the alphabet 0-9a-f. It is immutable
// and comparable by value, so it can be used as a map key. For Odb usage keys
// are never invented by callers, but derived from content.
type Key struct {
	s string
}

// InvalidKeyKind discriminates Key validation failures.
type InvalidKeyKind int

const (
	// KeyEmpty means the candidate string was empty.
	KeyEmpty InvalidKeyKind = iota + 1
	// KeyInvalidCharacter means the candidate string held a byte outside 0-9a-f.
	KeyInvalidCharacter
)

// InvalidKeyError reports a Key validation failure.
//
// It is a purely local error class: it is raised before any store is touched
// and never warrants a retry.
type InvalidKeyError struct {
	Str  string
	Kind InvalidKeyKind
	Pos  int // offending byte position; -1 for KeyEmpty
}

func (e *InvalidKeyError) Error() string {
	switch e.Kind {
	case KeyEmpty:
		return "kv: key must not be empty"
	case KeyInvalidCharacter:
		return fmt.Sprintf("kv: key %q: invalid character %q at position %d", e.Str, e.Str[e.Pos], e.Pos)
	default:
		return fmt.Sprintf("kv: key %q: invalid", e.Str)
	}
}

// NewKey validates s and returns it as a Key.
//
// s must be non-empty and consist only of the characters 0-9a-f. On failure
// the returned error is an *InvalidKeyError.
func NewKey(s string) (Key, error) {
	if s == "" {
		return Key{}, &InvalidKeyError{Str: s, Kind: KeyEmpty, Pos: -1}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return Key{}, &InvalidKeyError{Str: s, Kind: KeyInvalidCharacter, Pos: i}
		}
	}
	return Key{s: s}, nil
}

// MustKey is like NewKey but panics on invalid input. Intended for tests and
// for keys that are static program constants.
func MustKey(s string) Key {
	k, err := NewKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// String returns the key's hex text.
func (k Key) String() string { return k.s }

// IsZero reports whether k is the zero Key, which is not a valid key.
func (k Key) IsZero() bool { return k.s == "" }
