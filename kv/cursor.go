package kv

import (
	"encoding/base64"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Cursor is an opaque, resumable iteration token.
//
// The zero Cursor means "start from the beginning" when passed to WeakIter,
// and "iteration complete" when returned in an IterationResult. Tokens are
// serializable via Token/ResumeCursor so an iteration sequence can survive a
// process restart. Callers must never construct token text by hand; its
// layout is private to the backend that issued it.
type Cursor struct {
	token string
}

// IsZero reports whether c is the zero Cursor.
func (c Cursor) IsZero() bool { return c.token == "" }

// Token returns the cursor's serialized form. The zero Cursor yields "".
func (c Cursor) Token() string { return c.token }

// ResumeCursor reconstructs a Cursor from a token previously obtained via
// Token. It performs no validation; a token fed to the wrong backend (or a
// corrupted one) surfaces as a Permanent error from WeakIter.
func ResumeCursor(token string) Cursor { return Cursor{token: token} }

// Cursor tokens are canonical CBOR wrapped in unpadded base64url. Canonical
// encoding keeps tokens stable for equal state; base64url keeps them safe to
// pass through logs, URLs and config files.
var cursorEncMode, _ = cbor.EncOptions{Sort: cbor.SortCanonical}.EncMode()

// EncodeCursor packs backend-private iteration state into a Cursor. Backends
// call this from WeakIter; it is exported so out-of-tree backends can use the
// same token envelope.
func EncodeCursor(state any) (Cursor, error) {
	b, err := cursorEncMode.Marshal(state)
	if err != nil {
		return Cursor{}, NewPermanent("encode_cursor", err)
	}
	return Cursor{token: base64.RawURLEncoding.EncodeToString(b)}, nil
}

// DecodeCursor unpacks a Cursor produced by EncodeCursor into state. A
// malformed token is a Permanent error: retrying cannot repair it.
func DecodeCursor(c Cursor, state any) error {
	b, err := base64.RawURLEncoding.DecodeString(c.token)
	if err != nil {
		return NewPermanent("decode_cursor", fmt.Errorf("malformed cursor token: %w", err))
	}
	if err := cbor.Unmarshal(b, state); err != nil {
		return NewPermanent("decode_cursor", fmt.Errorf("malformed cursor token: %w", err))
	}
	return nil
}
