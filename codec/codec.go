// Package codec centralizes payload compression for stored objects.
//
// Codec selection is intentionally a compatibility boundary: bytes written
// with one codec only decode with the same codec. Callers that persist data
// should record the codec name alongside it and select the codec by name when
// reading back.
package codec

import "fmt"

// Codec transforms object payloads on their way to and from a store.
// Implementations must be safe for concurrent use.
type Codec interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "identity":
		return Identity{}, true
	case "zstd":
		return defaultZstd, true
	case "lz4":
		return LZ4{}, true
	default:
		return nil, false
	}
}

// Default is the codec used when none is configured.
var Default Codec = Identity{}

// Identity passes payloads through unchanged.
type Identity struct{}

// Encode returns data as is.
func (Identity) Encode(data []byte) ([]byte, error) { return data, nil }

// Decode returns data as is.
func (Identity) Decode(data []byte) ([]byte, error) { return data, nil }

// Name returns the unique name of the codec ("identity").
func (Identity) Name() string { return "identity" }

// MustEncode is a helper for internal tests/benchmarks.
func MustEncode(c Codec, data []byte) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Encode(data)
	if err != nil {
		panic(fmt.Errorf("codec %s encode failed: %w", c.Name(), err))
	}
	return b
}
