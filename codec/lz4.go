package codec

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
)

// LZ4 compresses payloads into LZ4 frames. It trades ratio for speed and
// suits hot paths where decompression latency dominates.
type LZ4 struct{}

// Encode compresses data into an LZ4 frame.
func (LZ4) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode decompresses an LZ4 frame.
func (LZ4) Decode(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}

// Name returns the unique name of the codec ("lz4").
func (LZ4) Name() string { return "lz4" }
