package codec

import "github.com/klauspost/compress/zstd"

// Zstd compresses payloads with Zstandard. It offers the best
// ratio/throughput trade-off of the built-in codecs and is the recommended
// choice for payloads beyond a few kilobytes.
type Zstd struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstd creates a Zstd codec at the default compression level.
func NewZstd(opts ...zstd.EOption) (*Zstd, error) {
	enc, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &Zstd{enc: enc, dec: dec}, nil
}

var defaultZstd = func() *Zstd {
	z, err := NewZstd()
	if err != nil {
		panic(err) // default options never fail
	}
	return z
}()

// Encode compresses data into a Zstandard frame.
func (z *Zstd) Encode(data []byte) ([]byte, error) {
	return z.enc.EncodeAll(data, nil), nil
}

// Decode decompresses a Zstandard frame.
func (z *Zstd) Decode(data []byte) ([]byte, error) {
	return z.dec.DecodeAll(data, nil)
}

// Name returns the unique name of the codec ("zstd").
func (z *Zstd) Name() string { return "zstd" }
