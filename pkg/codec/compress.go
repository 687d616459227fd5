package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
)

// Compression identifies the transform applied to a command/control-message
// body before it is framed.
type Compression byte

const (
	NoCompression Compression = iota
	Snappy
	LZ4
	Zstd
)

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case Snappy:
		return "snappy"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// Compress transforms body according to c. NoCompression is a no-op that
// returns body unchanged (and unwired handlers never pay for it).
func Compress(c Compression, body []byte) ([]byte, error) {
	switch c {
	case NoCompression:
		return body, nil
	case Snappy:
		return snappy.Encode(nil, body), nil
	case LZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(body); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return buf.Bytes(), nil
	case Zstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd compress: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(body, nil), nil
	default:
		return nil, fmt.Errorf("codec: unknown compression %d", c)
	}
}

// Decompress reverses Compress.
func Decompress(c Compression, body []byte) ([]byte, error) {
	switch c {
	case NoCompression:
		return body, nil
	case Snappy:
		out, err := snappy.Decode(nil, body)
		if err != nil {
			return nil, fmt.Errorf("snappy decompress: %w", err)
		}
		return out, nil
	case LZ4:
		r := lz4.NewReader(bytes.NewReader(body))
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return out, nil
	case Zstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("codec: unknown compression %d", c)
	}
}
