package snapshot

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression names the algorithm applied to each frame.
type Compression string

const (
	// CompressionNone stores frames as raw cluster bytes.
	CompressionNone Compression = "none"
	// CompressionLZ4 uses LZ4 block compression.
	CompressionLZ4 Compression = "lz4"
	// CompressionZstd uses Zstandard.
	CompressionZstd Compression = "zstd"
)

// ParseCompression parses a compression name. The empty string selects zstd.
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case CompressionNone:
		return CompressionNone, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	case CompressionZstd, "":
		return CompressionZstd, nil
	default:
		return "", fmt.Errorf("unknown compression %q", s)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
}

// compressFrame returns the encoded frame. When compression does not shrink
// the data below 90% the raw bytes are returned with stored set.
func compressFrame(data []byte, c Compression) (out []byte, stored bool, err error) {
	var packed []byte
	switch c {
	case CompressionNone:
		return data, true, nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, false, err
		}
		packed = buf[:n]
	case CompressionZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, false, err
		}
		packed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, false, fmt.Errorf("unknown compression %q", c)
	}

	if len(packed) == 0 || float64(len(packed)) > float64(len(data))*0.9 {
		return data, true, nil
	}
	return packed, false, nil
}

// decompressFrame reverses compressFrame and checks the decoded length.
func decompressFrame(data []byte, c Compression, stored bool, rawLen int) ([]byte, error) {
	if stored {
		if len(data) != rawLen {
			return nil, fmt.Errorf("%w: stored frame is %d bytes, want %d", ErrCorrupt, len(data), rawLen)
		}
		return data, nil
	}

	out := make([]byte, rawLen)
	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		out = out[:n]
	case CompressionZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		out, err = dec.DecodeAll(data, out[:0])
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
	default:
		return nil, errors.New("compressed frame with compression " + string(c))
	}

	if len(out) != rawLen {
		return nil, fmt.Errorf("%w: frame decoded to %d bytes, want %d", ErrCorrupt, len(out), rawLen)
	}
	return out, nil
}
