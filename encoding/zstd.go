package encoding

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Compression names accepted in configuration
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

// EncodeAll/DecodeAll are safe for concurrent use, so one shared
// encoder/decoder pair serves every caller.
func initZstd() {
	zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if zstdErr != nil {
		return
	}
	zstdDecoder, zstdErr = zstd.NewReader(nil)
}

// Compress zstd-compresses data
func Compress(data []byte) ([]byte, error) {
	zstdOnce.Do(initZstd)
	if zstdErr != nil {
		return nil, fmt.Errorf("failed to init zstd: %w", zstdErr)
	}
	return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// Decompress reverses Compress
func Decompress(data []byte) ([]byte, error) {
	zstdOnce.Do(initZstd)
	if zstdErr != nil {
		return nil, fmt.Errorf("failed to init zstd: %w", zstdErr)
	}
	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	return out, nil
}
