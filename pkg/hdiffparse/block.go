package hdiffparse

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// sharedDecoder is safe for concurrent use (per klauspost/compress/zstd's
// Decoder.DecodeAll documentation) so one instance is reused across every
// maybe-compressed block in a parse run instead of paying per-block
// decoder setup cost.
var (
	decoderOnce sync.Once
	decoder     *zstd.Decoder
	decoderErr  error
)

func sharedDecoder() (*zstd.Decoder, error) {
	decoderOnce.Do(func() {
		decoder, decoderErr = zstd.NewDecoder(nil)
	})
	return decoder, decoderErr
}

// ReadMaybeCompressed reads either uncompressedSize raw bytes
// (compressedSize == 0) or a single zstd frame expanding to exactly
// uncompressedSize bytes.
func ReadMaybeCompressed(r Reader, uncompressedSize, compressedSize uint64) ([]byte, error) {
	if compressedSize == 0 {
		out := make([]byte, uncompressedSize)
		if err := r.Read(out); err != nil {
			return nil, err
		}
		return out, nil
	}

	compressed := make([]byte, compressedSize)
	if err := r.Read(compressed); err != nil {
		return nil, err
	}

	dec, err := sharedDecoder()
	if err != nil {
		return nil, fmt.Errorf("%s: constructing zstd decoder: %w", r.Label(), err)
	}

	out, err := dec.DecodeAll(compressed, make([]byte, 0, uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("%s: at offset %d: %w: %v", r.Label(), r.Position(), ErrDecompression, err)
	}
	if uint64(len(out)) != uncompressedSize {
		return nil, fmt.Errorf("%s: at offset %d: zstd frame declares content size %d, want %d: %w",
			r.Label(), r.Position(), len(out), uncompressedSize, ErrMalformed)
	}
	return out, nil
}
