// Package newdata is a pull-API wrapper over a streaming zstd decoder.
// The reconstruction driver asks for exactly n bytes at a time; the
// Puller blocks on the underlying reader as needed and never rewinds.
package newdata

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Puller decodes the zstd stream that begins at a diff file's
// newDataOffset, on demand. It is single-pass: once bytes are pulled they
// cannot be re-read.
type Puller struct {
	dec *zstd.Decoder
}

// New wraps src (the diff file's raw byte stream, already positioned at
// newDataOffset) in a streaming zstd decoder. The decoder's internal input
// buffer defaults to zstd's recommended input chunk size, matching the
// original implementation's ZSTD_DStreamInSize()-sized pump loop.
func New(src io.Reader) (*Puller, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	return &Puller{dec: dec}, nil
}

// Read delivers exactly n decompressed bytes or fails. A short underlying
// stream before the zstd frame logically ends is a fatal ErrUnexpectedEOF;
// a decoder-reported error is a fatal ErrDecompression.
func (p *Puller) Read(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(p.dec, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: stream ended before delivering %d bytes", ErrUnexpectedEOF, n)
		}
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	return buf, nil
}

// Close releases the decoder's resources. It does not close the
// underlying source.
func (p *Puller) Close() {
	p.dec.Close()
}
