package newdata

import "errors"

var (
	// ErrUnexpectedEOF is returned when the underlying stream ends before
	// delivering the requested number of bytes.
	ErrUnexpectedEOF = errors.New("newdata: unexpected end of new-data stream")

	// ErrDecompression is returned when the zstd decoder reports an error
	// mid-frame.
	ErrDecompression = errors.New("newdata: zstd decompression failed")
)
