package hdiffparse

import "errors"

// Sentinel errors identify the taxonomy a caller can check with errors.Is,
// wrapped with positional context at the point of failure.
var (
	// ErrMalformed covers magic mismatches, varint overflow, invariant
	// violations, zstd content-size mismatches and non-zero reserved fields.
	ErrMalformed = errors.New("hdiffparse: malformed diff file")

	// ErrUnexpectedEOF is returned when a reader underruns mid-structure.
	ErrUnexpectedEOF = errors.New("hdiffparse: unexpected end of input")

	// ErrDecompression is returned when the zstd decoder fails mid-frame.
	ErrDecompression = errors.New("hdiffparse: zstd decompression failed")
)
