package hdiffparse

import (
	"errors"
	"fmt"
	"io"
)

// Reader is the capability set the parser depends on: sequential pull with
// a logical position counter, plus the ability to spawn an in-memory
// sub-reader over already-read bytes (used after decompressing a
// maybe-compressed block). Two concrete providers exist: streamReader
// (backed by an io.Reader, e.g. the diff file) and sliceReader (backed by
// a []byte, e.g. a decompressed head-data or cover block).
type Reader interface {
	// Read fills dst completely or returns ErrUnexpectedEOF.
	// Read, ReadByte, and ReadUntil are the only primitives the parser
	// needs; everything above this is built from them.
	Read(dst []byte) error
	// ReadByte reads a single byte or returns ErrUnexpectedEOF.
	ReadByte() (byte, error)
	// ReadUntil reads bytes up to and optionally including sentinel.
	// The returned slice never includes the sentinel byte itself.
	ReadUntil(sentinel byte, consumeSentinel bool) ([]byte, error)
	// Position returns the number of logical bytes consumed since this
	// reader (or sub-reader) was constructed.
	Position() uint64
	// SubReader returns a Reader over an in-memory slice, with its own
	// position counter and a context label chained from this reader's.
	SubReader(data []byte, contextLabel string) Reader
	// Label returns the diagnostic context chain for this reader.
	Label() string
}

// NewStreamReader wraps r as a top-level Reader, counting bytes consumed.
func NewStreamReader(r io.Reader, label string) Reader {
	return &streamReader{r: r, label: label}
}

// NewBytesReader wraps an in-memory slice as a top-level Reader. Used by
// tests; SubReader builds the same slice-backed reader type internally.
func NewBytesReader(data []byte, label string) Reader {
	return &sliceReader{data: data, label: label}
}

type streamReader struct {
	r     io.Reader
	pos   uint64
	label string
}

func (s *streamReader) Read(dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	n, err := io.ReadFull(s.r, dst)
	s.pos += uint64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%s: at offset %d: %w", s.label, s.pos, ErrUnexpectedEOF)
		}
		return fmt.Errorf("%s: at offset %d: %w", s.label, s.pos, err)
	}
	return nil
}

func (s *streamReader) ReadByte() (byte, error) {
	var b [1]byte
	if err := s.Read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s *streamReader) ReadUntil(sentinel byte, consumeSentinel bool) ([]byte, error) {
	var out []byte
	for {
		b, err := s.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == sentinel {
			if !consumeSentinel {
				// Sentinel was already consumed from the stream; a
				// streamReader cannot un-read it, so this mode only makes
				// sense for slice-backed readers. Callers never rely on
				// it here, but keep the contract honest.
				return out, fmt.Errorf("%s: ReadUntil without consuming sentinel is unsupported on a stream reader", s.label)
			}
			return out, nil
		}
		out = append(out, b)
	}
}

func (s *streamReader) Position() uint64 { return s.pos }

func (s *streamReader) Label() string { return s.label }

func (s *streamReader) SubReader(data []byte, contextLabel string) Reader {
	return &sliceReader{data: data, label: s.label + " > " + contextLabel}
}

// sliceReader reads from an in-memory slice, used for decompressed
// sub-blocks (head data, cover buffers) where random access within the
// block is never needed but a fresh position counter is.
type sliceReader struct {
	data  []byte
	pos   int
	label string
}

func (s *sliceReader) Read(dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	if s.pos+len(dst) > len(s.data) {
		return fmt.Errorf("%s: at offset %d: %w", s.label, s.pos, ErrUnexpectedEOF)
	}
	copy(dst, s.data[s.pos:s.pos+len(dst)])
	s.pos += len(dst)
	return nil
}

func (s *sliceReader) ReadByte() (byte, error) {
	if s.pos >= len(s.data) {
		return 0, fmt.Errorf("%s: at offset %d: %w", s.label, s.pos, ErrUnexpectedEOF)
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}

func (s *sliceReader) ReadUntil(sentinel byte, consumeSentinel bool) ([]byte, error) {
	start := s.pos
	for s.pos < len(s.data) {
		if s.data[s.pos] == sentinel {
			out := s.data[start:s.pos]
			if consumeSentinel {
				s.pos++
			}
			return out, nil
		}
		s.pos++
	}
	return nil, fmt.Errorf("%s: at offset %d: %w", s.label, s.pos, ErrUnexpectedEOF)
}

func (s *sliceReader) Position() uint64 { return uint64(s.pos) }

func (s *sliceReader) Label() string { return s.label }

func (s *sliceReader) SubReader(data []byte, contextLabel string) Reader {
	return &sliceReader{data: data, label: s.label + " > " + contextLabel}
}

// BytesRemaining reports the number of unread bytes in a slice-backed
// reader. Used by the parser to assert sub-readers finish exactly at their
// declared size.
func BytesRemaining(r Reader) (int, bool) {
	sr, ok := r.(*sliceReader)
	if !ok {
		return 0, false
	}
	return len(sr.data) - sr.pos, true
}
