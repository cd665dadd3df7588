package newdata

import (
	"bytes"
	"errors"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func compressFrame(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("zstd.NewWriter: %v", err)
	}
	if _, err := enc.Write(data); err != nil {
		t.Fatalf("enc.Write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("enc.Close: %v", err)
	}
	return buf.Bytes()
}

func TestPuller_ExactPulls(t *testing.T) {
	want := []byte("hello, new data stream")
	frame := compressFrame(t, want)

	p, err := New(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	var got []byte
	for _, n := range []int{5, 2, 0, len(want) - 7} {
		chunk, err := p.Read(n)
		if err != nil {
			t.Fatalf("Read(%d): %v", n, err)
		}
		got = append(got, chunk...)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPuller_ShortStreamIsUnexpectedEOF(t *testing.T) {
	frame := compressFrame(t, []byte("short"))

	p, err := New(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	_, err = p.Read(100)
	if !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("got err %v, want ErrUnexpectedEOF", err)
	}
}

func TestPuller_CorruptStreamIsDecompressionError(t *testing.T) {
	garbage := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	// zstd.NewReader itself may or may not error on a bad magic number
	// depending on how much of the frame header it needs before the
	// first Read; either construction failure or a Read failure is an
	// acceptable way for corrupt input to surface as ErrDecompression.
	p, err := New(bytes.NewReader(garbage))
	if err != nil {
		if !errors.Is(err, ErrDecompression) {
			t.Fatalf("New: got err %v, want ErrDecompression", err)
		}
		return
	}
	defer p.Close()

	_, err = p.Read(4)
	if !errors.Is(err, ErrDecompression) {
		t.Fatalf("got err %v, want ErrDecompression", err)
	}
}
