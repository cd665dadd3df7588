package vfsreader

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string, content []byte) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestReadBytes_AcrossFileBoundary(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", bytes.Repeat([]byte("A"), 10))
	writeFile(t, dir, "b.txt", bytes.Repeat([]byte("B"), 10))

	files := []FileInfo{{Name: "a.txt", Size: 10}, {Name: "b.txt", Size: 10}}
	r := New(dir, files, 4, nil)
	defer r.Close()

	if err := r.Seek(7); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got, err := r.ReadBytes(6)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	want := []byte("AAABBB")
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReadBytes_AcrossWindowBoundaryWithinFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("0123456789abcdef")
	writeFile(t, dir, "a.txt", content)

	files := []FileInfo{{Name: "a.txt", Size: uint64(len(content))}}
	r := New(dir, files, 4, nil) // small window forces multiple window loads
	defer r.Close()

	if err := r.Seek(2); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got, err := r.ReadBytes(10)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	want := content[2:12]
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReadBytes_RepeatedSeeksHitCache(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("xyz-"), 20)
	writeFile(t, dir, "a.txt", content)

	files := []FileInfo{{Name: "a.txt", Size: uint64(len(content))}}
	r := New(dir, files, 8, nil)
	defer r.Close()

	for i := 0; i < 3; i++ {
		if err := r.Seek(5); err != nil {
			t.Fatalf("Seek: %v", err)
		}
		got, err := r.ReadBytes(4)
		if err != nil {
			t.Fatalf("ReadBytes: %v", err)
		}
		want := content[5:9]
		if !bytes.Equal(got, want) {
			t.Fatalf("iteration %d: got %q, want %q", i, got, want)
		}
	}
}

func TestReadBytes_ShortFileIsSourceInconsistency(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("short"))

	files := []FileInfo{{Name: "a.txt", Size: 100}}
	r := New(dir, files, 4, nil)
	defer r.Close()

	_, err := r.ReadBytes(10)
	if !errors.Is(err, ErrSourceInconsistency) {
		t.Fatalf("got err %v, want ErrSourceInconsistency", err)
	}
}

func TestSeek_BeyondTotalSize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("abc"))

	files := []FileInfo{{Name: "a.txt", Size: 3}}
	r := New(dir, files, 4, nil)
	defer r.Close()

	if err := r.Seek(4); !errors.Is(err, ErrSourceInconsistency) {
		t.Fatalf("got err %v, want ErrSourceInconsistency", err)
	}
}

func TestReadBytes_MissingFile(t *testing.T) {
	dir := t.TempDir()
	files := []FileInfo{{Name: "missing.txt", Size: 3}}
	r := New(dir, files, 4, nil)
	defer r.Close()

	_, err := r.ReadBytes(1)
	if !errors.Is(err, ErrSourceInconsistency) {
		t.Fatalf("got err %v, want ErrSourceInconsistency", err)
	}
}
