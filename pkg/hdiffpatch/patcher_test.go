package hdiffpatch_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dawn-winery/dpatchz/pkg/hdiffpatch"
	"github.com/dawn-winery/dpatchz/pkg/hdifftest"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func writeDiff(t *testing.T, spec hdifftest.Spec) string {
	t.Helper()
	raw, err := hdifftest.Build(spec)
	if err != nil {
		t.Fatalf("hdifftest.Build: %v", err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "patch.hdiff")
	writeFile(t, path, raw)
	return path
}

func readOut(t *testing.T, dir, name string) []byte {
	t.Helper()
	got, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading output %s: %v", name, err)
	}
	return got
}

// A single cover spanning one old file exactly reconstructs the new
// file as a straight whole-file copy.
func TestRun_WholeFileCover(t *testing.T) {
	sourceDir := t.TempDir()
	writeFile(t, filepath.Join(sourceDir, "a.txt"), []byte("AAAAA"))

	diffPath := writeDiff(t, hdifftest.Spec{
		OldEntries: []hdifftest.Entry{{Name: "a.txt", Size: 5}},
		NewEntries: []hdifftest.Entry{{Name: "a.txt", Size: 5}},
		Covers:     []hdifftest.Cover{{OldPosDelta: 0, NewPosDelta: 0, Length: 5}},
		NewData:    nil,
	})

	outDir := filepath.Join(t.TempDir(), "out")
	if err := hdiffpatch.Run(context.Background(), diffPath, sourceDir, outDir, false, 0, nil, hdiffpatch.Hooks{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := readOut(t, outDir, "a.txt"), []byte("AAAAA"); !bytes.Equal(got, want) {
		t.Errorf("a.txt: got %q, want %q", got, want)
	}
}

// A single cover can span the boundary between two old files, copying
// a contiguous run out of the virtual concatenation of both.
func TestRun_CoverAcrossOldFiles(t *testing.T) {
	sourceDir := t.TempDir()
	writeFile(t, filepath.Join(sourceDir, "a.txt"), []byte("AAAAA"))
	writeFile(t, filepath.Join(sourceDir, "b.txt"), []byte("BBBBB"))

	diffPath := writeDiff(t, hdifftest.Spec{
		OldEntries: []hdifftest.Entry{{Name: "a.txt", Size: 5}, {Name: "b.txt", Size: 5}},
		NewEntries: []hdifftest.Entry{{Name: "out.txt", Size: 10}},
		Covers:     []hdifftest.Cover{{OldPosDelta: 0, NewPosDelta: 0, Length: 10}},
		NewData:    nil,
	})

	outDir := filepath.Join(t.TempDir(), "out")
	if err := hdiffpatch.Run(context.Background(), diffPath, sourceDir, outDir, false, 0, nil, hdiffpatch.Hooks{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := readOut(t, outDir, "out.txt"), []byte("AAAAABBBBB"); !bytes.Equal(got, want) {
		t.Errorf("out.txt: got %q, want %q", got, want)
	}
}

// A single cover can straddle the boundary between two new output
// files, so its tail must be reapplied at the start of the next file.
func TestRun_CoverStraddlesNewFileBoundary(t *testing.T) {
	sourceDir := t.TempDir()
	writeFile(t, filepath.Join(sourceDir, "a.txt"), []byte("0123456789"))

	diffPath := writeDiff(t, hdifftest.Spec{
		OldEntries: []hdifftest.Entry{{Name: "a.txt", Size: 10}},
		NewEntries: []hdifftest.Entry{{Name: "n1.txt", Size: 4}, {Name: "n2.txt", Size: 6}},
		Covers:     []hdifftest.Cover{{OldPosDelta: 0, NewPosDelta: 0, Length: 10}},
		NewData:    nil,
	})

	outDir := filepath.Join(t.TempDir(), "out")
	if err := hdiffpatch.Run(context.Background(), diffPath, sourceDir, outDir, false, 0, nil, hdiffpatch.Hooks{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := readOut(t, outDir, "n1.txt"), []byte("0123"); !bytes.Equal(got, want) {
		t.Errorf("n1.txt: got %q, want %q", got, want)
	}
	if got, want := readOut(t, outDir, "n2.txt"), []byte("456789"); !bytes.Equal(got, want) {
		t.Errorf("n2.txt: got %q, want %q", got, want)
	}
}

// A new file with no covers at all is built entirely from the
// streamed new-data bytes.
func TestRun_PureNewData(t *testing.T) {
	sourceDir := t.TempDir()

	diffPath := writeDiff(t, hdifftest.Spec{
		OldEntries: nil,
		NewEntries: []hdifftest.Entry{{Name: "out.txt", Size: 6}},
		Covers:     nil,
		NewData:    []byte("newval"),
	})

	outDir := filepath.Join(t.TempDir(), "out")
	if err := hdiffpatch.Run(context.Background(), diffPath, sourceDir, outDir, false, 0, nil, hdiffpatch.Hooks{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := readOut(t, outDir, "out.txt"), []byte("newval"); !bytes.Equal(got, want) {
		t.Errorf("out.txt: got %q, want %q", got, want)
	}
}

// Covers and streamed new-data bytes can interleave within a single
// output file.
func TestRun_InterleavedCoverAndNewData(t *testing.T) {
	sourceDir := t.TempDir()
	writeFile(t, filepath.Join(sourceDir, "a.txt"), []byte("ABCDEFGH"))

	diffPath := writeDiff(t, hdifftest.Spec{
		OldEntries: []hdifftest.Entry{{Name: "a.txt", Size: 8}},
		NewEntries: []hdifftest.Entry{{Name: "out.txt", Size: 10}},
		Covers: []hdifftest.Cover{
			{OldPosDelta: 0, NewPosDelta: 0, Length: 4},
			{OldPosDelta: 0, NewPosDelta: 2, Length: 4},
		},
		NewData: []byte("XY"),
	})

	outDir := filepath.Join(t.TempDir(), "out")
	if err := hdiffpatch.Run(context.Background(), diffPath, sourceDir, outDir, false, 0, nil, hdiffpatch.Hooks{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := readOut(t, outDir, "out.txt"), []byte("ABCDXYEFGH"); !bytes.Equal(got, want) {
		t.Errorf("out.txt: got %q, want %q", got, want)
	}
}

// A diff declaring a non-zero reserved field must be rejected, not
// silently accepted with the field ignored.
func TestOpen_RejectsNonZeroReservedField(t *testing.T) {
	sourceDir := t.TempDir()
	bogus := uint64(1)
	diffPath := writeDiff(t, hdifftest.Spec{
		OldEntries:            []hdifftest.Entry{{Name: "a.txt", Size: 1}},
		NewEntries:            []hdifftest.Entry{{Name: "a.txt", Size: 1}},
		Covers:                []hdifftest.Cover{{OldPosDelta: 0, NewPosDelta: 0, Length: 1}},
		ReservedFieldOverride: &bogus,
	})

	_, err := hdiffpatch.Open(diffPath, sourceDir, 0, nil)
	if err == nil {
		t.Fatal("expected Open to reject a diff with a non-zero reserved field")
	}
}

// In-place patching merges the reconstructed tree back over sourceDir and
// leaves no temp directory behind.
func TestRun_InPlace(t *testing.T) {
	sourceDir := t.TempDir()
	writeFile(t, filepath.Join(sourceDir, "a.txt"), []byte("AAAAA"))

	diffPath := writeDiff(t, hdifftest.Spec{
		OldEntries: []hdifftest.Entry{{Name: "a.txt", Size: 5}},
		NewEntries: []hdifftest.Entry{{Name: "a.txt", Size: 5}},
		Covers:     []hdifftest.Cover{{OldPosDelta: 0, NewPosDelta: 0, Length: 5}},
	})

	if err := hdiffpatch.Run(context.Background(), diffPath, sourceDir, "", true, 0, nil, hdiffpatch.Hooks{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := readOut(t, sourceDir, "a.txt"), []byte("AAAAA"); !bytes.Equal(got, want) {
		t.Errorf("a.txt: got %q, want %q", got, want)
	}
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if e.Name() == "tmp" || filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("leftover temp entry in source dir: %s", e.Name())
		}
	}
}

func TestPrepareOutputDir_RejectsNonEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "existing"), []byte("x"))

	if err := hdiffpatch.PrepareOutputDir(dir); err == nil {
		t.Fatal("expected error for non-empty output directory")
	}
}

func TestValidateSourceDir_MissingDir(t *testing.T) {
	if err := hdiffpatch.ValidateSourceDir(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatal("expected error for missing source directory")
	}
}
