package hdiffparse

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// outerMagic and innerMagic are the bit-exact format markers at the start
// of the outer container and the inner DiffZ section, respectively.
var (
	outerMagic = []byte("HDIFF19&zstd&fadler64\x00\x01\x01")
	innerMagic = []byte("HDIFF13&zstd\x00")
)

// Parse decodes a DirDiff from r in strict top-to-bottom sequence. r must
// be positioned at the start of the diff file; on success,
// diff.MainDiff.NewDataOffset is the byte offset (relative to r's start)
// of the zstd stream supplying new-data bytes.
func Parse(r Reader) (*DirDiff, error) {
	diff := &DirDiff{
		CompressionType: "zstd",
		ChecksumType:    "fadler64",
		OldPathIsDir:    true,
		NewPathIsDir:    true,
	}

	if err := matchMagic(r, outerMagic); err != nil {
		return nil, err
	}

	var err error
	if diff.OldPathCount, err = ReadVarUnsigned(r); err != nil {
		return nil, err
	}
	if diff.OldPathSumSize, err = ReadVarUnsigned(r); err != nil {
		return nil, err
	}
	if diff.NewPathCount, err = ReadVarUnsigned(r); err != nil {
		return nil, err
	}
	if diff.NewPathSumSize, err = ReadVarUnsigned(r); err != nil {
		return nil, err
	}
	if diff.OldRefFileCount, err = ReadVarUnsigned(r); err != nil {
		return nil, err
	}
	if diff.OldRefSize, err = ReadVarUnsigned(r); err != nil {
		return nil, err
	}
	if diff.NewRefFileCount, err = ReadVarUnsigned(r); err != nil {
		return nil, err
	}
	if diff.NewRefSize, err = ReadVarUnsigned(r); err != nil {
		return nil, err
	}

	for _, field := range []string{
		"sameFilePairCount", "sameFileSize", "newExecuteCount",
		"privateReservedDataSize", "privateExternDataSize", "externDataSize",
	} {
		if err := mustZero(r, field); err != nil {
			return nil, err
		}
	}

	if diff.HeadDataSize, err = ReadVarUnsigned(r); err != nil {
		return nil, err
	}
	if diff.HeadDataCompressedSize, err = ReadVarUnsigned(r); err != nil {
		return nil, err
	}
	if diff.ChecksumByteSize, err = ReadVarUnsigned(r); err != nil {
		return nil, err
	}

	checksum := make([]byte, diff.ChecksumByteSize*4)
	if err := r.Read(checksum); err != nil {
		return nil, err
	}
	diff.Checksum = checksum

	headBytes, err := ReadMaybeCompressed(r, diff.HeadDataSize, diff.HeadDataCompressedSize)
	if err != nil {
		return nil, err
	}
	headData, err := parseHeadData(r.SubReader(headBytes, "head-data"), diff)
	if err != nil {
		return nil, err
	}
	diff.HeadData = *headData

	mainDiff, err := parseDiffZ(r)
	if err != nil {
		return nil, err
	}
	diff.MainDiff = *mainDiff

	if err := checkInvariants(diff); err != nil {
		return nil, err
	}

	return diff, nil
}

func matchMagic(r Reader, want []byte) error {
	got := make([]byte, len(want))
	if err := r.Read(got); err != nil {
		return err
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("%s: at offset %d: magic mismatch: got %q, want %q: %w",
				r.Label(), r.Position(), got, want, ErrMalformed)
		}
	}
	return nil
}

func parseHeadData(r Reader, diff *DirDiff) (*HeadData, error) {
	oldPaths, err := readPaths(r, diff.OldPathCount)
	if err != nil {
		return nil, err
	}
	newPaths, err := readPaths(r, diff.NewPathCount)
	if err != nil {
		return nil, err
	}

	oldFileOffsets, err := readFileOffsets(r, diff.OldRefFileCount)
	if err != nil {
		return nil, err
	}
	newFileOffsets, err := readFileOffsets(r, diff.NewRefFileCount)
	if err != nil {
		return nil, err
	}

	oldFileSizes, err := readUints(r, diff.OldRefFileCount)
	if err != nil {
		return nil, err
	}
	newFileSizes, err := readUints(r, diff.NewRefFileCount)
	if err != nil {
		return nil, err
	}

	// Per-new-file values resembling per-file checksums, but neither
	// verified nor used by reconstruction. Read and discard exactly
	// newRefFileCount times to keep the reader positioned correctly.
	if _, err := readUints(r, diff.NewRefFileCount); err != nil {
		return nil, err
	}

	head := &HeadData{}
	var jOld uint64
	for _, name := range oldPaths {
		if isDirPath(name) {
			head.OldDirs = append(head.OldDirs, DirEntry{Name: name})
			continue
		}
		if jOld >= uint64(len(oldFileOffsets)) {
			return nil, fmt.Errorf("%s: more old files than oldRefFileCount (%d): %w", r.Label(), diff.OldRefFileCount, ErrMalformed)
		}
		head.OldFiles = append(head.OldFiles, FileEntry{
			Name:       name,
			FileOffset: oldFileOffsets[jOld],
			FileSize:   oldFileSizes[jOld],
		})
		jOld++
	}

	var jNew uint64
	for _, name := range newPaths {
		if isDirPath(name) {
			head.NewDirs = append(head.NewDirs, DirEntry{Name: name})
			continue
		}
		if jNew >= uint64(len(newFileOffsets)) {
			return nil, fmt.Errorf("%s: more new files than newRefFileCount (%d): %w", r.Label(), diff.NewRefFileCount, ErrMalformed)
		}
		head.NewFiles = append(head.NewFiles, FileEntry{
			Name:       name,
			FileOffset: newFileOffsets[jNew],
			FileSize:   newFileSizes[jNew],
		})
		jNew++
	}

	if remaining, ok := BytesRemaining(r); ok && remaining != 0 {
		return nil, fmt.Errorf("%s: %d trailing bytes after head data, want exactly headDataSize: %w", r.Label(), remaining, ErrMalformed)
	}

	return head, nil
}

func isDirPath(name string) bool {
	return name == "" || strings.HasSuffix(name, "/")
}

func readPaths(r Reader, count uint64) ([]string, error) {
	paths := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		raw, err := r.ReadUntil(0, true)
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(raw) {
			return nil, fmt.Errorf("%s: at offset %d: path %d is not valid UTF-8: %w", r.Label(), r.Position(), i, ErrMalformed)
		}
		paths = append(paths, string(raw))
	}
	return paths, nil
}

func readFileOffsets(r Reader, count uint64) ([]byte, error) {
	offsets := make([]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		v, err := ReadVarUnsigned(r)
		if err != nil {
			return nil, err
		}
		if v >= 128 {
			return nil, fmt.Errorf("%s: at offset %d: file offset %d out of range (%d >= 128): %w", r.Label(), r.Position(), i, v, ErrMalformed)
		}
		offsets = append(offsets, byte(v))
	}
	return offsets, nil
}

func readUints(r Reader, count uint64) ([]uint64, error) {
	out := make([]uint64, 0, count)
	for i := uint64(0); i < count; i++ {
		v, err := ReadVarUnsigned(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseDiffZ(r Reader) (*DiffZ, error) {
	if err := matchMagic(r, innerMagic); err != nil {
		return nil, err
	}

	diffz := &DiffZ{}
	fields := []*uint64{
		&diffz.NewDataSize, &diffz.OldDataSize, &diffz.CoverCount,
		&diffz.CoverBufSize, &diffz.CompressedCoverBufSize,
		&diffz.RLECtrlBufSize, &diffz.CompressedRLECtrlBufSize,
		&diffz.RLECodeBufSize, &diffz.CompressedRLECodeBufSize,
		&diffz.NewDataDiffSize, &diffz.CompressedNewDataDiffSize,
	}
	for _, f := range fields {
		v, err := ReadVarUnsigned(r)
		if err != nil {
			return nil, err
		}
		*f = v
	}

	coverBytes, err := ReadMaybeCompressed(r, diffz.CoverBufSize, diffz.CompressedCoverBufSize)
	if err != nil {
		return nil, err
	}
	coverReader := r.SubReader(coverBytes, "cover-buf")
	covers := make([]Cover, 0, diffz.CoverCount)
	for i := uint64(0); i < diffz.CoverCount; i++ {
		oldDelta, err := ReadVarSigned(coverReader)
		if err != nil {
			return nil, err
		}
		newDelta, err := ReadVarUnsigned(coverReader)
		if err != nil {
			return nil, err
		}
		length, err := ReadVarUnsigned(coverReader)
		if err != nil {
			return nil, err
		}
		covers = append(covers, Cover{OldPosDelta: oldDelta, NewPosDelta: newDelta, Length: length})
	}
	if remaining, ok := BytesRemaining(coverReader); ok && remaining != 0 {
		return nil, fmt.Errorf("%s: %d trailing bytes after cover buffer, want exactly coverBufSize: %w", coverReader.Label(), remaining, ErrMalformed)
	}
	diffz.CoverBuf = CoverBuf{Covers: covers}

	if err := skipRLEBlock(r, diffz.RLECtrlBufSize, diffz.CompressedRLECtrlBufSize, "RLE control"); err != nil {
		return nil, err
	}
	if err := skipRLEBlock(r, diffz.RLECodeBufSize, diffz.CompressedRLECodeBufSize, "RLE code"); err != nil {
		return nil, err
	}

	diffz.NewDataOffset = r.Position()

	return diffz, nil
}

// skipRLEBlock handles the two RLE control/code streams, a format-level
// feature this core does not interpret. Observed inputs always encode
// them empty, in which case there is nothing to skip. A non-empty RLE
// stream would require
// applying a post-filter over the reconstructed new-data stream that this
// implementation does not have, so rather than skip it silently (and
// produce wrong output) this fails loudly.
func skipRLEBlock(r Reader, uncompressedSize, compressedSize uint64, label string) error {
	if uncompressedSize == 0 && compressedSize == 0 {
		return nil
	}
	return fmt.Errorf("%s: at offset %d: %s stream is non-empty (uncompressed=%d, compressed=%d), which this implementation does not interpret: %w",
		r.Label(), r.Position(), label, uncompressedSize, compressedSize, ErrMalformed)
}

func checkInvariants(diff *DirDiff) error {
	if uint64(len(diff.HeadData.OldFiles)) != diff.OldRefFileCount {
		return fmt.Errorf("oldFiles count %d != oldRefFileCount %d: %w", len(diff.HeadData.OldFiles), diff.OldRefFileCount, ErrMalformed)
	}
	if uint64(len(diff.HeadData.NewFiles)) != diff.NewRefFileCount {
		return fmt.Errorf("newFiles count %d != newRefFileCount %d: %w", len(diff.HeadData.NewFiles), diff.NewRefFileCount, ErrMalformed)
	}
	if uint64(len(diff.HeadData.OldDirs)) != diff.OldPathCount-diff.OldRefFileCount {
		return fmt.Errorf("oldDirs count %d != oldPathCount-oldRefFileCount %d: %w", len(diff.HeadData.OldDirs), diff.OldPathCount-diff.OldRefFileCount, ErrMalformed)
	}
	if uint64(len(diff.HeadData.NewDirs)) != diff.NewPathCount-diff.NewRefFileCount {
		return fmt.Errorf("newDirs count %d != newPathCount-newRefFileCount %d: %w", len(diff.HeadData.NewDirs), diff.NewPathCount-diff.NewRefFileCount, ErrMalformed)
	}

	var oldSum, newSum uint64
	for _, f := range diff.HeadData.OldFiles {
		oldSum += f.FileSize
	}
	for _, f := range diff.HeadData.NewFiles {
		newSum += f.FileSize
	}
	if oldSum != diff.MainDiff.OldDataSize {
		return fmt.Errorf("sum of oldFiles.fileSize %d != DiffZ.oldDataSize %d: %w", oldSum, diff.MainDiff.OldDataSize, ErrMalformed)
	}
	if newSum != diff.MainDiff.NewDataSize {
		return fmt.Errorf("sum of newFiles.fileSize %d != DiffZ.newDataSize %d: %w", newSum, diff.MainDiff.NewDataSize, ErrMalformed)
	}

	return nil
}
