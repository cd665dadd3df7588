// Package hdifftest builds exact-bytes synthetic HDIFFZ diff streams for
// use by other packages' tests. It exists so the parser's own decoding
// logic is never the thing that also generates the fixtures exercising
// it.
package hdifftest

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/dawn-winery/dpatchz/pkg/util"
)

// Entry is one path in either the old or new path list: a file (with an
// offset byte and size) or a directory (name ending in "/" or empty).
type Entry struct {
	Name   string
	IsDir  bool
	Offset byte
	Size   uint64
}

// Cover mirrors hdiffparse.Cover without importing it, keeping this
// package dependency-free of the thing it's testing.
type Cover struct {
	OldPosDelta int64
	NewPosDelta uint64
	Length      uint64
}

// Spec describes one synthetic diff to build.
type Spec struct {
	OldEntries []Entry
	NewEntries []Entry
	Covers     []Cover
	NewData    []byte // decompressed new-data stream contents

	CompressHeadData bool
	CompressCoverBuf bool

	// OldDataSizeOverride and NewDataSizeOverride, when non-nil, replace
	// the DiffZ oldDataSize/newDataSize fields that would otherwise be
	// derived from OldEntries/NewEntries. Used only to build
	// deliberately inconsistent fixtures for invariant-rejection tests.
	OldDataSizeOverride *uint64
	NewDataSizeOverride *uint64

	// ReservedFieldOverride, when non-nil, replaces sameFilePairCount
	// (the first of the six reserved fields) with a non-zero value, to
	// build fixtures exercising their strict rejection.
	ReservedFieldOverride *uint64

	// RLECtrlSizeOverride, when non-nil, replaces the RLE control
	// stream's declared uncompressed size, to build fixtures exercising
	// rejection of a non-empty RLE stream.
	RLECtrlSizeOverride *uint64
}

var (
	outerMagic = []byte("HDIFF19&zstd&fadler64\x00\x01\x01")
	innerMagic = []byte("HDIFF13&zstd\x00")
)

// Build assembles the full byte stream of a diff file, field by field, in
// the exact order a real decoder expects to read them.
func Build(spec Spec) ([]byte, error) {
	oldPathCount, oldRefFileCount, oldPathSumSize, oldRefSize := summarize(spec.OldEntries)
	newPathCount, newRefFileCount, newPathSumSize, newRefSize := summarize(spec.NewEntries)

	headBytes := buildHeadData(spec.OldEntries, spec.NewEntries)
	headDataSize := uint64(len(headBytes))
	var headDataCompressedSize uint64
	headBlock := headBytes
	if spec.CompressHeadData {
		compressed, err := zstdCompress(headBytes)
		if err != nil {
			return nil, err
		}
		headBlock = compressed
		headDataCompressedSize = uint64(len(compressed))
	}

	coverBytes := buildCoverBuf(spec.Covers)
	coverBufSize := uint64(len(coverBytes))
	var compressedCoverBufSize uint64
	coverBlock := coverBytes
	if spec.CompressCoverBuf {
		compressed, err := zstdCompress(coverBytes)
		if err != nil {
			return nil, err
		}
		coverBlock = compressed
		compressedCoverBufSize = uint64(len(compressed))
	}

	newData, err := zstdCompress(spec.NewData)
	if err != nil {
		return nil, err
	}

	b := util.NewDiffBuilder()
	b.Raw(outerMagic)
	b.VarUint(oldPathCount)
	b.VarUint(oldPathSumSize)
	b.VarUint(newPathCount)
	b.VarUint(newPathSumSize)
	b.VarUint(oldRefFileCount)
	b.VarUint(oldRefSize)
	b.VarUint(newRefFileCount)
	b.VarUint(newRefSize)
	reservedFirst := uint64(0)
	if spec.ReservedFieldOverride != nil {
		reservedFirst = *spec.ReservedFieldOverride
	}
	b.VarUint(reservedFirst)
	for i := 0; i < 5; i++ {
		b.VarUint(0)
	}
	b.VarUint(headDataSize)
	b.VarUint(headDataCompressedSize)
	b.VarUint(0) // checksumByteSize
	b.Raw(headBlock)

	// DiffZ.NewDataSize is the total reconstructed size across all new
	// files (sum of new entries' sizes), not the length of the streamed
	// new-data bytes -- most of a new file's bytes may come from covers
	// instead of the stream.
	newDataSize := sumSizes(spec.NewEntries)
	if spec.NewDataSizeOverride != nil {
		newDataSize = *spec.NewDataSizeOverride
	}
	oldDataSize := sumSizes(spec.OldEntries)
	if spec.OldDataSizeOverride != nil {
		oldDataSize = *spec.OldDataSizeOverride
	}

	b.Raw(innerMagic)
	b.VarUint(newDataSize) // newDataSize
	b.VarUint(oldDataSize) // oldDataSize
	b.VarUint(uint64(len(spec.Covers)))  // coverCount
	b.VarUint(coverBufSize)
	b.VarUint(compressedCoverBufSize)
	rleCtrlBufSize := uint64(0)
	if spec.RLECtrlSizeOverride != nil {
		rleCtrlBufSize = *spec.RLECtrlSizeOverride
	}
	b.VarUint(rleCtrlBufSize) // rleCtrlBufSize
	b.VarUint(0)              // compressedRleCtrlBufSize
	b.VarUint(0) // rleCodeBufSize
	b.VarUint(0) // compressedRleCodeBufSize
	b.VarUint(0) // newDataDiffSize
	b.VarUint(0) // compressedNewDataDiffSize
	b.Raw(coverBlock)
	b.Raw(newData)

	return b.Bytes(), nil
}

func summarize(entries []Entry) (pathCount, refFileCount, pathSumSize, refSize uint64) {
	for _, e := range entries {
		pathCount++
		pathSumSize += uint64(len(e.Name)) + 1
		if !e.IsDir {
			refFileCount++
			refSize += e.Size
		}
	}
	return
}

func sumSizes(entries []Entry) uint64 {
	var total uint64
	for _, e := range entries {
		if !e.IsDir {
			total += e.Size
		}
	}
	return total
}

func buildHeadData(oldEntries, newEntries []Entry) []byte {
	b := util.NewDiffBuilder()
	for _, e := range oldEntries {
		b.CString(e.Name)
	}
	for _, e := range newEntries {
		b.CString(e.Name)
	}
	for _, e := range oldEntries {
		if !e.IsDir {
			b.VarUint(uint64(e.Offset))
		}
	}
	for _, e := range newEntries {
		if !e.IsDir {
			b.VarUint(uint64(e.Offset))
		}
	}
	for _, e := range oldEntries {
		if !e.IsDir {
			b.VarUint(e.Size)
		}
	}
	for _, e := range newEntries {
		if !e.IsDir {
			b.VarUint(e.Size)
		}
	}
	for _, e := range newEntries {
		if !e.IsDir {
			b.VarUint(0) // undocumented per-new-file value
		}
	}
	return b.Bytes()
}

func buildCoverBuf(covers []Cover) []byte {
	b := util.NewDiffBuilder()
	for _, c := range covers {
		b.VarInt(c.OldPosDelta)
		b.VarUint(c.NewPosDelta)
		b.VarUint(c.Length)
	}
	return b.Bytes()
}

func zstdCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("constructing zstd encoder: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return nil, fmt.Errorf("compressing fixture data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalizing zstd frame: %w", err)
	}
	return buf.Bytes(), nil
}
