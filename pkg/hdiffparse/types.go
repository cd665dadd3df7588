package hdiffparse

// Cover is a triple selecting a run of bytes from the virtual old-file
// concatenation to appear at a specific position in the output. Covers
// are mutated in place by the reconstruction driver when they straddle
// an output-file boundary; there is no back-pointer from a Cover to its
// containing CoverBuf.
type Cover struct {
	OldPosDelta int64
	NewPosDelta uint64
	Length      uint64
}

// CoverBuf is the parsed, ordered list of covers.
type CoverBuf struct {
	Covers []Cover
}

// FileEntry is a single file referenced from either side of the diff.
// FileOffset is preserved for round-trip fidelity but never used by
// reconstruction.
type FileEntry struct {
	Name       string
	FileOffset byte
	FileSize   uint64
}

// DirEntry is a directory path from either side of the diff. Its name
// ends in "/" or is empty.
type DirEntry struct {
	Name string
}

// HeadData holds the ordered manifests parsed from the (possibly
// compressed) head-data block. Concatenation order of OldFiles defines
// the virtual old-file address space; order of NewFiles defines output
// order.
type HeadData struct {
	OldFiles []FileEntry
	NewFiles []FileEntry
	OldDirs  []DirEntry
	NewDirs  []DirEntry
}

// DiffZ is the inner "HDIFF13" section: cover/RLE block descriptors and
// the parsed cover list.
type DiffZ struct {
	NewDataSize               uint64
	OldDataSize               uint64
	CoverCount                uint64
	CoverBufSize              uint64
	CompressedCoverBufSize    uint64
	RLECtrlBufSize            uint64
	CompressedRLECtrlBufSize  uint64
	RLECodeBufSize            uint64
	CompressedRLECodeBufSize  uint64
	NewDataDiffSize           uint64
	CompressedNewDataDiffSize uint64

	CoverBuf CoverBuf

	// NewDataOffset is the file position immediately after parsing the
	// DiffZ headers and skipping the two RLE blocks: the start of the
	// zstd stream that supplies new-data bytes during reconstruction.
	NewDataOffset uint64
}

// DirDiff is the fully parsed top-level structure. It is constructed
// once by Parse and is read-only thereafter, except that Cover entries
// inside MainDiff.CoverBuf.Covers are rewritten during reconstruction.
type DirDiff struct {
	CompressionType string // always "zstd"
	ChecksumType    string // always "fadler64"

	OldPathIsDir bool
	NewPathIsDir bool

	OldPathCount    uint64
	OldPathSumSize  uint64
	NewPathCount    uint64
	NewPathSumSize  uint64
	OldRefFileCount uint64
	OldRefSize      uint64
	NewRefFileCount uint64
	NewRefSize      uint64

	HeadDataSize           uint64
	HeadDataCompressedSize uint64
	ChecksumByteSize       uint64

	// Checksum holds the checksumByteSize*4 raw bytes. It's carried
	// through for round-trip fidelity but never validated as a hash.
	Checksum []byte

	HeadData HeadData
	MainDiff DiffZ
}
