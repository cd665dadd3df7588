// Package vfsreader is a cached random-access reader over a virtual
// concatenation of on-disk files. It treats the ordered list of
// old files named in a diff's manifest as one contiguous logical byte
// stream, so covers can address it by a single running offset without the
// reconstruction driver ever reasoning about file boundaries itself.
package vfsreader

import (
	"errors"
	"fmt"
	"hash/maphash"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/dgryski/go-tinylfu"
)

// DefaultWindowSize is the cache-window size used when the caller (the
// CLI's -c/--cache flag) does not override it.
const DefaultWindowSize = 4096

// defaultCacheWindows bounds how many windows are retained at once. It is
// not CLI-configurable, unlike the window size itself; it is sized
// generously so that, in the common case of a cover batch clustered
// around a handful of files, at least one window per file survives across
// a batch of seeks.
const defaultCacheWindows = 256

// FileInfo describes one entry in the virtual concatenation: its path
// relative to the source directory root and its declared size.
type FileInfo struct {
	Name string
	Size uint64
}

type windowKey struct {
	fileIndex   int
	windowStart int64
}

var hashSeed = maphash.MakeSeed()

func hashWindowKey(k windowKey) uint64 {
	return maphash.Comparable(hashSeed, k)
}

// Reader provides seek + sequential-range-read access over the
// concatenation of files, backed by a small LRU-ish window cache
// (github.com/dgryski/go-tinylfu) so that small, locally clustered reads
// -- the common cover access pattern -- do not re-open or re-seek the
// same file handle on every call.
type Reader struct {
	root       string
	files      []FileInfo
	offsets    []uint64 // len(files)+1; offsets[i] is the start of files[i]
	totalSize  uint64
	windowSize int
	cache      *tinylfu.T[windowKey, []byte]
	handles    map[int]*os.File
	pos        uint64
	log        *slog.Logger
}

// New constructs a Reader over files rooted at root. A windowSize of zero
// or less selects DefaultWindowSize.
func New(root string, files []FileInfo, windowSize int, logger *slog.Logger) *Reader {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	offsets := make([]uint64, len(files)+1)
	var total uint64
	for i, f := range files {
		offsets[i] = total
		total += f.Size
	}
	offsets[len(files)] = total

	return &Reader{
		root:       root,
		files:      files,
		offsets:    offsets,
		totalSize:  total,
		windowSize: windowSize,
		cache:      tinylfu.New[windowKey, []byte](defaultCacheWindows, defaultCacheWindows*10, hashWindowKey),
		handles:    make(map[int]*os.File),
		log:        logger,
	}
}

// Close releases every file handle opened lazily during reads.
func (r *Reader) Close() error {
	var firstErr error
	for idx, f := range r.handles {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s: %w", r.files[idx].Name, err)
		}
	}
	r.handles = make(map[int]*os.File)
	return firstErr
}

// Position returns the current virtual offset.
func (r *Reader) Position() uint64 { return r.pos }

// TotalSize returns the size of the full virtual concatenation.
func (r *Reader) TotalSize() uint64 { return r.totalSize }

// Seek repositions the reader at a virtual offset into the concatenation.
func (r *Reader) Seek(offset uint64) error {
	if offset > r.totalSize {
		return fmt.Errorf("%w: seek to %d beyond total size %d", ErrSourceInconsistency, offset, r.totalSize)
	}
	r.pos = offset
	return nil
}

// locate finds the file owning virtual offset and the intra-file offset
// within it, via binary search over the prefix-offset table rather than
// a linear scan.
func (r *Reader) locate(offset uint64) (fileIndex int, intraOffset uint64) {
	idx := sort.Search(len(r.files), func(i int) bool { return r.offsets[i+1] > offset })
	if idx == len(r.files) {
		return idx, 0
	}
	return idx, offset - r.offsets[idx]
}

func (r *Reader) handleFor(fileIndex int) (*os.File, error) {
	if f, ok := r.handles[fileIndex]; ok {
		return f, nil
	}
	info := r.files[fileIndex]
	path := filepath.Join(r.root, info.Name)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrSourceInconsistency, path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", ErrSourceInconsistency, path, err)
	}
	if uint64(stat.Size()) < info.Size {
		f.Close()
		return nil, fmt.Errorf("%w: %s is %d bytes, manifest declares %d", ErrSourceInconsistency, path, stat.Size(), info.Size)
	}
	r.handles[fileIndex] = f
	r.log.Debug("opened source file", slog.String("path", path), slog.Uint64("size", info.Size))
	return f, nil
}

func (r *Reader) loadWindow(fileIndex int, windowStart int64) ([]byte, error) {
	handle, err := r.handleFor(fileIndex)
	if err != nil {
		return nil, err
	}
	fileSize := int64(r.files[fileIndex].Size)
	want := int64(r.windowSize)
	if windowStart+want > fileSize {
		want = fileSize - windowStart
	}
	if want <= 0 {
		return nil, nil
	}
	buf := make([]byte, want)
	n, err := handle.ReadAt(buf, windowStart)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: reading %s at %d: %v", ErrSourceInconsistency, r.files[fileIndex].Name, windowStart, err)
	}
	if int64(n) < want {
		return nil, fmt.Errorf("%w: %s shorter than declared size (got %d bytes at offset %d, wanted %d)",
			ErrSourceInconsistency, r.files[fileIndex].Name, n, windowStart, want)
	}
	return buf[:n], nil
}

// ReadBytes reads exactly n bytes starting at the reader's current
// position, advancing it, and transparently crossing file boundaries.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("vfsreader: negative read size %d", n)
	}
	out := make([]byte, n)
	read := 0
	for read < n {
		if r.pos >= r.totalSize {
			return nil, fmt.Errorf("%w: read past end of virtual concatenation (size %d)", ErrSourceInconsistency, r.totalSize)
		}
		fileIndex, intraOffset := r.locate(r.pos)
		windowStart := (int64(intraOffset) / int64(r.windowSize)) * int64(r.windowSize)
		key := windowKey{fileIndex: fileIndex, windowStart: windowStart}

		window, ok := r.cache.Get(key)
		if !ok {
			var err error
			window, err = r.loadWindow(fileIndex, windowStart)
			if err != nil {
				return nil, err
			}
			r.cache.Add(key, window)
		}

		offsetInWindow := int(int64(intraOffset) - windowStart)
		if offsetInWindow >= len(window) {
			return nil, fmt.Errorf("%w: %s shorter than declared size", ErrSourceInconsistency, r.files[fileIndex].Name)
		}
		avail := len(window) - offsetInWindow
		toCopy := n - read
		if toCopy > avail {
			toCopy = avail
		}
		copy(out[read:read+toCopy], window[offsetInWindow:offsetInWindow+toCopy])
		read += toCopy
		r.pos += uint64(toCopy)
	}
	return out, nil
}
