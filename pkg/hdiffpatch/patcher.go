// Package hdiffpatch is the reconstruction driver: it interleaves cover
// copies and streamed new-data bytes to rebuild each output file, and
// handles the output commit (direct write, or a temp-dir merge for
// in-place patching).
package hdiffpatch

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dawn-winery/dpatchz/pkg/hdiffparse"
	"github.com/dawn-winery/dpatchz/pkg/newdata"
	"github.com/dawn-winery/dpatchz/pkg/vfsreader"
)

// Patcher holds the state carried across one patch run: the parsed diff
// (held by pointer; its Cover entries are mutated in place by
// reconstruction, with no back-pointer to the container), the diff file
// (held open for the full run), the cached virtual old-file reader, and
// the streaming new-data puller.
type Patcher struct {
	diff     *hdiffparse.DirDiff
	sourceDir string
	diffFile *os.File
	vreader  *vfsreader.Reader
	puller   *newdata.Puller
	log      *slog.Logger
}

// Open parses diffPath and prepares a Patcher to reconstruct files out of
// sourceDir. cacheWindowSize configures the virtual old-file reader's
// window cache (0 selects vfsreader.DefaultWindowSize), forwarded from
// the CLI's -c/--cache flag.
func Open(diffPath, sourceDir string, cacheWindowSize int, logger *slog.Logger) (*Patcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(diffPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening diff file %s: %v", ErrOutputFailure, diffPath, err)
	}

	reader := hdiffparse.NewStreamReader(f, diffPath)
	diff, err := hdiffparse.Parse(reader)
	if err != nil {
		f.Close()
		return nil, err
	}

	files := make([]vfsreader.FileInfo, len(diff.HeadData.OldFiles))
	for i, of := range diff.HeadData.OldFiles {
		files[i] = vfsreader.FileInfo{Name: of.Name, Size: of.FileSize}
	}
	vreader := vfsreader.New(sourceDir, files, cacheWindowSize, logger)

	if _, err := f.Seek(int64(diff.MainDiff.NewDataOffset), 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: seeking diff file to new-data offset %d: %v", ErrOutputFailure, diff.MainDiff.NewDataOffset, err)
	}
	puller, err := newdata.New(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Patcher{
		diff:      diff,
		sourceDir: sourceDir,
		diffFile:  f,
		vreader:   vreader,
		puller:    puller,
		log:       logger,
	}, nil
}

// Close releases the diff file and cached source file handles.
func (p *Patcher) Close() error {
	p.puller.Close()
	verr := p.vreader.Close()
	ferr := p.diffFile.Close()
	if verr != nil {
		return verr
	}
	return ferr
}

// Manifest exposes the parsed diff for callers that want to print a
// summary (the CLI's -v/--verbose mode) without reaching into package
// hdiffparse themselves.
func (p *Patcher) Manifest() *hdiffparse.DirDiff { return p.diff }

// Patch reconstructs every new file into destDir. destDir is assumed to
// already satisfy the output-directory contract: it is the caller's job
// (Run) to ensure it exists and is empty, or to supply a fresh temp
// directory for in-place merges.
func (p *Patcher) Patch(ctx context.Context, destDir string) error {
	for _, dir := range p.diff.HeadData.NewDirs {
		if dir.Name == "" {
			continue
		}
		path := joinClean(destDir, dir.Name)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("%w: creating directory %s: %v", ErrOutputFailure, path, err)
		}
	}

	covers := p.diff.MainDiff.CoverBuf.Covers
	var coverIdx int
	var oldCursor int64
	var pendingNewData uint64
	if len(covers) > 0 {
		pendingNewData = covers[0].NewPosDelta
	} else {
		pendingNewData = p.diff.MainDiff.NewDataSize
	}

	var totalFromCovers, totalFromNewData uint64
	total := len(p.diff.HeadData.NewFiles)

	for i, outFile := range p.diff.HeadData.NewFiles {
		if err := ctx.Err(); err != nil {
			return err
		}

		destPath := joinClean(destDir, outFile.Name)
		p.log.Info("patching file", slog.Int("index", i+1), slog.Int("total", total), slog.String("path", destPath))

		if err := p.writeOneFile(ctx, destPath, outFile.FileSize, covers, &coverIdx, &oldCursor, &pendingNewData, &totalFromCovers, &totalFromNewData); err != nil {
			return err
		}

		p.log.Info("patched file", slog.Int("index", i+1), slog.Int("total", total), slog.String("path", destPath))
	}

	if coverIdx != len(covers) {
		return fmt.Errorf("%w: %d of %d covers left unconsumed", ErrReconstruction, len(covers)-coverIdx, len(covers))
	}
	if totalFromCovers+totalFromNewData != p.diff.MainDiff.NewDataSize {
		return fmt.Errorf("%w: reconstructed %d bytes (covers=%d new-data=%d), want newDataSize %d",
			ErrReconstruction, totalFromCovers+totalFromNewData, totalFromCovers, totalFromNewData, p.diff.MainDiff.NewDataSize)
	}

	return nil
}

func (p *Patcher) writeOneFile(
	ctx context.Context,
	destPath string,
	fileSize uint64,
	covers []hdiffparse.Cover,
	coverIdx *int,
	oldCursor *int64,
	pendingNewData *uint64,
	totalFromCovers, totalFromNewData *uint64,
) error {
	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening output file %s: %v", ErrOutputFailure, destPath, err)
	}
	w := bufio.NewWriter(out)

	var written uint64
	for written < fileSize {
		if err := ctx.Err(); err != nil {
			out.Close()
			return err
		}
		remaining := fileSize - written

		if *pendingNewData == 0 && *coverIdx < len(covers) {
			cov := &covers[*coverIdx]
			*oldCursor += cov.OldPosDelta

			toWrite := cov.Length
			if remaining < toWrite {
				toWrite = remaining
			}

			if err := p.vreader.Seek(uint64(*oldCursor)); err != nil {
				out.Close()
				return err
			}
			buf, err := p.vreader.ReadBytes(int(toWrite))
			if err != nil {
				out.Close()
				return err
			}
			if _, err := w.Write(buf); err != nil {
				out.Close()
				return fmt.Errorf("%w: writing %s: %v", ErrOutputFailure, destPath, err)
			}

			written += toWrite
			*oldCursor += int64(toWrite)
			*totalFromCovers += toWrite

			if toWrite < cov.Length {
				// Cover straddles this output file's boundary: the tail
				// is reapplied verbatim at the start of the next file,
				// without re-adding the now-consumed oldPosDelta.
				cov.Length -= toWrite
				cov.OldPosDelta = 0
				cov.NewPosDelta = 0
				*pendingNewData = 0
			} else {
				*coverIdx++
				if *coverIdx < len(covers) {
					*pendingNewData = covers[*coverIdx].NewPosDelta
				} else {
					*pendingNewData = 0
				}
			}
		} else {
			toWrite := remaining
			if *coverIdx < len(covers) && *pendingNewData < toWrite {
				toWrite = *pendingNewData
			}
			buf, err := p.puller.Read(int(toWrite))
			if err != nil {
				out.Close()
				return err
			}
			if _, err := w.Write(buf); err != nil {
				out.Close()
				return fmt.Errorf("%w: writing %s: %v", ErrOutputFailure, destPath, err)
			}
			*pendingNewData -= toWrite
			written += toWrite
			*totalFromNewData += toWrite
		}
	}

	if err := w.Flush(); err != nil {
		out.Close()
		return fmt.Errorf("%w: flushing %s: %v", ErrOutputFailure, destPath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %v", ErrOutputFailure, destPath, err)
	}
	return nil
}
