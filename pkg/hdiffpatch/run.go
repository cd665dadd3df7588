package hdiffpatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dawn-winery/dpatchz/pkg/hdiffparse"
)

// Hooks lets a caller observe a Run without reimplementing its
// orchestration. Both fields are optional; a nil hook is simply skipped.
// The CLI's verbose mode uses these to print a manifest summary right
// after the diff is opened and a completion summary right before Run
// returns.
type Hooks struct {
	OnOpened   func(*hdiffparse.DirDiff)
	OnComplete func(*hdiffparse.DirDiff, destDir string)
}

// Run is the full end-to-end operation the CLI drives: open and parse the
// diff, validate the source directory, pick the real destination (direct
// or an in-place temp directory inside the source), reconstruct every file, and -- for
// in-place runs -- merge the temp tree back over the source. It is the
// single call both the CLI and its tests use for an actual patch
// application; the CLI layers verbose-mode printing on top via hooks
// instead of reimplementing any of these steps itself.
func Run(ctx context.Context, diffPath, sourceDir, outputDir string, inPlace bool, cacheWindowSize int, logger *slog.Logger, hooks Hooks) error {
	if logger == nil {
		logger = slog.Default()
	}

	if err := ValidateSourceDir(sourceDir); err != nil {
		return err
	}

	destDir := outputDir
	if inPlace {
		tmp, err := GetTempDir(sourceDir)
		if err != nil {
			return fmt.Errorf("%w: choosing temp directory: %v", ErrOutputFailure, err)
		}
		if err := os.MkdirAll(tmp, 0o755); err != nil {
			return fmt.Errorf("%w: creating temp directory %s: %v", ErrOutputFailure, tmp, err)
		}
		logger.Info("patching in place", slog.String("source", sourceDir), slog.String("temp", tmp))
		destDir = tmp
	} else {
		if err := PrepareOutputDir(destDir); err != nil {
			return err
		}
	}

	patcher, err := Open(diffPath, sourceDir, cacheWindowSize, logger)
	if err != nil {
		return err
	}
	defer patcher.Close()

	if hooks.OnOpened != nil {
		hooks.OnOpened(patcher.Manifest())
	}

	if err := patcher.Patch(ctx, destDir); err != nil {
		return err
	}

	if inPlace {
		logger.Info("merging temporary directory", slog.String("temp", destDir), slog.String("source", sourceDir))
		if err := MergeInPlace(sourceDir, destDir); err != nil {
			return err
		}
	}

	logger.Info("patch complete")
	if hooks.OnComplete != nil {
		hooks.OnComplete(patcher.Manifest(), destDir)
	}
	return nil
}
