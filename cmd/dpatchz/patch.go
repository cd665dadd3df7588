package main

import (
	"context"
	"log/slog"

	"github.com/dawn-winery/dpatchz/pkg/hdiffparse"
	"github.com/dawn-winery/dpatchz/pkg/hdiffpatch"
)

// patchCommand mirrors the per-invocation command structs of
// ianlewis-go-dictzip's cmd/dictzip (decompress{path, force}): CLI flags
// are parsed once in app.go and handed off as plain fields here.
type patchCommand struct {
	diffFile  string
	sourceDir string
	outputDir string
	inPlace   bool
	verbose   bool
	cacheSize int
	logger    *slog.Logger
}

func (p *patchCommand) Run(ctx context.Context) error {
	hooks := hdiffpatch.Hooks{}
	if p.verbose {
		hooks.OnOpened = func(diff *hdiffparse.DirDiff) {
			printManifestSummary(diff)
		}
		hooks.OnComplete = func(diff *hdiffparse.DirDiff, destDir string) {
			printCompletionSummary(diff, destDir)
		}
	}
	return hdiffpatch.Run(ctx, p.diffFile, p.sourceDir, p.outputDir, p.inPlace, p.cacheSize, p.logger, hooks)
}
