package main

import (
	"fmt"
	"os"

	"github.com/rodaine/table"

	"github.com/dawn-winery/dpatchz/pkg/hdiffparse"
)

// printManifestSummary prints a one-line-per-file table of the parsed
// manifest before patching starts, the way ianlewis-go-dictzip's `list`
// command summarizes a dictzip archive's chunk table.
func printManifestSummary(diff *hdiffparse.DirDiff) {
	fmt.Fprintf(os.Stderr, "manifest: %d old files, %d new files, %d old dirs, %d new dirs, %d covers, newDataSize=%d\n",
		len(diff.HeadData.OldFiles), len(diff.HeadData.NewFiles),
		len(diff.HeadData.OldDirs), len(diff.HeadData.NewDirs),
		len(diff.MainDiff.CoverBuf.Covers), diff.MainDiff.NewDataSize)

	tbl := table.New("new file", "size", "old file", "size")
	tbl.WithWriter(os.Stderr)
	n := len(diff.HeadData.NewFiles)
	if len(diff.HeadData.OldFiles) > n {
		n = len(diff.HeadData.OldFiles)
	}
	for i := 0; i < n; i++ {
		var newName, oldName string
		var newSize, oldSize uint64
		if i < len(diff.HeadData.NewFiles) {
			newName = diff.HeadData.NewFiles[i].Name
			newSize = diff.HeadData.NewFiles[i].FileSize
		}
		if i < len(diff.HeadData.OldFiles) {
			oldName = diff.HeadData.OldFiles[i].Name
			oldSize = diff.HeadData.OldFiles[i].FileSize
		}
		tbl.AddRow(newName, newSize, oldName, oldSize)
	}
	tbl.Print()
}

// printCompletionSummary prints where the patched tree landed.
func printCompletionSummary(diff *hdiffparse.DirDiff, destDir string) {
	fmt.Fprintf(os.Stderr, "patched %d files into %s\n", len(diff.HeadData.NewFiles), destDir)
}
