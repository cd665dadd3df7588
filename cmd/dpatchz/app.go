package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
)

// Exit codes: 0 on success, 1 on any fatal error. dpatchz has no separate
// "flag parse error" class -- urfave/cli already exits non-zero on flag
// parse failures before our Action runs.
const (
	exitSuccess = 0
	exitFailure = 1
)

func newApp() *cli.App {
	return &cli.App{
		Name:      "dpatchz",
		Usage:     "apply an HDIFFZ directory diff to a source directory",
		ArgsUsage: "DIFF_FILE SOURCE_DIR OUTPUT_DIR",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "print diagnostic output, including a manifest and progress summary",
			},
			&cli.IntFlag{
				Name:    "cache",
				Aliases: []string{"c"},
				Usage:   "cache-window size in bytes for the virtual old-file reader",
				Value:   0, // 0 selects vfsreader.DefaultWindowSize
			},
			&cli.BoolFlag{
				Name:    "inplace",
				Aliases: []string{"i"},
				Usage:   "patch source_dir in place, ignoring OUTPUT_DIR",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("usage: %s %s", c.App.Name, c.App.ArgsUsage)
			}
			inPlace := c.Bool("inplace")
			if !inPlace && c.NArg() < 3 {
				return fmt.Errorf("usage: %s %s", c.App.Name, c.App.ArgsUsage)
			}

			level := slog.LevelWarn
			if c.Bool("verbose") {
				level = slog.LevelInfo
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			cmd := patchCommand{
				diffFile:  c.Args().Get(0),
				sourceDir: c.Args().Get(1),
				outputDir: c.Args().Get(2),
				inPlace:   inPlace,
				verbose:   c.Bool("verbose"),
				cacheSize: c.Int("cache"),
				logger:    logger,
			}
			return cmd.Run(c.Context)
		},
		ExitErrHandler: func(c *cli.Context, err error) {
			if err == nil {
				return
			}
			fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", c.App.Name, err)
			cli.OsExiter(exitFailure)
		},
	}
}
