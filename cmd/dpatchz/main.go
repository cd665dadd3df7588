// Command dpatchz applies an HDIFFZ directory diff to a source directory,
// producing an updated directory (or patching the source in place).
package main

import (
	"fmt"
	"os"
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "dpatchz: %v\n", err)
		os.Exit(1)
	}
}
