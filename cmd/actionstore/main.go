// Command actionstore runs store scenarios, inspects and watches registry
// seed files, and lists journaled coordinated operations.
//
// Usage:
//
//	actionstore run ./scenarios --journal ./ops.db
//	actionstore inspect ./seed.yaml
//	actionstore watch ./seed.cue
//	actionstore trace --db ./ops.db
package main

import (
	"fmt"
	"os"

	"github.com/roach88/actionstore/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
