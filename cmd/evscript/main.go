// Command evscript validates, runs, traces and tests event scripts.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/evscript/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
