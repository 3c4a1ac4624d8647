// Command gafed compiles, decomposes and simulates federated queries.
package main

import (
	"fmt"
	"os"

	"github.com/goldenagents/gafed/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
