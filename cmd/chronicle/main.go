// Command chronicle inspects and maintains game action history.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/chronicle/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
