// Command waypoint plays and hosts a location-based quest.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/waypoint/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
