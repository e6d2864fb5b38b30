// Command lockstep runs programs under a deterministic scheduler, records
// their schedules to traces and replays them.
package main

import (
	"fmt"
	"os"

	"github.com/tebeka/atexit"

	"github.com/roach88/lockstep/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	atexit.Exit(cli.GetExitCode(err))
}
