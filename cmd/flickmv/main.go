// Command flickmv is the command-line front end of the timeline editor core.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lilseedabe/flickmv/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "flickmv: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
