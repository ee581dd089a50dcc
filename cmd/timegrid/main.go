package main

import (
	"fmt"
	"os"

	"github.com/seantiz/timegrid/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "timegrid:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
