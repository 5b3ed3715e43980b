package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:     "hashmon",
		Short:   "Monitor file integrity with content digests",
		Version: version + " (" + commit + ")",
	}

	root.AddCommand(newWatchCmd())

	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
