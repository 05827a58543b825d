package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "synapview",
		Short: "Synapview - interactive graph layout and synchronization engine",
		Long: `Synapview runs a live force-directed layout over a concept graph and
streams it to connected clients: incremental merges relax the existing
layout instead of recomputing it, parallel edges fan out into curves,
and pinned nodes stay exactly where the user put them.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newSimulateCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
