package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "ctx-orch",
		Short: "Context Orchestrator - Dynamic resource integration pipeline",
		Long: `Context Orchestrator fetches documentation resources with caching and
fallbacks, expands linked documents recursively, enhances user requests
into research-backed task hierarchies, and dispatches the resulting
sub-tasks to named squads.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
