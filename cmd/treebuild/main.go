// Package main is the offline spell-tree builder: it turns a scanned spell
// catalog into the per-school progression tree without a running host.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "treebuild",
	Short: "Build a spell progression tree from a scanned catalog",
	Long: `treebuild reads a spell catalog JSON document and produces the
per-school prerequisite tree used by the progression engine. Strategies:
classic (tier-first heuristic), thematic (similarity clustering) and oracle
(LLM-assisted, falls back to classic).`,
	RunE: runBuild,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
