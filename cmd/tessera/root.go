package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tessera",
	Short: "Tessera is a pattern orchestration engine for multi-agent backends",
	Long:  `Tessera executes declarative multi-step patterns against capability agents, with ownership-based routing, circuit breakers, result caching, and full execution traces.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", ".", "Directory containing the pattern documents")
}
