package main

import (
	"fmt"
	"os"

	"github.com/quantfold/tessera/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <pattern-id>",
	Short: "Execute a pattern against stub agents",
	Long: `Executes one pattern from the repository with stub agents that echo their
resolved arguments. Use it to preview data flow, conditions, and the
execution trace before wiring real capability providers.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		repoPath, _ := cmd.Flags().GetString("dir")
		inputsJSON, _ := cmd.Flags().GetString("inputs")
		snapshotID, _ := cmd.Flags().GetString("snapshot")
		jsonMode, _ := cmd.Flags().GetBool("json")

		if err := cli.RunPattern(repoPath, args[0], inputsJSON, snapshotID, jsonMode); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("inputs", "i", "", "Pattern inputs as a JSON object")
	runCmd.Flags().String("snapshot", "", "Data snapshot ID to pin capability calls to")
	runCmd.Flags().Bool("json", false, "Print the raw result as JSON instead of rendered markdown")
}
