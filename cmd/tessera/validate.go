package main

import (
	"fmt"
	"os"

	"github.com/quantfold/tessera/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every pattern for consistency",
	Long:  `Loads every pattern in the directory and reports binding conflicts, forward references, malformed conditions, and outputs that no step produces.`,
	Run: func(cmd *cobra.Command, args []string) {
		dir, _ := cmd.Flags().GetString("dir")
		if !cmd.Flags().Changed("dir") && len(args) > 0 {
			dir = args[0]
		}

		if err := cli.ValidatePatterns(dir); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("All patterns valid! ✅")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
