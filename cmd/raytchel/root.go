package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "raytchel",
	Short: "Raytchel is the authoring and guardrail core for the WhatsApp sales assistant",
	Long: `Raytchel manages versioned conversation flows, per-tenant runtime
snapshots with incremental sync, guardrails gating AI replies, and the
human hand-off lifecycle.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
