package main

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the advisory engine CLI.
var rootCmd = &cobra.Command{
	Use:   "advisor",
	Short: "Level-1 advisory engine for crypto futures markets",
	Long: `advisor evaluates per-symbol tick snapshots against a compiled
threshold set and reports an advisory long/short/no_trade decision for
two independent horizons. It never places orders and carries no
position or PnL state of its own.`,
}
