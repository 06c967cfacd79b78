package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/openshelf/shelf-sync-node/constant"
)

// NewRootCmd builds the shelfsyncd command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shelfsyncd",
		Short: "Local-first sync daemon for a ledger-backed record collection",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Optional .env for wallet key and credentials; absence is fine.
			_ = godotenv.Load()
		},
	}

	rootCmd.PersistentFlags().String("home", constant.DefaultNodeHome, "node home directory")

	rootCmd.AddCommand(newStartCmd())
	return rootCmd
}
