package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poof",
		Short: "Photo catalog backend for decluttering belongings",
		Long: `poof turns photos of belongings into a catalog: each upload is
re-rendered as a studio shot, labeled by a vision model, and tracked until
it is sold, donated or tossed.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env is optional
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newRevokeCmd())

	return cmd
}
