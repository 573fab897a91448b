package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	envFiles []string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "saascore",
		Short:         "Plan limits, usage metering and realtime notifications",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", nil, "dotenv files to load (default .env)")

	cmd.AddCommand(
		newServeCmd(flags),
		newMigrateCmd(flags),
		newLimitsCmd(flags),
	)
	return cmd
}
