package main

import (
	"github.com/spf13/cobra"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/notify"
)

func newRootCommand(clip notify.Clipboard) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gifcheck",
		Short:         "Check GIF blend pipeline readiness",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newValidateCommand(clip))
	rootCmd.AddCommand(newModesCommand())

	return rootCmd
}
