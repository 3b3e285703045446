package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
)

func newModesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List blend modes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, len(model.ValidBlendModes))
			for _, mode := range model.ValidBlendModes {
				note := ""
				if mode.IsColorSensitive() {
					note = "color sensitive"
				}
				rows = append(rows, []string{string(mode), mode.DisplayName(), note})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Mode", "Name", "Notes"}, rows))
			return nil
		},
	}
}
