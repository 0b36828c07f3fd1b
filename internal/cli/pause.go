package cli

import (
	"github.com/spf13/cobra"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Halt all sweep activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SetPaused(cmd.Context(), true)
	},
}

var unpauseCmd = &cobra.Command{
	Use:   "unpause",
	Short: "Resume sweep activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SetPaused(cmd.Context(), false)
	},
}
