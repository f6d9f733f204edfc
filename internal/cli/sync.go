package cli

import (
	"github.com/spf13/cobra"
)

var syncEventsCmd = &cobra.Command{
	Use:   "sync-events",
	Short: "Sync calendar events from market holidays and filings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SyncEvents(cmd.Context())
	},
}
