package cli

import (
	"time"

	"github.com/spf13/cobra"

	"invest-calendar/internal/app"
)

var (
	collectCodes   []string
	collectTimeout time.Duration
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one collection round and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.CollectOptions{
			Codes:   collectCodes,
			Timeout: collectTimeout,
		}
		return getApp().Collect(cmd.Context(), opts)
	},
}

func init() {
	collectCmd.Flags().StringSliceVar(&collectCodes, "codes", nil, "Stock codes to collect (defaults to all watched stocks)")
	collectCmd.Flags().DurationVar(&collectTimeout, "timeout", 5*time.Minute, "Abort the round after this long")
}
