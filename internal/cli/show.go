package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"invest-calendar/internal/app"
)

var (
	showDays int
	showType string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display upcoming calendar events",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showDays <= 0 {
			return fmt.Errorf("--days must be greater than zero")
		}

		opts := app.ShowOptions{
			Days: showDays,
			Type: showType,
		}
		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showDays, "days", 14, "Number of days ahead to display")
	showCmd.Flags().StringVar(&showType, "type", "", "Filter by event type")
}
