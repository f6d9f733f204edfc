package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"invest-calendar/internal/storage"
)

// ShowOptions configure the show command.
type ShowOptions struct {
	Days int
	Type string
}

// Show prints upcoming calendar events.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	if opts.Days <= 0 {
		opts.Days = 14
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	from := time.Now()
	to := from.AddDate(0, 0, opts.Days)
	events, err := store.ListEvents(ctx, from, to, storage.EventType(opts.Type))
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(os.Stdout, "no upcoming events")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tType\tStock\tTitle\tSource")

	for _, event := range events {
		stock := event.StockCode
		if stock == "" {
			stock = "-"
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			event.EventDate.Format("2006-01-02"),
			event.Type,
			stock,
			sanitizeInline(event.Title),
			event.Source,
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
