package app

import (
	"context"

	"invest-calendar/internal/collector"
)

// SyncEvents refreshes the calendar once: market holidays plus earnings
// events derived from recent filings.
func (a *App) SyncEvents(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	cl := a.newClients()
	job := collector.NewEventSyncJob(cl.kis, cl.dart, store, 7, a.Logger)
	return job.Run(ctx)
}
