package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	insertEventSQL = `INSERT INTO calendar_events (
        type, title, description, stock_code, stock_name, event_date, source, created_by
    ) VALUES (
        $1, $2, $3, $4, $5, $6, $7, $8
    )
    RETURNING id, created_at;`

	insertEventIfAbsentSQL = `INSERT INTO calendar_events (
        type, title, description, stock_code, stock_name, event_date, source, created_by
    )
    SELECT $1, $2, $3, $4, $5, $6, $7, $8
    WHERE NOT EXISTS (
        SELECT 1 FROM calendar_events
        WHERE type = $1
          AND title = $2
          AND stock_code = $4
          AND event_date = $6
    );`

	getEventSQL = `SELECT id, type, title, description, stock_code, stock_name,
        event_date, source, created_by, created_at
    FROM calendar_events
    WHERE id = $1;`

	listEventsBetweenSQL = `SELECT id, type, title, description, stock_code, stock_name,
        event_date, source, created_by, created_at
    FROM calendar_events
    WHERE event_date >= $1
      AND event_date <= $2
    ORDER BY event_date, id;`

	listEventsByTypeSQL = `SELECT id, type, title, description, stock_code, stock_name,
        event_date, source, created_by, created_at
    FROM calendar_events
    WHERE event_date >= $1
      AND event_date <= $2
      AND type = $3
    ORDER BY event_date, id;`

	updateEventSQL = `UPDATE calendar_events
    SET title = $2, description = $3, event_date = $4
    WHERE id = $1 AND created_by IS NOT DISTINCT FROM $5;`

	deleteEventSQL = `DELETE FROM calendar_events
    WHERE id = $1 AND created_by IS NOT DISTINCT FROM $2;`
)

// EventStore defines operations for calendar events.
type EventStore interface {
	InsertEvent(ctx context.Context, event CalendarEvent) (CalendarEvent, error)
	InsertEventIfAbsent(ctx context.Context, event CalendarEvent) (bool, error)
	EventByID(ctx context.Context, id int64) (CalendarEvent, error)
	ListEvents(ctx context.Context, from, to time.Time, eventType EventType) ([]CalendarEvent, error)
	UpdateUserEvent(ctx context.Context, id int64, userID int64, title, description string, date time.Time) error
	DeleteUserEvent(ctx context.Context, id int64, userID int64) error
}

// InsertEvent persists one event unconditionally.
func (s *Store) InsertEvent(ctx context.Context, event CalendarEvent) (CalendarEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return CalendarEvent{}, err
	}

	row := pool.QueryRow(ctx, insertEventSQL,
		event.Type,
		event.Title,
		event.Description,
		event.StockCode,
		event.StockName,
		event.EventDate,
		event.Source,
		event.CreatedBy,
	)
	if scanErr := row.Scan(&event.ID, &event.CreatedAt); scanErr != nil {
		return CalendarEvent{}, fmt.Errorf("insert event: %w", scanErr)
	}
	return event, nil
}

// InsertEventIfAbsent persists an event only when no event with the same
// type, title, stock code and date already exists. Reports whether a row
// was written.
func (s *Store) InsertEventIfAbsent(ctx context.Context, event CalendarEvent) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	tag, execErr := pool.Exec(ctx, insertEventIfAbsentSQL,
		event.Type,
		event.Title,
		event.Description,
		event.StockCode,
		event.StockName,
		event.EventDate,
		event.Source,
		event.CreatedBy,
	)
	if execErr != nil {
		return false, fmt.Errorf("insert event if absent: %w", execErr)
	}
	return tag.RowsAffected() > 0, nil
}

// EventByID fetches one event.
func (s *Store) EventByID(ctx context.Context, id int64) (CalendarEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return CalendarEvent{}, err
	}
	return scanEvent(pool.QueryRow(ctx, getEventSQL, id))
}

// ListEvents lists events within an inclusive date window, optionally
// filtered by type.
func (s *Store) ListEvents(ctx context.Context, from, to time.Time, eventType EventType) ([]CalendarEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var (
		rows     pgx.Rows
		queryErr error
	)
	if eventType == "" {
		rows, queryErr = pool.Query(ctx, listEventsBetweenSQL, from, to)
	} else {
		rows, queryErr = pool.Query(ctx, listEventsByTypeSQL, from, to, eventType)
	}
	if queryErr != nil {
		return nil, fmt.Errorf("list events: %w", queryErr)
	}
	defer rows.Close()

	events := make([]CalendarEvent, 0)
	for rows.Next() {
		event, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		events = append(events, event)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

// UpdateUserEvent edits an event but only when it was created by userID.
func (s *Store) UpdateUserEvent(ctx context.Context, id int64, userID int64, title, description string, date time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tag, execErr := pool.Exec(ctx, updateEventSQL, id, title, description, date, userID)
	if execErr != nil {
		return fmt.Errorf("update event: %w", execErr)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUserEvent removes an event but only when it was created by userID.
func (s *Store) DeleteUserEvent(ctx context.Context, id int64, userID int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tag, execErr := pool.Exec(ctx, deleteEventSQL, id, userID)
	if execErr != nil {
		return fmt.Errorf("delete event: %w", execErr)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEvent(row pgx.Row) (CalendarEvent, error) {
	var event CalendarEvent
	if err := row.Scan(
		&event.ID,
		&event.Type,
		&event.Title,
		&event.Description,
		&event.StockCode,
		&event.StockName,
		&event.EventDate,
		&event.Source,
		&event.CreatedBy,
		&event.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CalendarEvent{}, ErrNotFound
		}
		return CalendarEvent{}, fmt.Errorf("scan event: %w", err)
	}
	return event, nil
}
