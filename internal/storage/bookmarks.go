package storage

import (
	"context"
	"fmt"
)

const (
	insertBookmarkSQL = `INSERT INTO bookmarks (user_id, event_id, memo)
    VALUES ($1, $2, $3)
    RETURNING id, created_at;`

	listBookmarksSQL = `SELECT
        b.id, b.user_id, b.event_id, b.memo, b.created_at,
        e.id, e.type, e.title, e.description, e.stock_code, e.stock_name,
        e.event_date, e.source, e.created_by, e.created_at
    FROM bookmarks b
    JOIN calendar_events e ON e.id = b.event_id
    WHERE b.user_id = $1
    ORDER BY e.event_date, b.id;`

	deleteBookmarkSQL = `DELETE FROM bookmarks WHERE id = $1 AND user_id = $2;`
)

// BookmarkStore defines operations for event bookmarks.
type BookmarkStore interface {
	CreateBookmark(ctx context.Context, bookmark Bookmark) (Bookmark, error)
	ListBookmarks(ctx context.Context, userID int64) ([]Bookmark, error)
	DeleteBookmark(ctx context.Context, id int64, userID int64) error
}

// CreateBookmark pins an event for a user. Returns ErrDuplicate when the
// event is already bookmarked.
func (s *Store) CreateBookmark(ctx context.Context, bookmark Bookmark) (Bookmark, error) {
	pool, err := s.getPool()
	if err != nil {
		return Bookmark{}, err
	}

	row := pool.QueryRow(ctx, insertBookmarkSQL, bookmark.UserID, bookmark.EventID, bookmark.Memo)
	if scanErr := row.Scan(&bookmark.ID, &bookmark.CreatedAt); scanErr != nil {
		if isUniqueViolation(scanErr) {
			return Bookmark{}, ErrDuplicate
		}
		return Bookmark{}, fmt.Errorf("insert bookmark: %w", scanErr)
	}
	return bookmark, nil
}

// ListBookmarks lists a user's bookmarks with their events attached,
// ordered by event date.
func (s *Store) ListBookmarks(ctx context.Context, userID int64) ([]Bookmark, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listBookmarksSQL, userID)
	if queryErr != nil {
		return nil, fmt.Errorf("list bookmarks: %w", queryErr)
	}
	defer rows.Close()

	bookmarks := make([]Bookmark, 0)
	for rows.Next() {
		var (
			bookmark Bookmark
			event    CalendarEvent
		)
		if scanErr := rows.Scan(
			&bookmark.ID,
			&bookmark.UserID,
			&bookmark.EventID,
			&bookmark.Memo,
			&bookmark.CreatedAt,
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
		); scanErr != nil {
			return nil, scanErr
		}
		bookmark.Event = &event
		bookmarks = append(bookmarks, bookmark)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return bookmarks, nil
}

// DeleteBookmark removes a bookmark owned by userID.
func (s *Store) DeleteBookmark(ctx context.Context, id int64, userID int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tag, execErr := pool.Exec(ctx, deleteBookmarkSQL, id, userID)
	if execErr != nil {
		return fmt.Errorf("delete bookmark: %w", execErr)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
