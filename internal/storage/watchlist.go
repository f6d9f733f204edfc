package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	insertWatchSQL = `INSERT INTO watchlist (user_id, stock_code, stock_name, target_price)
    VALUES ($1, $2, $3, $4)
    RETURNING id, created_at;`

	listWatchlistSQL = `SELECT id, user_id, stock_code, stock_name, target_price, created_at
    FROM watchlist
    WHERE user_id = $1
    ORDER BY stock_code;`

	listWatchersByCodeSQL = `SELECT id, user_id, stock_code, stock_name, target_price, created_at
    FROM watchlist
    WHERE stock_code = $1
      AND target_price IS NOT NULL;`

	updateTargetPriceSQL = `UPDATE watchlist
    SET target_price = $3
    WHERE id = $1 AND user_id = $2;`

	deleteWatchSQL = `DELETE FROM watchlist WHERE id = $1 AND user_id = $2;`
)

// WatchlistStore defines operations for per-user watchlists.
type WatchlistStore interface {
	AddWatch(ctx context.Context, item WatchlistItem) (WatchlistItem, error)
	ListWatchlist(ctx context.Context, userID int64) ([]WatchlistItem, error)
	ListWatchersByCode(ctx context.Context, code string) ([]WatchlistItem, error)
	UpdateTargetPrice(ctx context.Context, id, userID int64, target *decimal.Decimal) error
	DeleteWatch(ctx context.Context, id int64, userID int64) error
}

// AddWatch adds a stock to a user's watchlist. Returns ErrDuplicate when
// the stock is already watched.
func (s *Store) AddWatch(ctx context.Context, item WatchlistItem) (WatchlistItem, error) {
	pool, err := s.getPool()
	if err != nil {
		return WatchlistItem{}, err
	}

	row := pool.QueryRow(ctx, insertWatchSQL, item.UserID, item.StockCode, item.StockName, item.TargetPrice)
	if scanErr := row.Scan(&item.ID, &item.CreatedAt); scanErr != nil {
		if isUniqueViolation(scanErr) {
			return WatchlistItem{}, ErrDuplicate
		}
		return WatchlistItem{}, fmt.Errorf("insert watchlist item: %w", scanErr)
	}
	return item, nil
}

// ListWatchlist lists a user's watched stocks.
func (s *Store) ListWatchlist(ctx context.Context, userID int64) ([]WatchlistItem, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listWatchlistSQL, userID)
	if queryErr != nil {
		return nil, fmt.Errorf("list watchlist: %w", queryErr)
	}
	defer rows.Close()
	return scanWatchlist(rows)
}

// ListWatchersByCode lists every watchlist entry for one stock that carries
// a target price. Used by alerting after each price refresh.
func (s *Store) ListWatchersByCode(ctx context.Context, code string) ([]WatchlistItem, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listWatchersByCodeSQL, code)
	if queryErr != nil {
		return nil, fmt.Errorf("list watchers by code: %w", queryErr)
	}
	defer rows.Close()
	return scanWatchlist(rows)
}

// UpdateTargetPrice sets or clears the target price on a watchlist entry.
func (s *Store) UpdateTargetPrice(ctx context.Context, id, userID int64, target *decimal.Decimal) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tag, execErr := pool.Exec(ctx, updateTargetPriceSQL, id, userID, target)
	if execErr != nil {
		return fmt.Errorf("update target price: %w", execErr)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanWatchlist(rows pgx.Rows) ([]WatchlistItem, error) {
	items := make([]WatchlistItem, 0)
	for rows.Next() {
		var item WatchlistItem
		if scanErr := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.StockCode,
			&item.StockName,
			&item.TargetPrice,
			&item.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// DeleteWatch removes a watchlist entry owned by userID.
func (s *Store) DeleteWatch(ctx context.Context, id int64, userID int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tag, execErr := pool.Exec(ctx, deleteWatchSQL, id, userID)
	if execErr != nil {
		return fmt.Errorf("delete watchlist item: %w", execErr)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
