package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const (
	upsertStockSQL = `INSERT INTO stocks (
        code, name, market, price, change, change_rate, volume, updated_at
    ) VALUES (
        $1, $2, $3, $4, $5, $6, $7, now()
    )
    ON CONFLICT (code) DO UPDATE
    SET
        name        = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE stocks.name END,
        market      = CASE WHEN EXCLUDED.market <> '' THEN EXCLUDED.market ELSE stocks.market END,
        price       = EXCLUDED.price,
        change      = EXCLUDED.change,
        change_rate = EXCLUDED.change_rate,
        volume      = EXCLUDED.volume,
        updated_at  = now();`

	getStockSQL = `SELECT code, name, market, price, change, change_rate, volume, updated_at
    FROM stocks
    WHERE code = $1;`

	searchStocksSQL = `SELECT code, name, market, price, change, change_rate, volume, updated_at
    FROM stocks
    WHERE code = $1 OR name ILIKE '%' || $1 || '%'
    ORDER BY code
    LIMIT $2;`

	distinctWatchedCodesSQL = `SELECT DISTINCT stock_code FROM watchlist ORDER BY stock_code;`
)

// StockStore defines operations for the latest stock snapshots.
type StockStore interface {
	UpsertStock(ctx context.Context, stock Stock) error
	StockByCode(ctx context.Context, code string) (Stock, error)
	SearchStocks(ctx context.Context, query string, limit int) ([]Stock, error)
	DistinctWatchedCodes(ctx context.Context) ([]string, error)
}

// UpsertStock inserts or refreshes one stock snapshot. Empty name and
// market never overwrite previously known values.
func (s *Store) UpsertStock(ctx context.Context, stock Stock) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertStockSQL,
		stock.Code,
		stock.Name,
		stock.Market,
		stock.Price,
		stock.Change,
		stock.ChangeRate,
		stock.Volume,
	)
	if execErr != nil {
		return fmt.Errorf("upsert stock: %w", execErr)
	}
	return nil
}

// StockByCode fetches one stock snapshot.
func (s *Store) StockByCode(ctx context.Context, code string) (Stock, error) {
	pool, err := s.getPool()
	if err != nil {
		return Stock{}, err
	}

	var stock Stock
	row := pool.QueryRow(ctx, getStockSQL, code)
	if scanErr := row.Scan(
		&stock.Code,
		&stock.Name,
		&stock.Market,
		&stock.Price,
		&stock.Change,
		&stock.ChangeRate,
		&stock.Volume,
		&stock.UpdatedAt,
	); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return Stock{}, ErrNotFound
		}
		return Stock{}, fmt.Errorf("scan stock: %w", scanErr)
	}
	return stock, nil
}

// SearchStocks matches by exact code or a case-insensitive name fragment.
func (s *Store) SearchStocks(ctx context.Context, query string, limit int) ([]Stock, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, queryErr := pool.Query(ctx, searchStocksSQL, query, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("search stocks: %w", queryErr)
	}
	defer rows.Close()

	stocks := make([]Stock, 0, limit)
	for rows.Next() {
		var stock Stock
		if scanErr := rows.Scan(
			&stock.Code,
			&stock.Name,
			&stock.Market,
			&stock.Price,
			&stock.Change,
			&stock.ChangeRate,
			&stock.Volume,
			&stock.UpdatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		stocks = append(stocks, stock)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return stocks, nil
}

// DistinctWatchedCodes lists every stock code present on any watchlist.
func (s *Store) DistinctWatchedCodes(ctx context.Context) ([]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, distinctWatchedCodesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list watched codes: %w", queryErr)
	}
	defer rows.Close()

	codes := make([]string, 0)
	for rows.Next() {
		var code string
		if scanErr := rows.Scan(&code); scanErr != nil {
			return nil, scanErr
		}
		codes = append(codes, code)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return codes, nil
}
