package prices

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the price table used by Repository
const Schema = `
CREATE SCHEMA IF NOT EXISTS index_data;
CREATE TABLE IF NOT EXISTS index_data.stock_prices (
	ticker     TEXT             NOT NULL,
	trade_date DATE             NOT NULL,
	price      DOUBLE PRECISION NOT NULL CHECK (price > 0),
	PRIMARY KEY (ticker, trade_date)
);
`

// Repository stores daily prices in PostgreSQL
// ⭐ SSOT: price persistence lives here only
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new price repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the price table when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create price schema: %w", err)
	}
	return nil
}

// LoadTable reads prices in [from, to]; zero bounds are open
func (r *Repository) LoadTable(ctx context.Context, from, to time.Time) (*Table, error) {
	query := `
		SELECT ticker, trade_date, price
		FROM index_data.stock_prices
		WHERE ($1::date IS NULL OR trade_date >= $1)
		  AND ($2::date IS NULL OR trade_date <= $2)
		ORDER BY trade_date ASC, ticker ASC
	`

	rows, err := r.pool.Query(ctx, query, nullableDate(from), nullableDate(to))
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	b := NewBuilder()
	for rows.Next() {
		var (
			ticker string
			date   time.Time
			price  float64
		)
		if err := rows.Scan(&ticker, &date, &price); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		b.Add(date, ticker, price)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prices: %w", err)
	}

	return b.Build()
}

// Source names the repository for logs and cache keys
func (r *Repository) Source() string {
	return "postgres"
}

// SaveTable upserts every price of table in one batch
func (r *Repository) SaveTable(ctx context.Context, table *Table) (int, error) {
	query := `
		INSERT INTO index_data.stock_prices (ticker, trade_date, price)
		VALUES ($1, $2, $3)
		ON CONFLICT (ticker, trade_date) DO UPDATE SET price = EXCLUDED.price
	`

	batch := &pgx.Batch{}
	for _, d := range table.dates {
		quotes, _ := table.Snapshot(d)
		for _, q := range quotes {
			batch.Queue(query, q.Ticker, d, q.Price)
		}
	}

	count := batch.Len()
	if count == 0 {
		return 0, nil
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("save prices: %w", err)
	}
	return count, nil
}

func nullableDate(d time.Time) *time.Time {
	if d.IsZero() {
		return nil
	}
	return &d
}
