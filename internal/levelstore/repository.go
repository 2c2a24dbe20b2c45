package levelstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/indexmodel/internal/contracts"
	"github.com/wonny/indexmodel/internal/indexconfig"
)

// Schema creates the tables used by Repository
const Schema = `
CREATE SCHEMA IF NOT EXISTS index_data;
CREATE TABLE IF NOT EXISTS index_data.index_levels (
	index_id   TEXT             NOT NULL,
	trade_date DATE             NOT NULL,
	level      DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (index_id, trade_date)
);
CREATE TABLE IF NOT EXISTS index_data.index_rebalances (
	index_id       TEXT             NOT NULL,
	rebalance_date DATE             NOT NULL,
	as_of          DATE             NOT NULL,
	constituents   JSONB            NOT NULL,
	base_level     DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (index_id, rebalance_date)
);
CREATE TABLE IF NOT EXISTS index_data.index_runs (
	id           BIGSERIAL   PRIMARY KEY,
	index_id     TEXT        NOT NULL,
	config_hash  TEXT        NOT NULL,
	config_yaml  TEXT        NOT NULL,
	price_source TEXT        NOT NULL,
	level_count  INTEGER     NOT NULL,
	last_date    DATE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Run is one recorded computation
type Run struct {
	ID          int64     `json:"id"`
	IndexID     string    `json:"index_id"`
	ConfigHash  string    `json:"config_hash"`
	PriceSource string    `json:"price_source"`
	LevelCount  int       `json:"level_count"`
	LastDate    time.Time `json:"last_date"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository handles level persistence
// ⭐ SSOT: computed levels are stored and read here only
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new level repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the level tables when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create level schema: %w", err)
	}
	return nil
}

// SaveLevels upserts series under indexID and returns the row count
func (r *Repository) SaveLevels(ctx context.Context, indexID string, series contracts.Series) (int, error) {
	query := `
		INSERT INTO index_data.index_levels (index_id, trade_date, level)
		VALUES ($1, $2, $3)
		ON CONFLICT (index_id, trade_date) DO UPDATE SET level = EXCLUDED.level
	`

	batch := &pgx.Batch{}
	for _, l := range series {
		batch.Queue(query, indexID, l.Date, l.Value)
	}
	if batch.Len() == 0 {
		return 0, nil
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("failed to save levels: %w", err)
	}
	return batch.Len(), nil
}

// LoadLevels reads the stored levels of indexID in [from, to]
func (r *Repository) LoadLevels(ctx context.Context, indexID string, from, to time.Time) (contracts.Series, error) {
	query := `
		SELECT trade_date, level
		FROM index_data.index_levels
		WHERE index_id = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, indexID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query levels: %w", err)
	}
	defer rows.Close()

	series := make(contracts.Series, 0)
	for rows.Next() {
		var l contracts.Level
		if err := rows.Scan(&l.Date, &l.Value); err != nil {
			return nil, fmt.Errorf("failed to scan level: %w", err)
		}
		series = append(series, l)
	}

	return series, rows.Err()
}

// SaveRebalances upserts the rebalance log of indexID
func (r *Repository) SaveRebalances(ctx context.Context, indexID string, rebalances []contracts.Rebalance) error {
	query := `
		INSERT INTO index_data.index_rebalances (
			index_id, rebalance_date, as_of, constituents, base_level
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (index_id, rebalance_date) DO UPDATE SET
			as_of = EXCLUDED.as_of,
			constituents = EXCLUDED.constituents,
			base_level = EXCLUDED.base_level
	`

	batch := &pgx.Batch{}
	for _, rb := range rebalances {
		constituentsJSON, err := json.Marshal(rb.Constituents)
		if err != nil {
			return fmt.Errorf("failed to marshal constituents: %w", err)
		}
		batch.Queue(query, indexID, rb.Date, rb.AsOf, constituentsJSON, rb.BaseLevel)
	}
	if batch.Len() == 0 {
		return nil
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save rebalances: %w", err)
	}
	return nil
}

// LoadRebalances reads the rebalance log of indexID, oldest first
func (r *Repository) LoadRebalances(ctx context.Context, indexID string) ([]contracts.Rebalance, error) {
	query := `
		SELECT rebalance_date, as_of, constituents, base_level
		FROM index_data.index_rebalances
		WHERE index_id = $1
		ORDER BY rebalance_date ASC
	`

	rows, err := r.pool.Query(ctx, query, indexID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rebalances: %w", err)
	}
	defer rows.Close()

	var out []contracts.Rebalance
	for rows.Next() {
		var (
			rb               contracts.Rebalance
			constituentsJSON []byte
		)
		if err := rows.Scan(&rb.Date, &rb.AsOf, &constituentsJSON, &rb.BaseLevel); err != nil {
			return nil, fmt.Errorf("failed to scan rebalance: %w", err)
		}
		if err := json.Unmarshal(constituentsJSON, &rb.Constituents); err != nil {
			return nil, fmt.Errorf("failed to unmarshal constituents: %w", err)
		}
		out = append(out, rb)
	}

	return out, rows.Err()
}

// SaveRun records which rules and data produced a series
func (r *Repository) SaveRun(ctx context.Context, snapshot *indexconfig.RunSnapshot, series contracts.Series) (int64, error) {
	query := `
		INSERT INTO index_data.index_runs (
			index_id, config_hash, config_yaml, price_source, level_count, last_date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var lastDate *time.Time
	if last, ok := series.Last(); ok {
		lastDate = &last.Date
	}

	var id int64
	err := r.pool.QueryRow(ctx, query,
		snapshot.IndexID, snapshot.ConfigHash, snapshot.ConfigYAML, snapshot.PriceSource,
		len(series), lastDate, snapshot.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}

	return id, nil
}

// LatestRun returns the most recent run of indexID, or nil when there is none
func (r *Repository) LatestRun(ctx context.Context, indexID string) (*Run, error) {
	query := `
		SELECT id, index_id, config_hash, price_source, level_count, last_date, created_at
		FROM index_data.index_runs
		WHERE index_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var (
		run      Run
		lastDate *time.Time
	)
	err := r.pool.QueryRow(ctx, query, indexID).Scan(
		&run.ID, &run.IndexID, &run.ConfigHash, &run.PriceSource,
		&run.LevelCount, &lastDate, &run.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	if lastDate != nil {
		run.LastDate = *lastDate
	}
	return &run, nil
}

// Sink binds the repository to one index as a contracts.LevelSink
func (r *Repository) Sink(ctx context.Context, indexID string) contracts.LevelSink {
	return sink{ctx: ctx, repo: r, indexID: indexID}
}

type sink struct {
	ctx     context.Context
	repo    *Repository
	indexID string
}

func (s sink) WriteLevels(series contracts.Series) error {
	_, err := s.repo.SaveLevels(s.ctx, s.indexID, series)
	return err
}
