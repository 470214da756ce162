package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crexi_sync/models"
)

// PostgresStore writes snapshots straight to the Supabase Postgres database.
// Unlike SupabaseStore it can commit a whole snapshot in one transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

const snapshotSchema = `
	CREATE TABLE IF NOT EXISTS crexi_market_snapshots (
		id BIGSERIAL PRIMARY KEY,
		snapshot_date TIMESTAMPTZ NOT NULL,
		market_area TEXT NOT NULL,
		property_type TEXT NOT NULL,
		total_properties INTEGER NOT NULL DEFAULT 0,
		total_suites INTEGER NOT NULL DEFAULT 0,
		notes TEXT,
		raw_data JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS crexi_suite_snapshots (
		id BIGSERIAL PRIMARY KEY,
		snapshot_date TIMESTAMPTZ NOT NULL,
		crexi_asset_id TEXT NOT NULL DEFAULT '',
		crexi_suite_id TEXT NOT NULL DEFAULT '',
		market_area TEXT NOT NULL,
		property_type TEXT NOT NULL,
		suite_size DOUBLE PRECISION,
		lease_rate DOUBLE PRECISION,
		rate_type TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		address TEXT,
		city TEXT,
		state TEXT,
		zip TEXT,
		raw_data JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_crexi_market_snapshots_key
		ON crexi_market_snapshots(market_area, property_type, snapshot_date);
	CREATE INDEX IF NOT EXISTS idx_crexi_suite_snapshots_key
		ON crexi_suite_snapshots(market_area, property_type, snapshot_date);
	CREATE INDEX IF NOT EXISTS idx_crexi_suite_snapshots_asset
		ON crexi_suite_snapshots(crexi_asset_id, crexi_suite_id);
`

// EnsureSchema creates the snapshot tables when they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, snapshotSchema)
	return err
}

const insertMarketSnapshot = `
	INSERT INTO crexi_market_snapshots (
		snapshot_date, market_area, property_type, total_properties, total_suites, notes, raw_data
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, created_at`

var suiteColumns = []string{
	"snapshot_date", "crexi_asset_id", "crexi_suite_id", "market_area", "property_type",
	"suite_size", "lease_rate", "rate_type", "status", "address", "city", "state", "zip", "raw_data",
}

func (s *PostgresStore) InsertMarketSnapshot(ctx context.Context, snap *models.MarketSnapshot) error {
	return insertMarket(ctx, s.pool, snap)
}

func (s *PostgresStore) InsertSuiteSnapshots(ctx context.Context, suites []models.SuiteSnapshot) error {
	_, err := copySuites(ctx, s.pool, suites)
	return err
}

// WriteSnapshot commits the market row and every suite row together.
func (s *PostgresStore) WriteSnapshot(ctx context.Context, snap *models.MarketSnapshot, suites []models.SuiteSnapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertMarket(ctx, tx, snap); err != nil {
		return fmt.Errorf("insert market snapshot: %w", err)
	}

	n, err := copySuites(ctx, tx, suites)
	if err != nil {
		return fmt.Errorf("copy suite snapshots: %w", err)
	}
	if int(n) != len(suites) {
		return fmt.Errorf("copied %d of %d suite snapshots", n, len(suites))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

func insertMarket(ctx context.Context, q querier, snap *models.MarketSnapshot) error {
	var createdAt time.Time
	err := q.QueryRow(ctx, insertMarketSnapshot,
		snap.SnapshotDate, snap.MarketArea, snap.PropertyType,
		snap.TotalProperties, snap.TotalSuites, snap.Notes, jsonb(snap.RawData),
	).Scan(&snap.ID, &createdAt)
	if err != nil {
		return err
	}
	snap.CreatedAt = &createdAt
	return nil
}

func copySuites(ctx context.Context, q querier, suites []models.SuiteSnapshot) (int64, error) {
	if len(suites) == 0 {
		return 0, nil
	}
	return q.CopyFrom(ctx, pgx.Identifier{SuiteSnapshotsTable}, suiteColumns,
		pgx.CopyFromSlice(len(suites), func(i int) ([]any, error) {
			s := &suites[i]
			return []any{
				s.SnapshotDate, s.CrexiAssetID, s.CrexiSuiteID, s.MarketArea, s.PropertyType,
				s.SuiteSize, s.LeaseRate, s.RateType, s.Status,
				s.Address, s.City, s.State, s.Zip, jsonb(s.RawData),
			}, nil
		}))
}

// jsonb passes raw JSON as text so Postgres parses it into the column.
func jsonb(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
