package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"crexi_sync/models"
)

// SQLiteStore is the local run ledger: one row per sync run plus the log
// lines emitted during it.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sync_runs (
		id TEXT PRIMARY KEY,
		market_area TEXT,
		property_type TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		endpoint TEXT,
		snapshot_date DATETIME,
		properties INTEGER DEFAULT 0,
		suites INTEGER DEFAULT 0,
		suites_saved INTEGER DEFAULT 0,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS sync_logs (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		source TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_logs_run ON sync_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON sync_runs(status, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.SyncRun) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_runs (id, market_area, property_type, started_at, status)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.MarketArea, run.PropertyType, run.StartedAt, run.Status)
	return err
}

func (s *SQLiteStore) UpdateRun(run *models.SyncRun) error {
	_, err := s.db.Exec(`
		UPDATE sync_runs SET finished_at = ?, status = ?, endpoint = ?, snapshot_date = ?,
			properties = ?, suites = ?, suites_saved = ?, error_message = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.Endpoint, run.SnapshotDate,
		run.Properties, run.Suites, run.SuitesSaved, run.ErrorMessage, run.ID)
	return err
}

func (s *SQLiteStore) Log(runID string, level models.LogLevel, message, source string) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_logs (run_id, timestamp, level, message, source)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, source)
	return err
}

// RecentRuns returns the latest runs, newest first.
func (s *SQLiteStore) RecentRuns(limit int) ([]models.SyncRun, error) {
	rows, err := s.db.Query(`
		SELECT id, market_area, property_type, started_at, finished_at, status,
			COALESCE(endpoint, ''), snapshot_date, properties, suites, suites_saved, COALESCE(error_message, '')
		FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.SyncRun
	for rows.Next() {
		var r models.SyncRun
		var finished, snapshot sql.NullTime
		if err := rows.Scan(&r.ID, &r.MarketArea, &r.PropertyType, &r.StartedAt, &finished, &r.Status,
			&r.Endpoint, &snapshot, &r.Properties, &r.Suites, &r.SuitesSaved, &r.ErrorMessage); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		if snapshot.Valid {
			r.SnapshotDate = &snapshot.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LastEndpoint returns the endpoint of the most recent completed run, or ""
// when there is none.
func (s *SQLiteStore) LastEndpoint(marketArea string) (string, error) {
	var endpoint sql.NullString
	err := s.db.QueryRow(`
		SELECT endpoint FROM sync_runs
		WHERE market_area = ? AND status = ? AND endpoint != ''
		ORDER BY started_at DESC LIMIT 1`, marketArea, models.RunStatusCompleted).Scan(&endpoint)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return endpoint.String, nil
}

func (s *SQLiteStore) RunLogs(runID string) ([]models.SyncLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message, source
		FROM sync_logs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.SyncLog
	for rows.Next() {
		var l models.SyncLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Message, &l.Source); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
