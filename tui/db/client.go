package db

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Client reads the run ledger written by crexi_sync. It never writes.
type Client struct {
	db *sql.DB
}

type SyncRun struct {
	ID           string
	MarketArea   string
	PropertyType string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       string
	Endpoint     string
	SnapshotDate *time.Time
	Properties   int
	Suites       int
	SuitesSaved  int
	ErrorMessage string
}

func (r SyncRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

type SyncLog struct {
	ID        int64
	RunID     string
	Timestamp time.Time
	Level     string
	Message   string
	Source    string
}

func New(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) GetRecentRuns(limit int) ([]SyncRun, error) {
	rows, err := c.db.Query(`
		SELECT id, COALESCE(market_area, ''), COALESCE(property_type, ''), started_at, finished_at,
			COALESCE(status, ''), COALESCE(endpoint, ''), snapshot_date,
			properties, suites, suites_saved, COALESCE(error_message, '')
		FROM sync_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var r SyncRun
		var startedAt string
		var finishedAt, snapshotDate sql.NullString
		if err := rows.Scan(&r.ID, &r.MarketArea, &r.PropertyType, &startedAt, &finishedAt,
			&r.Status, &r.Endpoint, &snapshotDate, &r.Properties, &r.Suites, &r.SuitesSaved,
			&r.ErrorMessage); err != nil {
			return nil, err
		}
		r.StartedAt = parseTime(startedAt)
		if finishedAt.Valid {
			t := parseTime(finishedAt.String)
			r.FinishedAt = &t
		}
		if snapshotDate.Valid {
			t := parseTime(snapshotDate.String)
			r.SnapshotDate = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRunLogs returns the log lines of one run, optionally filtered by level.
func (c *Client) GetRunLogs(runID string, level *string) ([]SyncLog, error) {
	query := `SELECT id, COALESCE(run_id, ''), timestamp, level, message, COALESCE(source, '')
		FROM sync_logs WHERE run_id = ?`
	args := []any{runID}
	if level != nil {
		query += ` AND level = ?`
		args = append(args, *level)
	}
	query += ` ORDER BY id`

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []SyncLog
	for rows.Next() {
		var l SyncLog
		var ts string
		if err := rows.Scan(&l.ID, &l.RunID, &ts, &l.Level, &l.Message, &l.Source); err != nil {
			return nil, err
		}
		l.Timestamp = parseTime(ts)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// parseTime accepts the layouts mattn/go-sqlite3 writes time.Time values in.
func parseTime(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
