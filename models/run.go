package models

import "time"

type RunStatus string

const (
	RunStatusRunning    RunStatus = "running"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusIncomplete RunStatus = "incomplete"
)

// SyncRun is the local ledger record for one invocation.
type SyncRun struct {
	ID           string     `json:"id" db:"id"`
	MarketArea   string     `json:"market_area" db:"market_area"`
	PropertyType string     `json:"property_type" db:"property_type"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at" db:"finished_at"`
	Status       RunStatus  `json:"status" db:"status"`
	Endpoint     string     `json:"endpoint" db:"endpoint"`
	SnapshotDate *time.Time `json:"snapshot_date" db:"snapshot_date"`
	Properties   int        `json:"properties" db:"properties"`
	Suites       int        `json:"suites" db:"suites"`
	SuitesSaved  int        `json:"suites_saved" db:"suites_saved"`
	ErrorMessage string     `json:"error_message" db:"error_message"`
}
