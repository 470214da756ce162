package storage

import (
	"context"

	"crexi_sync/models"
)

const (
	MarketSnapshotsTable = "crexi_market_snapshots"
	SuiteSnapshotsTable  = "crexi_suite_snapshots"
)

// SnapshotSink appends snapshot rows to the destination store.
type SnapshotSink interface {
	InsertMarketSnapshot(ctx context.Context, snap *models.MarketSnapshot) error
	InsertSuiteSnapshots(ctx context.Context, suites []models.SuiteSnapshot) error
}

// AtomicSnapshotSink writes a market row and its suite rows in one
// transaction: either all rows are visible or none are.
type AtomicSnapshotSink interface {
	WriteSnapshot(ctx context.Context, snap *models.MarketSnapshot, suites []models.SuiteSnapshot) error
}
