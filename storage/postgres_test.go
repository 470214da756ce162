package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"crexi_sync/models"
)

// newTestPostgres connects to TEST_DATABASE_URL and skips when it is unset.
// Rows are scoped to a market name unique to the test and removed afterwards.
func newTestPostgres(t *testing.T) (*PostgresStore, string) {
	t.Helper()
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := NewPostgresStore(ctx, connString)
	if err != nil {
		t.Fatalf("NewPostgresStore failed: %v", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	market := fmt.Sprintf("Test Market %s %d", t.Name(), time.Now().UnixNano())
	t.Cleanup(func() {
		store.pool.Exec(ctx, "DELETE FROM crexi_suite_snapshots WHERE market_area = $1", market)
		store.pool.Exec(ctx, "DELETE FROM crexi_market_snapshots WHERE market_area = $1", market)
		store.Close()
	})
	return store, market
}

func testSnapshot(market string, suites int) (*models.MarketSnapshot, []models.SuiteSnapshot) {
	at := time.Date(2026, 3, 14, 17, 30, 0, 123456000, time.UTC)
	snap := &models.MarketSnapshot{
		SnapshotDate:    at,
		MarketArea:      market,
		PropertyType:    "Industrial",
		TotalProperties: 1,
		TotalSuites:     suites,
		Notes:           "Synced from Crexi API",
		RawData:         json.RawMessage(`[{"results":[{"id":5150}]}]`),
	}

	size, city := 7500.0, "Commerce"
	rows := make([]models.SuiteSnapshot, suites)
	for i := range rows {
		rows[i] = models.SuiteSnapshot{
			SnapshotDate: at,
			CrexiAssetID: "5150",
			CrexiSuiteID: fmt.Sprintf("5150-%d", i),
			MarketArea:   market,
			PropertyType: "Industrial",
			RawData:      json.RawMessage(`{"id":5150,"suites":[]}`),
		}
	}
	if suites > 0 {
		rows[0].SuiteSize = &size
		rows[0].City = &city
	}
	return snap, rows
}

func countRows(t *testing.T, store *PostgresStore, table, market string) int {
	t.Helper()
	var n int
	err := store.pool.QueryRow(context.Background(),
		"SELECT count(*) FROM "+table+" WHERE market_area = $1", market).Scan(&n)
	if err != nil {
		t.Fatalf("count %s failed: %v", table, err)
	}
	return n
}

func TestPostgresStore_WriteSnapshot(t *testing.T) {
	store, market := newTestPostgres(t)
	ctx := context.Background()

	snap, suites := testSnapshot(market, 3)
	if err := store.WriteSnapshot(ctx, snap, suites); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}
	if snap.ID == 0 || snap.CreatedAt == nil {
		t.Fatalf("expected id and created_at populated, got %+v", snap)
	}
	if n := countRows(t, store, MarketSnapshotsTable, market); n != 1 {
		t.Fatalf("expected 1 market row, got %d", n)
	}
	if n := countRows(t, store, SuiteSnapshotsTable, market); n != 3 {
		t.Fatalf("expected 3 suite rows, got %d", n)
	}

	var kind string
	var first int64
	var storedAt time.Time
	err := store.pool.QueryRow(ctx,
		`SELECT jsonb_typeof(raw_data), (raw_data->0->'results'->0->>'id')::bigint, snapshot_date
		 FROM crexi_market_snapshots WHERE id = $1`, snap.ID).Scan(&kind, &first, &storedAt)
	if err != nil {
		t.Fatalf("read market row failed: %v", err)
	}
	if kind != "array" || first != 5150 {
		t.Fatalf("expected raw_data stored as a JSON array, got %s / %d", kind, first)
	}
	if !storedAt.Equal(snap.SnapshotDate) {
		t.Fatalf("expected snapshot_date %s, got %s", snap.SnapshotDate, storedAt)
	}

	var size *float64
	var city, zip *string
	err = store.pool.QueryRow(ctx,
		`SELECT jsonb_typeof(raw_data), suite_size, city, zip FROM crexi_suite_snapshots
		 WHERE market_area = $1 AND crexi_suite_id = '5150-0'`, market).Scan(&kind, &size, &city, &zip)
	if err != nil {
		t.Fatalf("read suite row failed: %v", err)
	}
	if kind != "object" {
		t.Fatalf("expected suite raw_data stored as a JSON object, got %s", kind)
	}
	if size == nil || *size != 7500 || city == nil || *city != "Commerce" || zip != nil {
		t.Fatalf("unexpected nullable columns: size=%v city=%v zip=%v", size, city, zip)
	}
}

func TestPostgresStore_WriteSnapshotRollsBack(t *testing.T) {
	store, market := newTestPostgres(t)

	snap, suites := testSnapshot(market, 3)
	suites[2].RawData = json.RawMessage(`{not json`)

	if err := store.WriteSnapshot(context.Background(), snap, suites); err == nil {
		t.Fatalf("expected copy failure on invalid raw_data")
	}
	if n := countRows(t, store, MarketSnapshotsTable, market); n != 0 {
		t.Fatalf("expected market row rolled back, got %d", n)
	}
	if n := countRows(t, store, SuiteSnapshotsTable, market); n != 0 {
		t.Fatalf("expected no suite rows, got %d", n)
	}
}

func TestPostgresStore_OrderedInserts(t *testing.T) {
	store, market := newTestPostgres(t)
	ctx := context.Background()

	snap, suites := testSnapshot(market, 2)
	if err := store.InsertMarketSnapshot(ctx, snap); err != nil {
		t.Fatalf("InsertMarketSnapshot failed: %v", err)
	}
	if err := store.InsertSuiteSnapshots(ctx, suites); err != nil {
		t.Fatalf("InsertSuiteSnapshots failed: %v", err)
	}
	if err := store.InsertSuiteSnapshots(ctx, nil); err != nil {
		t.Fatalf("empty batch should be a no-op: %v", err)
	}
	if n := countRows(t, store, SuiteSnapshotsTable, market); n != 2 {
		t.Fatalf("expected 2 suite rows, got %d", n)
	}
}

func TestJSONB(t *testing.T) {
	if v := jsonb(nil); v != nil {
		t.Fatalf("expected nil for empty raw data, got %v", v)
	}
	if v := jsonb(json.RawMessage(`{"a":1}`)); v != `{"a":1}` {
		t.Fatalf("expected JSON text, got %#v", v)
	}
}
