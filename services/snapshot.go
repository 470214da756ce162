package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"crexi_sync/models"
	"crexi_sync/storage"
)

const defaultSuiteBatchSize = 100

// PersistenceError is a failed write to the destination store. When the
// market row was committed but some suite batches were not, the snapshot in
// the store is incomplete; Incomplete reports that case.
type PersistenceError struct {
	Stage           string // validate, market, suites, snapshot
	MarketCommitted bool
	SuitesCommitted int
	SuitesTotal     int
	Batch           int
	Err             error
}

func (e *PersistenceError) Error() string {
	switch e.Stage {
	case "suites":
		return fmt.Sprintf("persist suite batch %d: %v (%d of %d suites committed)",
			e.Batch, e.Err, e.SuitesCommitted, e.SuitesTotal)
	default:
		return fmt.Sprintf("persist %s: %v", e.Stage, e.Err)
	}
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Incomplete() bool {
	return e.MarketCommitted && e.SuitesCommitted < e.SuitesTotal
}

// WriteResult counts rows written for one snapshot.
type WriteResult struct {
	MarketRows int
	SuiteRows  int
	Batches    int
	Atomic     bool
}

// SnapshotWriter persists one market row and its suite rows. The market row
// is always written before any suite row.
type SnapshotWriter struct {
	sink      storage.SnapshotSink
	batchSize int
}

func NewSnapshotWriter(sink storage.SnapshotSink, batchSize int) *SnapshotWriter {
	if batchSize <= 0 {
		batchSize = defaultSuiteBatchSize
	}
	return &SnapshotWriter{sink: sink, batchSize: batchSize}
}

func (w *SnapshotWriter) Write(ctx context.Context, market *models.MarketSnapshot, suites []models.SuiteSnapshot) (*WriteResult, error) {
	if err := validateSnapshot(market, suites); err != nil {
		return nil, &PersistenceError{Stage: "validate", SuitesTotal: len(suites), Err: err}
	}

	if atomic, ok := w.sink.(storage.AtomicSnapshotSink); ok {
		log.Printf("Writer: inserting market snapshot and %d suites in one transaction", len(suites))
		if err := atomic.WriteSnapshot(ctx, market, suites); err != nil {
			return nil, &PersistenceError{Stage: "snapshot", SuitesTotal: len(suites), Err: err}
		}
		return &WriteResult{MarketRows: 1, SuiteRows: len(suites), Batches: 1, Atomic: true}, nil
	}

	log.Println("Writer: inserting market snapshot...")
	if err := w.sink.InsertMarketSnapshot(ctx, market); err != nil {
		return nil, &PersistenceError{Stage: "market", SuitesTotal: len(suites), Err: err}
	}
	log.Println("Writer: market snapshot saved")

	result := &WriteResult{MarketRows: 1}
	for start := 0; start < len(suites); start += w.batchSize {
		end := min(start+w.batchSize, len(suites))
		batch := suites[start:end]
		batchNum := start/w.batchSize + 1

		if err := w.sink.InsertSuiteSnapshots(ctx, batch); err != nil {
			return result, &PersistenceError{
				Stage:           "suites",
				MarketCommitted: true,
				SuitesCommitted: result.SuiteRows,
				SuitesTotal:     len(suites),
				Batch:           batchNum,
				Err:             err,
			}
		}
		result.SuiteRows += len(batch)
		result.Batches++
		log.Printf("Writer: inserted batch %d (%d suites)", batchNum, len(batch))
	}

	return result, nil
}

func validateSnapshot(market *models.MarketSnapshot, suites []models.SuiteSnapshot) error {
	if market == nil {
		return errors.New("nil market snapshot")
	}
	if market.TotalProperties < 0 || market.TotalSuites < 0 {
		return fmt.Errorf("negative totals: properties=%d suites=%d", market.TotalProperties, market.TotalSuites)
	}
	if market.TotalSuites != len(suites) {
		return fmt.Errorf("total_suites=%d but %d suite rows", market.TotalSuites, len(suites))
	}
	for i := range suites {
		s := &suites[i]
		if !s.SnapshotDate.Equal(market.SnapshotDate) {
			return fmt.Errorf("suite %d snapshot_date %s differs from market %s",
				i, s.SnapshotDate, market.SnapshotDate)
		}
		if s.MarketArea != market.MarketArea || s.PropertyType != market.PropertyType {
			return fmt.Errorf("suite %d does not reference market %s/%s", i, market.MarketArea, market.PropertyType)
		}
	}
	return nil
}
