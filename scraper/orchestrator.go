package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"crexi_sync/models"
	"crexi_sync/services"
)

// Ledger records runs locally. *storage.SQLiteStore implements it.
type Ledger interface {
	CreateRun(run *models.SyncRun) error
	UpdateRun(run *models.SyncRun) error
	Log(runID string, level models.LogLevel, message, source string) error
	LastEndpoint(marketArea string) (string, error)
}

// Archiver keeps a copy of the raw upstream pages. *storage.S3Uploader
// implements it.
type Archiver interface {
	ArchiveSnapshot(ctx context.Context, snap *models.MarketSnapshot) (string, error)
}

// Summary describes one finished run.
type Summary struct {
	RunID        string
	Endpoint     string
	MarketArea   string
	PropertyType string
	SnapshotDate time.Time
	Properties   int
	Suites       int
	SuitesSaved  int
	Pages        int
	Atomic       bool
	ArchiveKey   string
	Duration     time.Duration
}

// Orchestrator runs discover, fetch, flatten and write once, in that order.
// Nothing is written unless every page was fetched.
type Orchestrator struct {
	filter  models.Filter
	handler Handler
	writer  *services.SnapshotWriter

	ledger   Ledger
	archiver Archiver
	now      func() time.Time
}

func NewOrchestrator(filter models.Filter, handler Handler, writer *services.SnapshotWriter) *Orchestrator {
	return &Orchestrator{
		filter:  filter,
		handler: handler,
		writer:  writer,
		now:     time.Now,
	}
}

// SetLedger enables the local run ledger.
func (o *Orchestrator) SetLedger(ledger Ledger) {
	o.ledger = ledger
}

// SetArchiver enables raw payload archiving.
func (o *Orchestrator) SetArchiver(archiver Archiver) {
	o.archiver = archiver
}

func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	run := &models.SyncRun{
		ID:           uuid.NewString(),
		MarketArea:   o.filter.MarketArea,
		PropertyType: o.filter.PropertyTypeLabel(),
		StartedAt:    o.now(),
		Status:       models.RunStatusRunning,
	}
	summary := &Summary{
		RunID:        run.ID,
		MarketArea:   run.MarketArea,
		PropertyType: run.PropertyType,
	}

	if o.ledger != nil {
		if err := o.ledger.CreateRun(run); err != nil {
			log.Printf("Warning: run ledger unavailable: %v", err)
			o.ledger = nil
		}
	}

	var previousEndpoint string
	if o.ledger != nil {
		previousEndpoint, _ = o.ledger.LastEndpoint(run.MarketArea)
	}

	defer func() {
		finished := o.now()
		run.FinishedAt = &finished
		summary.Duration = finished.Sub(run.StartedAt)
		if o.ledger != nil {
			if err := o.ledger.UpdateRun(run); err != nil {
				log.Printf("Warning: failed to update run %s: %v", run.ID, err)
			}
		}
	}()

	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Starting sync for %s / %s", run.MarketArea, run.PropertyType))

	result, err := o.handler.Scrape(ctx, o.filter)
	if err != nil {
		o.fail(run, err)
		return summary, err
	}

	run.Endpoint = result.Endpoint
	summary.Endpoint = result.Endpoint
	summary.Pages = len(result.Pages)
	if previousEndpoint != "" && previousEndpoint != result.Endpoint {
		o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Endpoint changed since last run: %s -> %s", previousEndpoint, result.Endpoint))
	}

	meta := services.NewSnapshotMeta(o.filter, result.Endpoint, o.now())
	totals, suites := services.FlattenAll(result.Listings, meta)
	market := services.BuildMarketSnapshot(meta, totals, result.Pages)

	snapshotDate := meta.SnapshotDate
	run.SnapshotDate = &snapshotDate
	run.Properties = totals.Properties
	run.Suites = totals.Suites
	summary.SnapshotDate = snapshotDate
	summary.Properties = totals.Properties
	summary.Suites = totals.Suites

	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Processed %d properties, %d suites", totals.Properties, totals.Suites))

	if o.archiver != nil {
		key, err := o.archiver.ArchiveSnapshot(ctx, &market)
		if err != nil {
			o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Raw archive failed: %v", err))
		} else {
			summary.ArchiveKey = key
			o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Raw pages archived to %s", key))
		}
	}

	written, err := o.writer.Write(ctx, &market, suites)
	if written != nil {
		run.SuitesSaved = written.SuiteRows
		summary.SuitesSaved = written.SuiteRows
		summary.Atomic = written.Atomic
	}
	if err != nil {
		o.fail(run, err)
		return summary, err
	}

	run.Status = models.RunStatusCompleted
	o.log(run.ID, models.LogLevelInfo,
		fmt.Sprintf("Completed: %d properties, %d suites saved at %s",
			totals.Properties, run.SuitesSaved, snapshotDate.Format(time.RFC3339Nano)))

	return summary, nil
}

func (o *Orchestrator) fail(run *models.SyncRun, err error) {
	run.Status = models.RunStatusFailed
	var pe *services.PersistenceError
	if errors.As(err, &pe) && pe.Incomplete() {
		run.Status = models.RunStatusIncomplete
	}
	run.ErrorMessage = err.Error()
	o.log(run.ID, models.LogLevelError, fmt.Sprintf("Sync %s: %v", run.Status, err))
}

func (o *Orchestrator) log(runID string, level models.LogLevel, message string) {
	source := o.handler.ID()
	log.Printf("[%s] %s: %s", level, source, message)
	if o.ledger != nil {
		o.ledger.Log(runID, level, message, source)
	}
}
