package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"crexi_sync/crexi"
	"crexi_sync/models"
	"crexi_sync/services"
)

var testFilter = models.Filter{
	MarketArea:      "Los Angeles",
	PropertyTypes:   []string{"Industrial"},
	TransactionType: "Lease",
	Status:          "Active",
	PageSize:        2,
}

// upstream serves total listings with suitesPer suites each on /v1/listings.
// Any other path is a 404. failPage, when non-zero, answers that page with a 500.
func upstream(t *testing.T, total, suitesPer, failPage int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/listings" {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("<html><head><title>404 - Page Not Found</title></head></html>"))
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if failPage > 0 && limit > 1 && offset/limit+1 == failPage {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"internal"}`))
			return
		}
		var items []string
		for i := offset; i < total && i < offset+limit; i++ {
			var suites []string
			for s := 0; s < suitesPer; s++ {
				suites = append(suites, fmt.Sprintf(`{"id": "%d-%d", "size": 1000, "rate": 1.25}`, i, s))
			}
			items = append(items, fmt.Sprintf(`{"id": %d, "city": "Vernon", "suites": [%s]}`, i+1, strings.Join(suites, ",")))
		}
		fmt.Fprintf(w, `{"results": [%s], "total": %d}`, strings.Join(items, ","), total)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type memorySink struct {
	calls   []string
	markets []models.MarketSnapshot
	suites  []models.SuiteSnapshot
	fail    error
}

func (s *memorySink) InsertMarketSnapshot(ctx context.Context, snap *models.MarketSnapshot) error {
	s.calls = append(s.calls, "market")
	if s.fail != nil {
		return s.fail
	}
	s.markets = append(s.markets, *snap)
	return nil
}

func (s *memorySink) InsertSuiteSnapshots(ctx context.Context, suites []models.SuiteSnapshot) error {
	s.calls = append(s.calls, "suites")
	s.suites = append(s.suites, suites...)
	return nil
}

type memoryLedger struct {
	runs     map[string]models.SyncRun
	logs     []string
	previous string
}

func (l *memoryLedger) CreateRun(run *models.SyncRun) error {
	if l.runs == nil {
		l.runs = make(map[string]models.SyncRun)
	}
	l.runs[run.ID] = *run
	return nil
}

func (l *memoryLedger) UpdateRun(run *models.SyncRun) error {
	l.runs[run.ID] = *run
	return nil
}

func (l *memoryLedger) Log(runID string, level models.LogLevel, message, source string) error {
	l.logs = append(l.logs, fmt.Sprintf("[%s] %s", level, message))
	return nil
}

func (l *memoryLedger) LastEndpoint(marketArea string) (string, error) {
	return l.previous, nil
}

type fakeArchiver struct {
	raw []byte
	err error
}

func (a *fakeArchiver) ArchiveSnapshot(ctx context.Context, snap *models.MarketSnapshot) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.raw = snap.RawData
	return "crexi/los-angeles/industrial/x.json", nil
}

func newTestOrchestrator(t *testing.T, srv *httptest.Server, sink *memorySink) *Orchestrator {
	t.Helper()
	candidates, err := crexi.BuildCandidates([]string{srv.URL}, []string{"/missing", "/v1/listings"}, []string{"x-api-key", "bearer"})
	if err != nil {
		t.Fatalf("BuildCandidates failed: %v", err)
	}
	handler := NewCrexiHandler(
		crexi.NewProber(srv.Client(), "test-key"),
		crexi.NewFetcher(srv.Client(), "test-key", 0),
		candidates,
	)
	return NewOrchestrator(testFilter, handler, services.NewSnapshotWriter(sink, 100))
}

func TestOrchestrator_Run(t *testing.T) {
	srv := upstream(t, 2, 3, 0)
	sink := &memorySink{}
	ledger := &memoryLedger{}
	archiver := &fakeArchiver{}

	o := newTestOrchestrator(t, srv, sink)
	o.SetLedger(ledger)
	o.SetArchiver(archiver)

	summary, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Properties != 2 || summary.Suites != 6 || summary.SuitesSaved != 6 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if !strings.HasSuffix(summary.Endpoint, "/v1/listings [bearer]") {
		t.Fatalf("unexpected endpoint %s", summary.Endpoint)
	}
	if summary.ArchiveKey == "" || len(archiver.raw) == 0 {
		t.Fatalf("expected raw pages archived")
	}

	if len(sink.calls) == 0 || sink.calls[0] != "market" {
		t.Fatalf("expected market row first, got %v", sink.calls)
	}
	if len(sink.markets) != 1 || len(sink.suites) != 6 {
		t.Fatalf("expected 1 market row and 6 suites, got %d / %d", len(sink.markets), len(sink.suites))
	}
	market := sink.markets[0]
	if market.TotalProperties != 2 || market.TotalSuites != 6 {
		t.Fatalf("unexpected market totals %d / %d", market.TotalProperties, market.TotalSuites)
	}
	for i, s := range sink.suites {
		if !s.SnapshotDate.Equal(market.SnapshotDate) {
			t.Fatalf("suite %d has a different snapshot date", i)
		}
		if s.City == nil || *s.City != "Vernon" {
			t.Fatalf("suite %d: unexpected city %v", i, s.City)
		}
	}

	run := ledger.runs[summary.RunID]
	if run.Status != models.RunStatusCompleted || run.FinishedAt == nil || run.SuitesSaved != 6 {
		t.Fatalf("unexpected ledger run %+v", run)
	}
}

func TestOrchestrator_FetchFailureWritesNothing(t *testing.T) {
	// 10 listings in pages of 2; page 3 of 5 fails.
	srv := upstream(t, 10, 1, 3)
	sink := &memorySink{}
	ledger := &memoryLedger{}

	o := newTestOrchestrator(t, srv, sink)
	o.SetLedger(ledger)

	summary, err := o.Run(context.Background())
	var fe *crexi.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Page != 3 {
		t.Fatalf("expected failure on page 3, got %d", fe.Page)
	}
	if len(sink.calls) != 0 {
		t.Fatalf("expected no writes, got %v", sink.calls)
	}
	if ExitCode(err) != ExitFetch {
		t.Fatalf("expected exit code %d, got %d", ExitFetch, ExitCode(err))
	}
	if ledger.runs[summary.RunID].Status != models.RunStatusFailed {
		t.Fatalf("expected failed run, got %s", ledger.runs[summary.RunID].Status)
	}
}

func TestOrchestrator_DiscoveryFailure(t *testing.T) {
	srv := upstream(t, 2, 1, 0)
	sink := &memorySink{}

	candidates, err := crexi.BuildCandidates([]string{srv.URL}, []string{"/missing"}, []string{"bearer", "query"})
	if err != nil {
		t.Fatalf("BuildCandidates failed: %v", err)
	}
	handler := NewCrexiHandler(crexi.NewProber(srv.Client(), "test-key"), crexi.NewFetcher(srv.Client(), "test-key", 0), candidates)
	o := NewOrchestrator(testFilter, handler, services.NewSnapshotWriter(sink, 100))

	_, err = o.Run(context.Background())
	var de *crexi.EndpointDiscoveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected EndpointDiscoveryError, got %v", err)
	}
	if len(de.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(de.Attempts))
	}
	if len(sink.calls) != 0 {
		t.Fatalf("expected no writes, got %v", sink.calls)
	}
	if ExitCode(err) != ExitDiscovery {
		t.Fatalf("expected exit code %d, got %d", ExitDiscovery, ExitCode(err))
	}
}

func TestOrchestrator_PersistenceFailure(t *testing.T) {
	srv := upstream(t, 1, 1, 0)
	sink := &memorySink{fail: errors.New("supabase error 401")}
	ledger := &memoryLedger{}

	o := newTestOrchestrator(t, srv, sink)
	o.SetLedger(ledger)

	summary, err := o.Run(context.Background())
	if ExitCode(err) != ExitPersistence {
		t.Fatalf("expected exit code %d, got %d (%v)", ExitPersistence, ExitCode(err), err)
	}
	if summary.SuitesSaved != 0 {
		t.Fatalf("expected no suites saved, got %d", summary.SuitesSaved)
	}
	if ledger.runs[summary.RunID].Status != models.RunStatusFailed {
		t.Fatalf("expected failed run, got %s", ledger.runs[summary.RunID].Status)
	}
}

func TestOrchestrator_ArchiveFailureIsNotFatal(t *testing.T) {
	srv := upstream(t, 1, 2, 0)
	sink := &memorySink{}

	o := newTestOrchestrator(t, srv, sink)
	o.SetArchiver(&fakeArchiver{err: errors.New("access denied")})

	summary, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.ArchiveKey != "" || summary.SuitesSaved != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestOrchestrator_RepeatedRunsAppendSnapshots(t *testing.T) {
	srv := upstream(t, 3, 2, 0)
	sink := &memorySink{}

	o := newTestOrchestrator(t, srv, sink)
	clock := time.Date(2026, 10, 12, 6, 0, 0, 0, time.UTC)
	o.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	for i := 0; i < 2; i++ {
		if _, err := o.Run(context.Background()); err != nil {
			t.Fatalf("run %d failed: %v", i+1, err)
		}
	}

	if len(sink.markets) != 2 || len(sink.suites) != 12 {
		t.Fatalf("expected 2 market rows and 12 suites, got %d / %d", len(sink.markets), len(sink.suites))
	}
	if sink.markets[0].SnapshotDate.Equal(sink.markets[1].SnapshotDate) {
		t.Fatalf("expected distinct snapshot dates")
	}
	if sink.markets[0].TotalSuites != sink.markets[1].TotalSuites {
		t.Fatalf("expected identical counts")
	}
}

func TestOrchestrator_WarnsOnEndpointChange(t *testing.T) {
	srv := upstream(t, 1, 1, 0)
	ledger := &memoryLedger{previous: "https://api.crexi.com/v1/listings [bearer]"}

	o := newTestOrchestrator(t, srv, &memorySink{})
	o.SetLedger(ledger)
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	found := false
	for _, line := range ledger.logs {
		if strings.HasPrefix(line, "[warn] Endpoint changed") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected endpoint change warning, got %v", ledger.logs)
	}
}
