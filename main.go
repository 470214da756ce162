package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"crexi_sync/config"
	"crexi_sync/crexi"
	"crexi_sync/httputil"
	"crexi_sync/logging"
	"crexi_sync/scraper"
	"crexi_sync/services"
	"crexi_sync/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Crexi to Supabase Sync")
	fmt.Println(strings.Repeat("=", 60))

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprint(os.Stderr, scraper.Describe(err))
		os.Exit(scraper.ExitCode(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config) int {
	logFile, err := logging.Setup(cfg.LogFile, cfg.Crexi.APIKey, cfg.Supabase.ServiceKey)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Printf("Market: %s / %s (%s, %s)", cfg.Market.MarketArea, cfg.Market.PropertyTypeLabel(),
		cfg.Market.TransactionType, cfg.Market.Status)

	candidates, err := crexi.BuildCandidates(cfg.Crexi.BaseURLs, cfg.Crexi.SearchPaths, cfg.Crexi.AuthSchemes)
	if err != nil {
		err = &config.ConfigurationError{Invalid: []string{"MARKET_CONFIG"}, Err: err}
		fmt.Fprint(os.Stderr, scraper.Describe(err))
		return scraper.ExitCode(err)
	}
	log.Printf("Probing %d endpoint candidates", len(candidates))

	clients := httputil.NewClients(cfg)
	if cfg.Proxy.URL != "" {
		log.Printf("Proxy: %s", maskConnectionString(cfg.Proxy.URL))
	}

	sink, closeSink, err := openSink(ctx, cfg, clients.Store)
	if err != nil {
		fmt.Fprint(os.Stderr, scraper.Describe(err))
		return scraper.ExitCode(err)
	}
	defer closeSink()

	handler := scraper.NewCrexiHandler(
		crexi.NewProber(clients.Upstream, cfg.Crexi.APIKey),
		crexi.NewFetcher(clients.Upstream, cfg.Crexi.APIKey, cfg.Crexi.MaxPages),
		candidates,
	)
	orchestrator := scraper.NewOrchestrator(cfg.Market, handler, services.NewSnapshotWriter(sink, cfg.Writer.SuiteBatchSize))

	if cfg.LedgerEnabled() {
		ledger, err := storage.NewSQLiteStore(cfg.LedgerPath)
		if err != nil {
			log.Printf("Warning: could not open run ledger %s: %v", cfg.LedgerPath, err)
		} else {
			defer ledger.Close()
			orchestrator.SetLedger(ledger)
			log.Printf("Run ledger: %s", cfg.LedgerPath)
		}
	}

	if cfg.S3.Enabled() {
		uploader, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			log.Printf("Warning: raw archive disabled: %v", err)
		} else {
			orchestrator.SetArchiver(uploader)
			log.Printf("Raw archive: s3://%s", cfg.S3.Bucket)
		}
	}

	summary, err := orchestrator.Run(ctx)
	if err != nil {
		fmt.Fprint(os.Stderr, "\n"+scraper.Describe(err))
		return scraper.ExitCode(err)
	}

	printSummary(summary)
	return scraper.ExitOK
}

// openSink picks the destination store: the pgx store when a database URL is
// set, the REST API otherwise.
func openSink(ctx context.Context, cfg *config.Config, client *http.Client) (storage.SnapshotSink, func(), error) {
	if cfg.Supabase.DBURL == "" {
		log.Printf("Supabase REST: %s", cfg.Supabase.URL)
		return storage.NewSupabaseStore(&cfg.Supabase, client), func() {}, nil
	}

	pgStore, err := storage.NewPostgresStore(ctx, cfg.Supabase.DBURL)
	if err != nil {
		return nil, nil, &services.PersistenceError{Stage: "connect", Err: err}
	}
	if err := pgStore.EnsureSchema(ctx); err != nil {
		pgStore.Close()
		return nil, nil, &services.PersistenceError{Stage: "schema", Err: err}
	}
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Supabase.DBURL))
	return pgStore, pgStore.Close, nil
}

func printSummary(s *scraper.Summary) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Sync completed successfully!")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Summary:")
	fmt.Printf("  Market:     %s / %s\n", s.MarketArea, s.PropertyType)
	fmt.Printf("  Endpoint:   %s\n", s.Endpoint)
	fmt.Printf("  Pages:      %d\n", s.Pages)
	fmt.Printf("  Properties: %d\n", s.Properties)
	fmt.Printf("  Suites:     %d\n", s.SuitesSaved)
	fmt.Printf("  Timestamp:  %s\n", s.SnapshotDate.Format(time.RFC3339Nano))
	if s.ArchiveKey != "" {
		fmt.Printf("  Archive:    %s\n", s.ArchiveKey)
	}
	fmt.Printf("  Duration:   %s\n", s.Duration.Round(time.Millisecond))
	fmt.Println()
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := strings.Index(connStr, "://")
	if start < 0 {
		return connStr
	}
	start += 3

	at := strings.LastIndex(connStr, "@")
	if at < start {
		return connStr
	}
	colon := strings.Index(connStr[start:at], ":")
	if colon < 0 {
		return connStr
	}
	return connStr[:start+colon+1] + "****" + connStr[at:]
}
