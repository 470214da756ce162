package scraper

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"crexi_sync/config"
	"crexi_sync/crexi"
	"crexi_sync/services"
)

// Process exit codes, one per failure class.
const (
	ExitOK          = 0
	ExitOther       = 1
	ExitConfig      = 2
	ExitDiscovery   = 3
	ExitFetch       = 4
	ExitPersistence = 5
)

func ExitCode(err error) int {
	var (
		cfgErr   *config.ConfigurationError
		discErr  *crexi.EndpointDiscoveryError
		fetchErr *crexi.FetchError
		persErr  *services.PersistenceError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &cfgErr):
		return ExitConfig
	case errors.As(err, &discErr):
		return ExitDiscovery
	case errors.As(err, &fetchErr):
		return ExitFetch
	case errors.As(err, &persErr):
		return ExitPersistence
	default:
		return ExitOther
	}
}

// Describe renders an operator-facing explanation of err with next steps.
func Describe(err error) string {
	var b strings.Builder

	var (
		cfgErr   *config.ConfigurationError
		discErr  *crexi.EndpointDiscoveryError
		fetchErr *crexi.FetchError
		persErr  *services.PersistenceError
	)
	switch {
	case errors.As(err, &cfgErr):
		describeConfig(&b, cfgErr)
	case errors.As(err, &discErr):
		describeDiscovery(&b, discErr)
	case errors.As(err, &fetchErr):
		fmt.Fprintf(&b, "Fetching listings failed: %v\n", fetchErr)
		b.WriteString("Nothing was written; the snapshot for this run was abandoned.\n")
		b.WriteString("\nNext steps:\n")
		b.WriteString("  1. Re-run the sync; transient upstream errors usually clear\n")
		if fetchErr.StatusCode == http.StatusTooManyRequests {
			b.WriteString("  2. Upstream is rate limiting; lower PAGE_SIZE or run less often\n")
		} else {
			b.WriteString("  2. Set MAX_PAGES to cap very large result sets\n")
		}
	case errors.As(err, &persErr):
		fmt.Fprintf(&b, "Saving to Supabase failed: %v\n", persErr)
		if persErr.Incomplete() {
			fmt.Fprintf(&b, "The market row was saved but only %d of %d suites were.\n",
				persErr.SuitesCommitted, persErr.SuitesTotal)
			b.WriteString("The snapshot is incomplete; filter it out by snapshot_date or delete it.\n")
		}
		b.WriteString("\nNext steps:\n")
		if persErr.Stage == "connect" || persErr.Stage == "schema" {
			b.WriteString("  1. Check SUPABASE_DB_URL (host, port, password, sslmode)\n")
			b.WriteString("  2. Confirm the database role can create tables, or create them ahead of time\n")
			b.WriteString("  3. Unset SUPABASE_DB_URL to write through the REST API instead\n")
			break
		}
		b.WriteString("  1. Check SUPABASE_URL and that SUPABASE_KEY is the service role key\n")
		b.WriteString("  2. Confirm the crexi_market_snapshots and crexi_suite_snapshots tables exist\n")
		b.WriteString("  3. Set SUPABASE_DB_URL to write each snapshot in one transaction\n")
	default:
		fmt.Fprintf(&b, "Sync failed: %v\n", err)
	}

	return b.String()
}

func describeConfig(b *strings.Builder, err *config.ConfigurationError) {
	if len(err.Missing) > 0 {
		fmt.Fprintf(b, "Missing required environment variables: %s\n", strings.Join(err.Missing, ", "))
		b.WriteString("\nPlease set them in your environment or .env file:\n")
		for _, name := range err.Missing {
			fmt.Fprintf(b, "  export %s='%s'\n", name, placeholder(name))
		}
	}
	if len(err.Invalid) > 0 {
		fmt.Fprintf(b, "Invalid settings: %s\n", strings.Join(err.Invalid, ", "))
	}
	if err.Err != nil {
		fmt.Fprintf(b, "  %v\n", err.Err)
	}
}

func placeholder(name string) string {
	switch name {
	case "CREXI_API_KEY":
		return "your-api-key"
	case "SUPABASE_URL":
		return "your-supabase-url"
	case "SUPABASE_KEY":
		return "your-supabase-key"
	default:
		return "value"
	}
}

func describeDiscovery(b *strings.Builder, err *crexi.EndpointDiscoveryError) {
	b.WriteString("Could not find a working Crexi API endpoint.\n\nAttempts:\n")
	b.WriteString(err.Report())

	counts := err.StatusCounts()
	codes := make([]int, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	b.WriteString("\nSummary:\n")
	for _, code := range codes {
		label := http.StatusText(code)
		if code == 0 {
			label = "no response"
		}
		fmt.Fprintf(b, "  %d x %d %s\n", counts[code], code, label)
	}

	b.WriteString("\nNext steps:\n")
	step := 1
	if counts[http.StatusUnauthorized]+counts[http.StatusForbidden] > 0 {
		fmt.Fprintf(b, "  %d. Verify CREXI_API_KEY is activated for staging/production\n", step)
		step++
	}
	if counts[0] > 0 {
		fmt.Fprintf(b, "  %d. Check network access to the Crexi API (HTTP_PROXY_URL if behind a proxy)\n", step)
		step++
	}
	fmt.Fprintf(b, "  %d. Check Crexi API documentation for the correct endpoint\n", step)
	step++
	fmt.Fprintf(b, "  %d. Contact Crexi support for endpoint and authentication details\n", step)
}
