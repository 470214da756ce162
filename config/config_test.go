package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CREXI_API_KEY", "crexi-key")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co/")
	t.Setenv("SUPABASE_KEY", "service-key")
	t.Setenv("MARKET_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Market.MarketArea != "Los Angeles" {
		t.Fatalf("expected Los Angeles, got %s", cfg.Market.MarketArea)
	}
	if len(cfg.Market.PropertyTypes) != 1 || cfg.Market.PropertyTypes[0] != "Industrial" {
		t.Fatalf("unexpected property types %v", cfg.Market.PropertyTypes)
	}
	if cfg.Supabase.URL != "https://example.supabase.co" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.Supabase.URL)
	}
	if cfg.Market.PageSize != 100 {
		t.Fatalf("expected page size 100, got %d", cfg.Market.PageSize)
	}
	if cfg.Crexi.ProbeTimeout != 10*time.Second {
		t.Fatalf("expected 10s probe timeout, got %s", cfg.Crexi.ProbeTimeout)
	}
	if len(cfg.Crexi.BaseURLs) != 2 || len(cfg.Crexi.SearchPaths) != 6 || len(cfg.Crexi.AuthSchemes) != 4 {
		t.Fatalf("unexpected candidate lists: %d/%d/%d",
			len(cfg.Crexi.BaseURLs), len(cfg.Crexi.SearchPaths), len(cfg.Crexi.AuthSchemes))
	}
	if cfg.S3.Enabled() {
		t.Fatalf("expected S3 archive disabled")
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	t.Setenv("CREXI_API_KEY", "")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_KEY", "")
	t.Setenv("SUPABASE_SERVICE_KEY", "")
	t.Setenv("MARKET_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if len(cfgErr.Missing) != 3 {
		t.Fatalf("expected 3 missing settings, got %v", cfgErr.Missing)
	}
	if cfgErr.Missing[0] != "CREXI_API_KEY" || cfgErr.Missing[1] != "SUPABASE_URL" || cfgErr.Missing[2] != "SUPABASE_KEY" {
		t.Fatalf("unexpected missing order %v", cfgErr.Missing)
	}
}

func TestLoad_ServiceKeyAlias(t *testing.T) {
	setRequired(t)
	t.Setenv("SUPABASE_KEY", "")
	t.Setenv("SUPABASE_SERVICE_KEY", "alias-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Supabase.ServiceKey != "alias-key" {
		t.Fatalf("expected alias-key, got %s", cfg.Supabase.ServiceKey)
	}
}

func TestLoad_MarketFileAndEnvOverride(t *testing.T) {
	setRequired(t)

	path := filepath.Join(t.TempDir(), "market.yaml")
	yamlDoc := `
market:
  market_area: Inland Empire
  property_types: [Industrial, Flex]
  page_size: 25
crexi:
  base_urls: [https://sandbox.example.com]
  auth_schemes: [x-api-key]
  max_pages: 3
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("MARKET_CONFIG", path)
	t.Setenv("TARGET_MARKET", "Orange County")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Market.MarketArea != "Orange County" {
		t.Fatalf("expected env override, got %s", cfg.Market.MarketArea)
	}
	if cfg.Market.PropertyTypeLabel() != "Industrial, Flex" {
		t.Fatalf("unexpected label %q", cfg.Market.PropertyTypeLabel())
	}
	if cfg.Market.PageSize != 25 {
		t.Fatalf("expected page size 25, got %d", cfg.Market.PageSize)
	}
	if cfg.Market.TransactionType != "Lease" {
		t.Fatalf("expected default transaction type kept, got %s", cfg.Market.TransactionType)
	}
	if len(cfg.Crexi.BaseURLs) != 1 || cfg.Crexi.BaseURLs[0] != "https://sandbox.example.com" {
		t.Fatalf("unexpected base urls %v", cfg.Crexi.BaseURLs)
	}
	if len(cfg.Crexi.SearchPaths) != 6 {
		t.Fatalf("expected default search paths kept, got %v", cfg.Crexi.SearchPaths)
	}
	if cfg.Crexi.MaxPages != 3 {
		t.Fatalf("expected max pages 3, got %d", cfg.Crexi.MaxPages)
	}
}

func TestLoad_InvalidPageSize(t *testing.T) {
	setRequired(t)
	t.Setenv("PAGE_SIZE", "-5")

	_, err := Load()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if len(cfgErr.Invalid) != 1 || cfgErr.Invalid[0] != "PAGE_SIZE" {
		t.Fatalf("unexpected invalid list %v", cfgErr.Invalid)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "market.yaml")
	if err := os.WriteFile(path, []byte("market: [unclosed"), 0644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("MARKET_CONFIG", path)

	_, err := Load()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.Err == nil {
		t.Fatalf("expected wrapped yaml error")
	}
}

func TestLoad_UnparseableNumbers(t *testing.T) {
	setRequired(t)
	t.Setenv("PAGE_SIZE", "abc")
	t.Setenv("PROBE_TIMEOUT", "10")

	_, err := Load()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if len(cfgErr.Invalid) != 2 || cfgErr.Invalid[0] != "PAGE_SIZE" || cfgErr.Invalid[1] != "PROBE_TIMEOUT" {
		t.Fatalf("unexpected invalid list %v", cfgErr.Invalid)
	}
	if len(cfgErr.Missing) != 0 {
		t.Fatalf("expected no missing settings, got %v", cfgErr.Missing)
	}
}
