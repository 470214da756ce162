package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"crexi_sync/models"
)

const (
	defaultMarket         = "Los Angeles"
	defaultPropertyType   = "Industrial"
	defaultTransaction    = "Lease"
	defaultStatus         = "Active"
	defaultPageSize       = 100
	defaultSuiteBatchSize = 100
	defaultProbeTimeout   = 10 * time.Second
	defaultMarketConfig   = "config/market.yaml"
)

var (
	DefaultBaseURLs = []string{
		"https://api.crexi.com",
		"https://stage-api.crexi.com",
	}
	DefaultSearchPaths = []string{
		"/v1/listings",
		"/v1/properties",
		"/api/v1/listings",
		"/api/v1/properties",
		"/listings",
		"/properties",
	}
	DefaultAuthSchemes = []string{"bearer", "x-api-key", "api-key", "query"}
)

type Config struct {
	Crexi      CrexiConfig
	Supabase   SupabaseConfig
	Market     models.Filter
	Proxy      ProxyConfig
	Writer     WriterConfig
	S3         S3Config
	LedgerPath string
	LogFile    string

	// unparseable numeric or duration settings seen by Load
	badEnv []string
}

type CrexiConfig struct {
	APIKey       string        `yaml:"-"`
	BaseURLs     []string      `yaml:"base_urls"`
	SearchPaths  []string      `yaml:"search_paths"`
	AuthSchemes  []string      `yaml:"auth_schemes"`
	ProbeTimeout time.Duration `yaml:"-"`
	MaxPages     int           `yaml:"max_pages"`
}

type SupabaseConfig struct {
	URL        string
	ServiceKey string
	DBURL      string
}

type ProxyConfig struct {
	URL string
}

type WriterConfig struct {
	SuiteBatchSize int
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether raw payload archiving is configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// marketFile is the optional YAML overlay for the filter and probe candidates.
type marketFile struct {
	Market models.Filter `yaml:"market"`
	Crexi  CrexiConfig   `yaml:"crexi"`
}

// Load reads .env, the optional market YAML file and the process environment,
// in that order of increasing precedence. Missing credentials are reported as
// a *ConfigurationError.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Crexi: CrexiConfig{
			APIKey:       os.Getenv("CREXI_API_KEY"),
			BaseURLs:     DefaultBaseURLs,
			SearchPaths:  DefaultSearchPaths,
			AuthSchemes:  DefaultAuthSchemes,
			ProbeTimeout: defaultProbeTimeout,
		},
		Supabase: SupabaseConfig{
			URL:        strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
			ServiceKey: getEnv("SUPABASE_KEY", os.Getenv("SUPABASE_SERVICE_KEY")),
			DBURL:      os.Getenv("SUPABASE_DB_URL"),
		},
		Market: models.Filter{
			MarketArea:      defaultMarket,
			PropertyTypes:   []string{defaultPropertyType},
			TransactionType: defaultTransaction,
			Status:          defaultStatus,
			PageSize:        defaultPageSize,
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("HTTP_PROXY_URL"),
		},
		Writer: WriterConfig{
			SuiteBatchSize: defaultSuiteBatchSize,
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		LedgerPath: getEnv("LEDGER_PATH", "crexi_sync.db"),
		LogFile:    getEnv("LOG_FILE", "crexi_sync.log"),
	}

	if err := cfg.loadMarketFile(getEnv("MARKET_CONFIG", defaultMarketConfig)); err != nil {
		return nil, err
	}

	if market := os.Getenv("TARGET_MARKET"); market != "" {
		cfg.Market.MarketArea = market
	}
	if types := splitList(os.Getenv("PROPERTY_TYPES")); len(types) > 0 {
		cfg.Market.PropertyTypes = types
	}
	cfg.Market.PageSize = cfg.getEnvInt("PAGE_SIZE", cfg.Market.PageSize)
	cfg.Crexi.MaxPages = cfg.getEnvInt("MAX_PAGES", cfg.Crexi.MaxPages)
	cfg.Crexi.ProbeTimeout = cfg.getEnvDuration("PROBE_TIMEOUT", cfg.Crexi.ProbeTimeout)
	cfg.Writer.SuiteBatchSize = cfg.getEnvInt("SUITE_BATCH_SIZE", cfg.Writer.SuiteBatchSize)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadMarketFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &ConfigurationError{Invalid: []string{"MARKET_CONFIG"}, Err: err}
	}

	var mf marketFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return &ConfigurationError{Invalid: []string{"MARKET_CONFIG"}, Err: err}
	}

	if mf.Market.MarketArea != "" {
		c.Market.MarketArea = mf.Market.MarketArea
	}
	if len(mf.Market.PropertyTypes) > 0 {
		c.Market.PropertyTypes = mf.Market.PropertyTypes
	}
	if mf.Market.TransactionType != "" {
		c.Market.TransactionType = mf.Market.TransactionType
	}
	if mf.Market.Status != "" {
		c.Market.Status = mf.Market.Status
	}
	if mf.Market.PageSize != 0 {
		c.Market.PageSize = mf.Market.PageSize
	}
	if len(mf.Crexi.BaseURLs) > 0 {
		c.Crexi.BaseURLs = mf.Crexi.BaseURLs
	}
	if len(mf.Crexi.SearchPaths) > 0 {
		c.Crexi.SearchPaths = mf.Crexi.SearchPaths
	}
	if len(mf.Crexi.AuthSchemes) > 0 {
		c.Crexi.AuthSchemes = mf.Crexi.AuthSchemes
	}
	if mf.Crexi.MaxPages != 0 {
		c.Crexi.MaxPages = mf.Crexi.MaxPages
	}
	return nil
}

// Validate checks required credentials and value ranges.
func (c *Config) Validate() error {
	var missing []string
	invalid := append([]string{}, c.badEnv...)
	if c.Crexi.APIKey == "" {
		missing = append(missing, "CREXI_API_KEY")
	}
	if c.Supabase.URL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.Supabase.ServiceKey == "" {
		missing = append(missing, "SUPABASE_KEY")
	}

	if strings.TrimSpace(c.Market.MarketArea) == "" {
		invalid = append(invalid, "TARGET_MARKET")
	}
	if len(c.Market.PropertyTypes) == 0 {
		invalid = append(invalid, "PROPERTY_TYPES")
	}
	if c.Market.PageSize <= 0 {
		invalid = appendOnce(invalid, "PAGE_SIZE")
	}
	if c.Crexi.MaxPages < 0 {
		invalid = appendOnce(invalid, "MAX_PAGES")
	}
	if c.Crexi.ProbeTimeout <= 0 {
		invalid = appendOnce(invalid, "PROBE_TIMEOUT")
	}
	if c.Writer.SuiteBatchSize <= 0 {
		invalid = appendOnce(invalid, "SUITE_BATCH_SIZE")
	}
	if len(c.Crexi.BaseURLs) == 0 || len(c.Crexi.SearchPaths) == 0 || len(c.Crexi.AuthSchemes) == 0 {
		invalid = append(invalid, "MARKET_CONFIG")
	}

	if len(missing) > 0 || len(invalid) > 0 {
		return &ConfigurationError{Missing: missing, Invalid: invalid}
	}
	return nil
}

// LedgerEnabled reports whether the local run ledger should be opened.
func (c *Config) LedgerEnabled() bool {
	return c.LedgerPath != "" && c.LedgerPath != "off"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer setting. A value that does not parse is
// recorded and reported by Validate.
func (c *Config) getEnvInt(key string, defaultVal int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		c.badEnv = appendOnce(c.badEnv, key)
		return defaultVal
	}
	return i
}

// getEnvDuration reads a duration such as "10s". A bare number has no unit
// and is rejected.
func (c *Config) getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		c.badEnv = appendOnce(c.badEnv, key)
		return defaultVal
	}
	return d
}

func appendOnce(list []string, key string) []string {
	for _, k := range list {
		if k == key {
			return list
		}
	}
	return append(list, key)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
