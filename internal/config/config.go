package config

import (
	"fmt"
	"regexp"
	"time"
)

type Config struct {
	Source              SourceConfig        `yaml:"source"`
	HTTP                HttpConfig          `yaml:"http"`
	Backoff             BackoffConfig       `yaml:"backoff"`
	RateLimit           RateLimitConfig     `yaml:"rate_limit"`
	RobotsCacheTTLHours int                 `yaml:"robots_cache_ttl_hours"`
	Rod                 RodConfig           `yaml:"rod"`
	Layout              LayoutConfig        `yaml:"layout"`
	LayoutFile          string              `yaml:"layout_file"`
	Normalize           NormalizeConfig     `yaml:"normalize"`
	Pipeline            PipelineConfig      `yaml:"pipeline"`
	Storage             StorageConfig       `yaml:"storage"`
	Observability       ObservabilityConfig `yaml:"observability"`
}

type SourceConfig struct {
	AllowedURLPattern string `yaml:"allowed_url_pattern"`
	ResultBaseURL     string `yaml:"result_base_url"`
	OutputSuffix      string `yaml:"output_suffix"`
}

type HttpConfig struct {
	UserAgent                 string `yaml:"user_agent"`
	AcceptLanguage            string `yaml:"accept_language"`
	ConnectTimeoutMS          int    `yaml:"connect_timeout_ms"`
	TotalTimeoutMS            int    `yaml:"total_timeout_ms"`
	MaxRetries                int    `yaml:"max_retries"`
	MaxIdleConnections        int    `yaml:"max_idle_connections"`
	MaxIdleConnectionsPerHost int    `yaml:"max_idle_connections_per_host"`
	IdleConnectionTimeoutS    int    `yaml:"idle_connection_timeout_s"`
	RespectRobots             bool   `yaml:"respect_robots"`
}

type BackoffConfig struct {
	MinMS     int `yaml:"min_ms"`
	MaxMS     int `yaml:"max_ms"`
	JitterPct int `yaml:"jitter_pct"`
}

type RateLimitConfig struct {
	MaxConcurrentPerHost int `yaml:"max_concurrent_per_host"`
	RPM                  int `yaml:"rpm"`
}

type RodConfig struct {
	Enabled          bool   `yaml:"enabled"`
	ChromePath       string `yaml:"chrome_path"`
	Headless         bool   `yaml:"headless"`
	PageTimeoutS     int    `yaml:"page_timeout_s"`
	WaitLoadTimeoutS int    `yaml:"wait_load_timeout_s"`
}

// LayoutConfig holds the table and cell ordinals of the result pages.
type LayoutConfig struct {
	CodeCol        int `yaml:"code_col"`
	NameCol        int `yaml:"name_col"`
	SummaryTable   int `yaml:"summary_table"`
	RegisteredCol  int `yaml:"registered_col"`
	EnvelopesCol   int `yaml:"envelopes_col"`
	ValidCol       int `yaml:"valid_col"`
	VoteTablesFrom int `yaml:"vote_tables_from"`
	VoteTablesTo   int `yaml:"vote_tables_to"`
	PartyNameCol   int `yaml:"party_name_col"`
	VotesCol       int `yaml:"votes_col"`
}

type NormalizeConfig struct {
	TrimNBSP       bool `yaml:"trim_nbsp"`
	CollapseSpaces bool `yaml:"collapse_spaces"`
}

type PipelineConfig struct {
	Workers             int  `yaml:"workers"`
	SkipFailedPrecincts bool `yaml:"skip_failed_precincts"`
	ShutdownTimeoutS    int  `yaml:"shutdown_timeout_s"`
}

type StorageConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Driver           string `yaml:"driver"`
	DSN              string `yaml:"dsn"`
	CommandTimeoutMS int    `yaml:"command_timeout_ms"`
}

type ObservabilityConfig struct {
	LogPath       string `yaml:"log_path"`
	LogLevel      string `yaml:"log_level"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
}

// Default returns the configuration used when no config file is given.
// It targets the 2017 Chamber of Deputies results on volby.cz.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			AllowedURLPattern: `^https://www\.volby\.cz/pls/ps2017nss/.+$`,
			ResultBaseURL:     "https://www.volby.cz/pls/ps2017nss/",
			OutputSuffix:      ".csv",
		},
		HTTP: HttpConfig{
			UserAgent:                 "elections-scraper/1.0 (+https://www.volby.cz)",
			AcceptLanguage:            "cs-CZ,cs;q=0.9,en;q=0.8",
			ConnectTimeoutMS:          10000,
			TotalTimeoutMS:            30000,
			MaxRetries:                2,
			MaxIdleConnections:        100,
			MaxIdleConnectionsPerHost: 10,
			IdleConnectionTimeoutS:    90,
			RespectRobots:             true,
		},
		Backoff: BackoffConfig{
			MinMS:     250,
			MaxMS:     4000,
			JitterPct: 20,
		},
		RateLimit: RateLimitConfig{
			MaxConcurrentPerHost: 4,
			RPM:                  600,
		},
		RobotsCacheTTLHours: 12,
		Rod: RodConfig{
			Headless:         true,
			PageTimeoutS:     30,
			WaitLoadTimeoutS: 15,
		},
		Layout: LayoutConfig{
			CodeCol:        0,
			NameCol:        1,
			SummaryTable:   0,
			RegisteredCol:  3,
			EnvelopesCol:   4,
			ValidCol:       7,
			VoteTablesFrom: 1,
			VoteTablesTo:   3,
			PartyNameCol:   1,
			VotesCol:       2,
		},
		Normalize: NormalizeConfig{
			TrimNBSP: true,
		},
		Pipeline: PipelineConfig{
			Workers:          1,
			ShutdownTimeoutS: 3600,
		},
		Storage: StorageConfig{
			Driver:           "sqlite",
			DSN:              "results.db",
			CommandTimeoutMS: 5000,
		},
		Observability: ObservabilityConfig{
			LogLevel:      "info",
			LogMaxSizeMB:  50,
			LogMaxBackups: 3,
			LogMaxAgeDays: 28,
		},
	}
}

// Validation
func (c *Config) Validate() error {
	if c.Source.AllowedURLPattern == "" {
		return fmt.Errorf("source.allowed_url_pattern is required")
	}
	if _, err := regexp.Compile(c.Source.AllowedURLPattern); err != nil {
		return fmt.Errorf("source.allowed_url_pattern is not a valid regexp: %w", err)
	}
	if c.Source.ResultBaseURL == "" {
		return fmt.Errorf("source.result_base_url is required")
	}
	if c.Source.OutputSuffix == "" {
		return fmt.Errorf("source.output_suffix is required")
	}
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent is required")
	}
	if c.HTTP.ConnectTimeoutMS <= 0 {
		return fmt.Errorf("http.connect_timeout_ms must be > 0")
	}
	if c.HTTP.TotalTimeoutMS <= 0 {
		return fmt.Errorf("http.total_timeout_ms must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.RateLimit.MaxConcurrentPerHost <= 0 {
		return fmt.Errorf("rate_limit.max_concurrent_per_host must be > 0")
	}
	if c.RateLimit.RPM <= 0 {
		return fmt.Errorf("rate_limit.rpm must be > 0")
	}
	if c.RobotsCacheTTLHours <= 0 {
		return fmt.Errorf("robots_cache_ttl_hours must be > 0")
	}
	if c.Backoff.MinMS <= 0 {
		return fmt.Errorf("backoff.min_ms must be > 0")
	}
	if c.Backoff.MaxMS <= 0 {
		return fmt.Errorf("backoff.max_ms must be > 0")
	}
	if c.Backoff.MinMS > c.Backoff.MaxMS {
		return fmt.Errorf("backoff.min_ms must be <= backoff.max_ms")
	}
	if c.Backoff.JitterPct < 0 || c.Backoff.JitterPct > 100 {
		return fmt.Errorf("backoff.jitter_pct must be between 0 and 100")
	}
	if c.Rod.Enabled {
		if c.Rod.PageTimeoutS <= 0 {
			return fmt.Errorf("rod.page_timeout_s must be > 0")
		}
		if c.Rod.WaitLoadTimeoutS <= 0 {
			return fmt.Errorf("rod.wait_load_timeout_s must be > 0")
		}
	}
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be > 0")
	}
	if c.Pipeline.ShutdownTimeoutS <= 0 {
		return fmt.Errorf("pipeline.shutdown_timeout_s must be > 0")
	}
	if c.Storage.Enabled {
		if c.Storage.Driver != "mssql" && c.Storage.Driver != "sqlite" {
			return fmt.Errorf("storage.driver must be 'mssql' or 'sqlite'")
		}
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required")
		}
		if c.Storage.CommandTimeoutMS <= 0 {
			return fmt.Errorf("storage.command_timeout_ms must be > 0")
		}
	}
	switch c.Observability.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("observability.log_level must be one of debug, info, warn, error")
	}
	return nil
}

func (l LayoutConfig) Validate() error {
	cols := map[string]int{
		"layout.code_col":       l.CodeCol,
		"layout.name_col":       l.NameCol,
		"layout.summary_table":  l.SummaryTable,
		"layout.registered_col": l.RegisteredCol,
		"layout.envelopes_col":  l.EnvelopesCol,
		"layout.valid_col":      l.ValidCol,
		"layout.party_name_col": l.PartyNameCol,
		"layout.votes_col":      l.VotesCol,
	}
	for name, v := range cols {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}
	if l.VoteTablesFrom < 0 || l.VoteTablesTo <= l.VoteTablesFrom {
		return fmt.Errorf("layout.vote_tables_from must be >= 0 and < layout.vote_tables_to")
	}
	return nil
}

// Getters
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.HTTP.ConnectTimeoutMS) * time.Millisecond
}

func (c *Config) GetTotalTimeout() time.Duration {
	return time.Duration(c.HTTP.TotalTimeoutMS) * time.Millisecond
}

func (c *Config) GetIdleConnectionTimeout() time.Duration {
	return time.Duration(c.HTTP.IdleConnectionTimeoutS) * time.Second
}

func (c *Config) GetBackoffMin() time.Duration {
	return time.Duration(c.Backoff.MinMS) * time.Millisecond
}

func (c *Config) GetBackoffMax() time.Duration {
	return time.Duration(c.Backoff.MaxMS) * time.Millisecond
}

func (c *Config) GetRobotsCacheTTL() time.Duration {
	return time.Duration(c.RobotsCacheTTLHours) * time.Hour
}

func (c *Config) GetRodPageTimeout() time.Duration {
	return time.Duration(c.Rod.PageTimeoutS) * time.Second
}

func (c *Config) GetRodWaitLoadTimeout() time.Duration {
	return time.Duration(c.Rod.WaitLoadTimeoutS) * time.Second
}

func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Storage.CommandTimeoutMS) * time.Millisecond
}

func (c *Config) GetShutdownTimeout() time.Duration {
	return time.Duration(c.Pipeline.ShutdownTimeoutS) * time.Second
}
