package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Search      SearchConfig      `yaml:"search"`
	Source      SourceConfig      `yaml:"source"`
	Retry       RetryConfig       `yaml:"retry"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Retention   RetentionConfig   `yaml:"retention"`
	Tier        TierConfig        `yaml:"tier"`
	Server      ServerConfig      `yaml:"server"`
	Normalizer  NormalizerConfig  `yaml:"normalizer"`
	Logging     LoggingConfig     `yaml:"logging"`
	Timezone    string            `yaml:"timezone"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Type     string         `yaml:"type"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	LogSQL   bool           `yaml:"log_sql"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// SQLiteConfig contains SQLite settings
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	APIKey  string `yaml:"api_key"`
	Index   string `yaml:"index"`
}

// SourceConfig groups the outbound price source settings
type SourceConfig struct {
	Structured StructuredSourceConfig `yaml:"structured"`
	Rendered   RenderedSourceConfig   `yaml:"rendered"`
}

// StructuredSourceConfig contains settings for the machine-readable endpoints
type StructuredSourceConfig struct {
	Enabled             bool     `yaml:"enabled"`
	Endpoints           []string `yaml:"endpoints"`
	TimeoutSeconds      int      `yaml:"timeout_seconds"`
	RequestDelaySeconds int      `yaml:"request_delay_seconds"`
	UserAgent           string   `yaml:"user_agent"`
}

// RenderedSourceConfig contains settings for the headless browser fallback
type RenderedSourceConfig struct {
	Enabled        bool          `yaml:"enabled"`
	URL            string        `yaml:"url"`
	WaitSelector   string        `yaml:"wait_selector"`
	RowSelector    string        `yaml:"row_selector"`
	Columns        ColumnsConfig `yaml:"columns"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	ExecPath       string        `yaml:"exec_path"`
	UserAgent      string        `yaml:"user_agent"`
}

// ColumnsConfig maps table cells to observation fields (zero-based; -1 means absent)
type ColumnsConfig struct {
	Commodity int `yaml:"commodity"`
	Region    int `yaml:"region"`
	Price     int `yaml:"price"`
	Unit      int `yaml:"unit"`
	Date      int `yaml:"date"`
}

// RetryConfig contains retry/backoff settings applied to each adapter
type RetryConfig struct {
	MaxAttempts        int     `yaml:"max_attempts"`
	BaseDelayMs        int     `yaml:"base_delay_ms"`
	MaxDelaySeconds    int     `yaml:"max_delay_seconds"`
	RandomizationRatio float64 `yaml:"randomization_ratio"`
}

// PersistenceConfig contains writer settings
type PersistenceConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// SchedulerConfig contains cron settings
type SchedulerConfig struct {
	DailyRunEnabled    bool   `yaml:"daily_run_enabled"`
	DailyRunTime       string `yaml:"daily_run_time"`
	ExpiryCheckEnabled bool   `yaml:"expiry_check_enabled"`
	RetentionRunTime   string `yaml:"retention_run_time"`
	PublishSearch      bool   `yaml:"publish_search"`
	JobTimeoutMinutes  int    `yaml:"job_timeout_minutes"`
}

// RetentionConfig contains record deactivation and history pruning settings
type RetentionConfig struct {
	RecordDays       int  `yaml:"record_days"`
	HistoryDays      int  `yaml:"history_days"`
	DryRun           bool `yaml:"dry_run"`
	MaxDeletionCount int  `yaml:"max_deletion_count"`
}

// TierConfig contains read gateway settings
type TierConfig struct {
	LookbackDays   int `yaml:"lookback_days"`
	MaxHistoryDays int `yaml:"max_history_days"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port        string          `yaml:"port"`
	CORSOrigins []string        `yaml:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig contains rate limiting settings for administrative endpoints
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	RequestsPerHour   int  `yaml:"requests_per_hour"`
	RequestsPerDay    int  `yaml:"requests_per_day"`
}

// NormalizerConfig points at an optional synonym mapping file
type NormalizerConfig struct {
	MappingFile string `yaml:"mapping_file"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Type: "mysql",
			SQLite: SQLiteConfig{
				Path: "prices.db",
			},
		},
		Search: SearchConfig{
			Meilisearch: MeilisearchConfig{
				Index: "national_prices",
			},
		},
		Source: SourceConfig{
			Structured: StructuredSourceConfig{
				Enabled:             true,
				TimeoutSeconds:      30,
				RequestDelaySeconds: 2,
				UserAgent:           defaultUserAgent,
			},
			Rendered: RenderedSourceConfig{
				Enabled:      true,
				WaitSelector: "table",
				RowSelector:  "table tbody tr",
				Columns: ColumnsConfig{
					Commodity: 0,
					Region:    1,
					Price:     2,
					Unit:      3,
					Date:      -1,
				},
				TimeoutSeconds: 60,
				UserAgent:      defaultUserAgent,
			},
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			BaseDelayMs:     1000,
			MaxDelaySeconds: 30,
		},
		Persistence: PersistenceConfig{
			Concurrency: 4,
		},
		Scheduler: SchedulerConfig{
			DailyRunEnabled:    true,
			DailyRunTime:       "06:00",
			ExpiryCheckEnabled: true,
			JobTimeoutMinutes:  30,
		},
		Retention: RetentionConfig{
			RecordDays:       90,
			HistoryDays:      730,
			DryRun:           false,
			MaxDeletionCount: 100000,
		},
		Tier: TierConfig{
			LookbackDays:   7,
			MaxHistoryDays: 365,
		},
		Server: ServerConfig{
			Port:        "8084",
			CORSOrigins: []string{"http://localhost:5176"},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 2,
				RequestsPerHour:   10,
				RequestsPerDay:    50,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Timezone: "Asia/Jakarta",
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	// Start with default config
	config := DefaultConfig()

	// If file doesn't exist, return default config
	if _, err := os.Stat(filepath); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// ApplyEnv overlays environment variables on values the file left empty
func (c *Config) ApplyEnv() {
	c.Database.Type = getEnvOrConfig(c.Database.Type, "DB_TYPE", "mysql")

	my := &c.Database.MySQL
	my.Host = getEnvOrConfig(my.Host, "DB_HOST", "mysql")
	my.Port = getEnvIntOrConfig(my.Port, "DB_PORT", 3306)
	my.User = getEnvOrConfig(my.User, "DB_USER", "prices_user")
	my.Password = getEnvOrConfig(my.Password, "DB_PASSWORD", "prices_pass")
	my.Database = getEnvOrConfig(my.Database, "DB_NAME", "prices_db")

	pg := &c.Database.Postgres
	pg.Host = getEnvOrConfig(pg.Host, "DB_HOST", "db")
	pg.Port = getEnvIntOrConfig(pg.Port, "DB_PORT", 5432)
	pg.User = getEnvOrConfig(pg.User, "DB_USER", "prices_user")
	pg.Password = getEnvOrConfig(pg.Password, "DB_PASSWORD", "prices_pass")
	pg.Database = getEnvOrConfig(pg.Database, "DB_NAME", "prices_db")
	pg.SSLMode = getEnvOrConfig(pg.SSLMode, "DB_SSLMODE", "disable")

	c.Database.SQLite.Path = getEnvOrConfig(c.Database.SQLite.Path, "SQLITE_PATH", "prices.db")

	ms := &c.Search.Meilisearch
	ms.Host = getEnvOrConfig(ms.Host, "MEILISEARCH_HOST", "http://meilisearch:7700")
	ms.APIKey = getEnvOrConfig(ms.APIKey, "MEILISEARCH_KEY", "")

	c.Server.Port = getEnvOrConfig(c.Server.Port, "PORT", "8084")
	c.Logging.Level = getEnvOrConfig(c.Logging.Level, "LOG_LEVEL", "info")
	c.Timezone = getEnvOrConfig(c.Timezone, "TZ_NAME", "Asia/Jakarta")
	c.Normalizer.MappingFile = getEnvOrConfig(c.Normalizer.MappingFile, "NORMALIZER_MAPPING_FILE", "")
}

// Location resolves the configured time zone, falling back to UTC
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetTimeout returns the per-request timeout as a duration
func (c *StructuredSourceConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetRequestDelay returns the delay between consecutive endpoint calls
func (c *StructuredSourceConfig) GetRequestDelay() time.Duration {
	return time.Duration(c.RequestDelaySeconds) * time.Second
}

// GetTimeout returns the browser navigation timeout as a duration
func (c *RenderedSourceConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetBaseDelay returns the first backoff interval
func (c *RetryConfig) GetBaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

// GetMaxDelay returns the backoff cap
func (c *RetryConfig) GetMaxDelay() time.Duration {
	return time.Duration(c.MaxDelaySeconds) * time.Second
}

// GetJobTimeout returns the upper bound for one scheduled job
func (c *SchedulerConfig) GetJobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutMinutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrConfig returns config value if set, otherwise falls back to environment variable, then default
func getEnvOrConfig(configValue, envKey, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	return getEnv(envKey, defaultValue)
}

func getEnvIntOrConfig(configValue int, envKey string, defaultValue int) int {
	if configValue > 0 {
		return configValue
	}
	if raw := os.Getenv(envKey); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return defaultValue
}
