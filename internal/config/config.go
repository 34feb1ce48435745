package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the pipeline needs to talk to the three remote
// services. Values come from an optional YAML file, with environment
// variables taking precedence over file contents.
type Config struct {
	SpreadsheetID string `yaml:"spreadsheet_id"`
	GoogleToken   string `yaml:"google_token"`
	SheetsBaseURL string `yaml:"sheets_base_url"`
	DocsBaseURL   string `yaml:"docs_base_url"`

	WPAPIURL  string `yaml:"wp_api_url"`
	WPAPIUser string `yaml:"wp_api_user"`
	WPAPIKey  string `yaml:"wp_api_key"`

	// Categories maps sheet category names to WordPress category ids.
	Categories map[string]int64 `yaml:"categories"`

	DBPath         string `yaml:"db_path"`
	MigrationsPath string `yaml:"migrations_path"`
	RunLogPath     string `yaml:"run_log_path"`
	RunLogMax      int    `yaml:"run_log_max"`

	HTTPTimeout    time.Duration `yaml:"http_timeout"`
	IngestInterval time.Duration `yaml:"ingest_interval"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
}

const (
	defaultSheetsBaseURL = "https://sheets.googleapis.com"
	defaultDocsBaseURL   = "https://docs.googleapis.com"
)

// Load reads the config file at path (missing file is fine, defaults apply),
// then layers environment overrides on top and validates required fields.
func Load(path string) (*Config, error) {
	cfg := &Config{
		SheetsBaseURL:  defaultSheetsBaseURL,
		DocsBaseURL:    defaultDocsBaseURL,
		DBPath:         "sheetpress.sqlite",
		MigrationsPath: "migrations",
		RunLogPath:     "runlog.txt",
		RunLogMax:      500,
		HTTPTimeout:    20 * time.Second,
		IngestInterval: time.Hour,
		SweepInterval:  10 * time.Minute,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	cfg.SpreadsheetID = getEnv("GOOGLE_SHEETS_ID", cfg.SpreadsheetID)
	cfg.GoogleToken = getEnv("GOOGLE_API_TOKEN", cfg.GoogleToken)
	cfg.SheetsBaseURL = getEnv("SHEETS_BASE_URL", cfg.SheetsBaseURL)
	cfg.DocsBaseURL = getEnv("DOCS_BASE_URL", cfg.DocsBaseURL)
	cfg.WPAPIURL = getEnv("WP_API_URL", cfg.WPAPIURL)
	cfg.WPAPIUser = getEnv("WP_API_USER", cfg.WPAPIUser)
	cfg.WPAPIKey = getEnv("WP_API_KEY", cfg.WPAPIKey)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.MigrationsPath = getEnv("MIGRATIONS_PATH", cfg.MigrationsPath)
	cfg.RunLogPath = getEnv("RUN_LOG_PATH", cfg.RunLogPath)
	cfg.RunLogMax = getIntEnv("RUN_LOG_MAX", cfg.RunLogMax)
	cfg.HTTPTimeout = getDurationEnv("HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.IngestInterval = getDurationEnv("INGEST_INTERVAL", cfg.IngestInterval)
	cfg.SweepInterval = getDurationEnv("SWEEP_INTERVAL", cfg.SweepInterval)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.SpreadsheetID == "" {
		return fmt.Errorf("spreadsheet_id is required (GOOGLE_SHEETS_ID)")
	}
	if c.WPAPIURL == "" {
		return fmt.Errorf("wp_api_url is required (WP_API_URL)")
	}
	if c.WPAPIUser == "" || c.WPAPIKey == "" {
		return fmt.Errorf("wp_api_user and wp_api_key are required (WP_API_USER, WP_API_KEY)")
	}
	if c.RunLogMax <= 0 {
		return fmt.Errorf("run_log_max must be positive, got %d", c.RunLogMax)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
