package config

import (
	"fmt"
	"time"

	"github.com/grapplerank/ajp-results/internal/event"
)

// Config contains process configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Scraper  ScraperConfig  `koanf:"scraper"`
	Export   ExportConfig   `koanf:"export"`
	Log      LogConfig      `koanf:"log"`
}

// DatabaseConfig locates the embedded progress store.
type DatabaseConfig struct {
	// File is the SQLite database path.
	File string `koanf:"file"`
}

// ScraperConfig bounds the scraping run.
type ScraperConfig struct {
	// MaxWorkers sets the worker pool size.
	MaxWorkers int `koanf:"max_workers"`

	// TimeoutSeconds is the per-fetch HTTP timeout.
	TimeoutSeconds int `koanf:"timeout_seconds"`

	// MaxEvents is the inclusive upper bound of the event-id universe;
	// ids 1..MaxEvents are considered.
	MaxEvents int `koanf:"max_events"`

	// ChunkSize caps the number of match rows per insert statement inside
	// the commit transaction.
	ChunkSize int `koanf:"chunk_size"`

	// RetryBudget is the number of transport retries after the first
	// fetch attempt.
	RetryBudget int `koanf:"retry_budget"`

	// CommitRetries is the number of commit retries on storage failure.
	CommitRetries int `koanf:"commit_retries"`

	// NoRetryStatuses lists the stored statuses that exclude an event
	// from re-scraping on later runs.
	NoRetryStatuses []string `koanf:"no_retry_statuses"`
}

// ExportConfig controls the CSV snapshot stage.
type ExportConfig struct {
	// Dir is the parent directory for export snapshots.
	Dir string `koanf:"dir"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `koanf:"level"`

	// File receives rotated JSON logs; empty disables the file core.
	File string `koanf:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{File: "ajp_data.db"},
		Scraper: ScraperConfig{
			MaxWorkers:      16,
			TimeoutSeconds:  10,
			MaxEvents:       1302,
			ChunkSize:       1000,
			RetryBudget:     3,
			CommitRetries:   2,
			NoRetryStatuses: []string{string(event.StatusCompleted)},
		},
		Export: ExportConfig{Dir: "data"},
		Log:    LogConfig{Level: "info", File: "scraper.log"},
	}
}

// FetchTimeout returns the per-request timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutSeconds) * time.Second
}

// NoRetrySet returns the do-not-retry statuses as a set.
func (c *Config) NoRetrySet() map[event.Status]bool {
	set := make(map[event.Status]bool, len(c.Scraper.NoRetryStatuses))
	for _, s := range c.Scraper.NoRetryStatuses {
		set[event.Status(s)] = true
	}
	return set
}

// ValidationError reports an out-of-range configuration value. It is fatal
// at startup: no run begins with an invalid config.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s %s", e.Field, e.Reason)
}

// Validate checks every limit the scheduler and store depend on.
func (c *Config) Validate() error {
	if c.Database.File == "" {
		return &ValidationError{Field: "database.file", Reason: "must not be empty"}
	}
	if c.Scraper.MaxWorkers <= 0 {
		return &ValidationError{Field: "scraper.max_workers", Reason: "must be > 0"}
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		return &ValidationError{Field: "scraper.timeout_seconds", Reason: "must be > 0"}
	}
	if c.Scraper.MaxEvents <= 0 {
		return &ValidationError{Field: "scraper.max_events", Reason: "must be > 0"}
	}
	if c.Scraper.ChunkSize <= 0 {
		return &ValidationError{Field: "scraper.chunk_size", Reason: "must be > 0"}
	}
	if c.Scraper.RetryBudget < 0 {
		return &ValidationError{Field: "scraper.retry_budget", Reason: "must be >= 0"}
	}
	if c.Scraper.CommitRetries < 0 {
		return &ValidationError{Field: "scraper.commit_retries", Reason: "must be >= 0"}
	}
	for _, s := range c.Scraper.NoRetryStatuses {
		st, err := event.ParseStatus(s)
		if err != nil {
			return &ValidationError{Field: "scraper.no_retry_statuses", Reason: err.Error()}
		}
		if !st.Terminal() {
			return &ValidationError{
				Field:  "scraper.no_retry_statuses",
				Reason: fmt.Sprintf("%q is not a terminal status", s),
			}
		}
	}
	if c.Export.Dir == "" {
		return &ValidationError{Field: "export.dir", Reason: "must not be empty"}
	}
	return nil
}
