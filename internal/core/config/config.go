// Package config provides configuration management for cohortd services.
package config

import (
	"fmt"
	"time"
)

// Config holds the evaluator and materializer tunables.
type Config struct {
	// DatabaseURL is the sqlite:// or postgres:// connection URL. Usually
	// supplied via flag or COHORTD_DATABASE_URL rather than the file.
	DatabaseURL string

	// EventScanLimit caps raw events scanned per condition. Accuracy/latency
	// trade-off: worst-case evaluation latency is proportional to this cap,
	// and results on projects exceeding it are flagged as truncated.
	EventScanLimit int

	// Parallelism bounds concurrent condition evaluations per criteria.
	Parallelism int

	// InsertBatchSize is membership rows per bulk insert statement during
	// snapshot replacement.
	InsertBatchSize int

	// RecalcTimeout bounds one segment recalculation end to end.
	RecalcTimeout time.Duration
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		EventScanLimit:  10000,
		Parallelism:     4,
		InsertBatchSize: 500,
		RecalcTimeout:   5 * time.Minute,
	}
}

// validate checks positive values for every numeric bound.
func validate(cfg *Config) error {
	if cfg.EventScanLimit <= 0 {
		return fmt.Errorf("event_scan_limit must be positive, got %d", cfg.EventScanLimit)
	}
	if cfg.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive, got %d", cfg.Parallelism)
	}
	if cfg.InsertBatchSize <= 0 {
		return fmt.Errorf("insert_batch_size must be positive, got %d", cfg.InsertBatchSize)
	}
	if cfg.RecalcTimeout <= 0 {
		return fmt.Errorf("recalc_timeout must be positive, got %v", cfg.RecalcTimeout)
	}
	return nil
}
