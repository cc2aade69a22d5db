package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration with viper.
// CLI flags > environment > config file > defaults precedence; environment
// variables use the COHORTD_ prefix with dots replaced by underscores
// (evaluator.event_scan_limit -> COHORTD_EVALUATOR_EVENT_SCAN_LIMIT).
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Defaults matching Default()
	v.SetDefault("database.url", "")
	v.SetDefault("evaluator.event_scan_limit", 10000)
	v.SetDefault("evaluator.parallelism", 4)
	v.SetDefault("materializer.insert_batch_size", 500)
	v.SetDefault("materializer.recalc_timeout", "5m")

	v.SetEnvPrefix("COHORTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		DatabaseURL:     v.GetString("database.url"),
		EventScanLimit:  v.GetInt("evaluator.event_scan_limit"),
		Parallelism:     v.GetInt("evaluator.parallelism"),
		InsertBatchSize: v.GetInt("materializer.insert_batch_size"),
		RecalcTimeout:   v.GetDuration("materializer.recalc_timeout"),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
