package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds runtime configuration for the telemetry worker.
type Config struct {
	DBURL            string
	RedisURL         string
	RedisQueue       string
	WorkerCount      int
	JobBufferSize    int
	RulesPath        string
	HistoryScanLimit int
}

// Load builds a Config from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		DBURL:            os.Getenv("DB_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		RedisQueue:       os.Getenv("REDIS_QUEUE"),
		RulesPath:        os.Getenv("RULES_PATH"),
		WorkerCount:      1,
		JobBufferSize:    64,
		HistoryScanLimit: 500,
	}

	if cfg.DBURL == "" {
		return nil, fmt.Errorf("DB_URL is required")
	}

	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	if cfg.RedisQueue == "" {
		cfg.RedisQueue = "gsi_ticks"
	}

	if v := os.Getenv("WORKER_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid WORKER_COUNT %q", v)
		}
		cfg.WorkerCount = n
	}

	if v := os.Getenv("JOB_BUFFER_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid JOB_BUFFER_SIZE %q", v)
		}
		cfg.JobBufferSize = n
	}

	if v := os.Getenv("HISTORY_SCAN_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid HISTORY_SCAN_LIMIT %q", v)
		}
		cfg.HistoryScanLimit = n
	}

	return cfg, nil
}
