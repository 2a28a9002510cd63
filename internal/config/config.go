package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// DefaultFile is the config path used when --config is not given.
const DefaultFile = "config.json"

type Config struct {
	MaxRetries                int    `json:"max_retries"`
	BackoffBase               int    `json:"backoff_base"`
	WorkerCount               int    `json:"worker_count"`
	DataFile                  string `json:"data_file"`
	JobTimeoutSeconds         int    `json:"job_timeout_seconds"`
	RetryCheckIntervalSeconds int    `json:"retry_check_interval_seconds"`
}

func Default() *Config {
	return &Config{
		MaxRetries:                3,
		BackoffBase:               2,
		WorkerCount:               3,
		DataFile:                  "jobs.json",
		JobTimeoutSeconds:         300,
		RetryCheckIntervalSeconds: 30,
	}
}

// Load reads the config file at path. A missing file is created with
// defaults; an empty file yields defaults without a write.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, Save(path, cfg)
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Set applies a single key=value update with validation. Keys use the
// same snake_case names as the config file.
func (c *Config) Set(key, value string) error {
	switch key {
	case "max_retries":
		n, err := parseNonNegative(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_retries: %s", value)
		}
		c.MaxRetries = n
	case "backoff_base":
		n, err := parsePositive(value)
		if err != nil {
			return fmt.Errorf("invalid value for backoff_base: %s", value)
		}
		c.BackoffBase = n
	case "worker_count":
		n, err := parsePositive(value)
		if err != nil {
			return fmt.Errorf("invalid value for worker_count: %s", value)
		}
		c.WorkerCount = n
	case "data_file":
		if value == "" {
			return fmt.Errorf("data_file cannot be empty")
		}
		c.DataFile = value
	case "job_timeout_seconds":
		n, err := parsePositive(value)
		if err != nil {
			return fmt.Errorf("invalid value for job_timeout_seconds: %s", value)
		}
		c.JobTimeoutSeconds = n
	case "retry_check_interval_seconds":
		n, err := parsePositive(value)
		if err != nil {
			return fmt.Errorf("invalid value for retry_check_interval_seconds: %s", value)
		}
		c.RetryCheckIntervalSeconds = n
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func parseNonNegative(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("not a non-negative integer: %s", value)
	}
	return n, nil
}

func parsePositive(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("not a positive integer: %s", value)
	}
	return n, nil
}
