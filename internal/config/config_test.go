package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 2, cfg.BackoffBase)
	assert.Equal(t, 3, cfg.WorkerCount)
	assert.Equal(t, "jobs.json", cfg.DataFile)
	assert.Equal(t, 300, cfg.JobTimeoutSeconds)
	assert.Equal(t, 30, cfg.RetryCheckIntervalSeconds)

	_, err = os.Stat(path)
	assert.NoError(t, err, "defaults are written on first read")
}

func TestLoadEmptyFileYieldsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSetSaveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, cfg.Set("max_retries", "5"))
	require.NoError(t, cfg.Set("backoff_base", "3"))
	require.NoError(t, cfg.Set("data_file", "queue/jobs.json"))
	require.NoError(t, Save(path, cfg))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, reloaded.MaxRetries)
	assert.Equal(t, 3, reloaded.BackoffBase)
	assert.Equal(t, "queue/jobs.json", reloaded.DataFile)
}

func TestSetRejectsUnknownKey(t *testing.T) {
	cfg := Default()
	err := cfg.Set("nope", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestSetValidatesValues(t *testing.T) {
	cfg := Default()

	assert.Error(t, cfg.Set("max_retries", "-1"))
	assert.Error(t, cfg.Set("max_retries", "three"))
	assert.NoError(t, cfg.Set("max_retries", "0"))

	assert.Error(t, cfg.Set("backoff_base", "0"))
	assert.Error(t, cfg.Set("worker_count", "0"))
	assert.Error(t, cfg.Set("job_timeout_seconds", "-5"))
	assert.Error(t, cfg.Set("retry_check_interval_seconds", "0"))
	assert.Error(t, cfg.Set("data_file", ""))
}
