package config

import (
	"os"
	"strconv"
	"time"
)

// applyEnvOverrides mirrors the admin CLI's env-override-after-flags
// pattern: an env var wins over the flag default whenever it is set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VERBOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Verbose = b
		}
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("SCRATCH_DIR"); v != "" {
		cfg.ScratchDir = v
	}
	if v := os.Getenv("EXTENSION_DIR"); v != "" {
		cfg.ExtensionDir = v
	}
	if v := os.Getenv("TEMP_DIR"); v != "" {
		cfg.TempDir = v
	}
	if v := os.Getenv("BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BatchSize = n
		}
	}
	if v := os.Getenv("STALE_LOCK_THRESHOLD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StaleLockThreshold = d
		}
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.S3Bucket = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.S3Region = v
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		cfg.S3Endpoint = v
	}
	if v := os.Getenv("SLACK_TOKEN"); v != "" {
		cfg.SlackToken = v
	}
	if v := os.Getenv("SLACK_CHANNEL"); v != "" {
		cfg.SlackChannel = v
	}
	if v := os.Getenv("SENTRY_DSN"); v != "" {
		cfg.SentryDSN = v
	}
	if v := os.Getenv("OPS_ADDR"); v != "" {
		cfg.OpsAddr = v
	}
}
