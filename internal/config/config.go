// Package config parses importer configuration from flags and
// environment variables, following the admin CLI's flag-plus-env-override
// pattern.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

const (
	// DefaultBatchSize is the only tunable knob governing batch sizing
	// for both delete and insert batches.
	DefaultBatchSize = 10_000

	// DefaultStaleLockThreshold is how long a batch may sit in `running`
	// before the sweeper considers its lock stale.
	DefaultStaleLockThreshold = 10 * time.Minute
)

// Config holds all engine configuration resolved from flags, env vars,
// and an optional .env file.
type Config struct {
	Verbose bool

	// DuckDB file path, or ":memory:" for ephemeral/test runs.
	DatabasePath string
	// ScratchDir/ExtensionDir/TempDir must be writable before ATTACH when
	// running in an ephemeral-filesystem environment (e.g. a lambda).
	ScratchDir   string
	ExtensionDir string
	TempDir      string

	BatchSize          int
	StaleLockThreshold time.Duration

	// S3 settings for blob-URL archive fetch.
	S3Bucket   string
	S3Region   string
	S3Endpoint string

	SlackToken   string
	SlackChannel string
	SentryDSN    string

	OpsAddr string
}

// FlagRefs holds the pointers pflag fills in when fs.Parse runs, kept
// around so Resolve can read them into a Config afterward.
type FlagRefs struct {
	verbose                                   *bool
	dbPath, scratchDir, extensionDir, tempDir *string
	batchSize                                 *int
	staleLockThreshold                        *time.Duration
	s3Bucket, s3Region, s3Endpoint            *string
	slackToken, slackChannel, sentryDSN      *string
	opsAddr                                   *string
}

// RegisterFlags defines the engine's ambient configuration flags on fs,
// so a caller that also defines its own command-dispatch flags (e.g.
// --prepare, --finalize) can parse everything with one fs.Parse call
// instead of each package parsing the argument list on its own set.
func RegisterFlags(fs *flag.FlagSet) *FlagRefs {
	return &FlagRefs{
		verbose:            fs.Bool("verbose", false, "enable verbose (debug) logging (or set VERBOSE=true)"),
		dbPath:             fs.String("db-path", "import.duckdb", "DuckDB database file path (or set DB_PATH)"),
		scratchDir:         fs.String("scratch-dir", "", "DuckDB scratch_directory (or set SCRATCH_DIR)"),
		extensionDir:       fs.String("extension-dir", "", "DuckDB extension_directory (or set EXTENSION_DIR)"),
		tempDir:            fs.String("temp-dir", "", "DuckDB temp_directory (or set TEMP_DIR)"),
		batchSize:          fs.Int("batch-size", DefaultBatchSize, "rows per batch (or set BATCH_SIZE)"),
		staleLockThreshold: fs.Duration("stale-lock-threshold", DefaultStaleLockThreshold, "duration after which a running batch is eligible for reset (or set STALE_LOCK_THRESHOLD)"),
		s3Bucket:           fs.String("s3-bucket", "", "S3 bucket setting (or set S3_BUCKET); --prepare does not read it and takes the bucket from its s3://bucket/key URL"),
		s3Region:           fs.String("s3-region", "us-east-1", "AWS region for blob-URL archive fetch (or set AWS_REGION)"),
		s3Endpoint:         fs.String("s3-endpoint", "", "custom S3-compatible endpoint, empty for AWS S3 (or set S3_ENDPOINT)"),
		slackToken:         fs.String("slack-token", "", "Slack bot token for failure notifications (or set SLACK_TOKEN)"),
		slackChannel:       fs.String("slack-channel", "", "Slack channel for failure notifications (or set SLACK_CHANNEL)"),
		sentryDSN:          fs.String("sentry-dsn", "", "Sentry DSN for error capture (or set SENTRY_DSN)"),
		opsAddr:            fs.String("ops-addr", ":8080", "address for the ops HTTP server (or set OPS_ADDR)"),
	}
}

// Resolve builds a Config from already-parsed flags, applying env-var
// overrides afterward. envFile, if non-empty, is loaded via godotenv
// before overrides are applied, so a checked-in .env can supply values
// a flag's CLI default doesn't cover.
func Resolve(r *FlagRefs, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %q: %w", envFile, err)
		}
	}

	cfg := &Config{
		Verbose:            *r.verbose,
		DatabasePath:       *r.dbPath,
		ScratchDir:         *r.scratchDir,
		ExtensionDir:       *r.extensionDir,
		TempDir:            *r.tempDir,
		BatchSize:          *r.batchSize,
		StaleLockThreshold: *r.staleLockThreshold,
		S3Bucket:           *r.s3Bucket,
		S3Region:           *r.s3Region,
		S3Endpoint:         *r.s3Endpoint,
		SlackToken:         *r.slackToken,
		SlackChannel:       *r.slackChannel,
		SentryDSN:          *r.sentryDSN,
		OpsAddr:            *r.opsAddr,
	}

	applyEnvOverrides(cfg)

	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}

	return cfg, nil
}

// Load is the single-call convenience path for callers (tests, simple
// tools) that have no command-dispatch flags of their own to share a
// FlagSet with.
func Load(args []string, envFile string) (*Config, error) {
	fs := flag.NewFlagSet("importer", flag.ContinueOnError)
	refs := RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	return Resolve(refs, envFile)
}
