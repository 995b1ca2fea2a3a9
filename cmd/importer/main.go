// Command importer is the orchestrator CLI and ops HTTP server
// entrypoint. Each flag maps 1:1 to one façade operation, mirroring
// admin/cmd/admin/main.go's flag-dispatch style: --migrate,
// --prepare=<archive>, --process-batch-job=<job-id>,
// --get-progress=<job-id>, --finalize=<job-id>, --sweep-stale-locks,
// and --serve to run the ops HTTP server standalone.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	flag "github.com/spf13/pflag"

	"github.com/kbo-data/importer/internal/batch"
	"github.com/kbo-data/importer/internal/blobsource"
	"github.com/kbo-data/importer/internal/config"
	"github.com/kbo-data/importer/internal/duckdb"
	"github.com/kbo-data/importer/internal/jobstore"
	"github.com/kbo-data/importer/internal/logging"
	"github.com/kbo-data/importer/internal/notify"
	"github.com/kbo-data/importer/internal/opsserver"
	"github.com/kbo-data/importer/internal/orchestrator"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commands holds every flag-dispatched operation, parsed once in run().
type commands struct {
	envFile string

	migrate       bool
	migrateStatus bool
	serve         bool
	sweepLocks    bool

	prepare    string
	workerType string

	processBatchJob string
	getProgress     string
	finalize        string
}

// parseFlags registers every command-dispatch flag alongside config's
// ambient-setting flags on one FlagSet, so a single fs.Parse call sees
// the whole argument list regardless of which package owns each flag.
func parseFlags(args []string) (*commands, *config.FlagRefs, error) {
	fs := flag.NewFlagSet("importer", flag.ContinueOnError)

	c := &commands{}
	fs.StringVar(&c.envFile, "env-file", "", "path to a .env file to load before flags are evaluated")
	fs.BoolVar(&c.migrate, "migrate", false, "run DuckDB schema migrations")
	fs.BoolVar(&c.migrateStatus, "migrate-status", false, "show DuckDB migration status")
	fs.BoolVar(&c.serve, "serve", false, "run the ops HTTP server (healthz/readyz/metrics/progress)")
	fs.BoolVar(&c.sweepLocks, "sweep-stale-locks", false, "reset batches stuck running past the stale-lock threshold")
	fs.StringVar(&c.prepare, "prepare", "", "prepare a job from an archive: a local file path or an s3://bucket/key blob URL")
	fs.StringVar(&c.workerType, "worker-type", "cli", "worker_type recorded on the job row")
	fs.StringVar(&c.processBatchJob, "process-batch-job", "", "job id to drain all pending batches for")
	fs.StringVar(&c.getProgress, "get-progress", "", "job id to print a progress snapshot for")
	fs.StringVar(&c.finalize, "finalize", "", "job id to finalize")

	refs := config.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return c, refs, nil
}

func run(args []string) error {
	c, refs, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Resolve(refs, c.envFile)
	if err != nil {
		return err
	}

	log := logging.New(cfg.Verbose)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			return fmt.Errorf("failed to init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx := context.Background()

	db, err := duckdb.Open(ctx, log, duckdb.Config{
		Path: cfg.DatabasePath, ScratchDir: cfg.ScratchDir,
		ExtensionDir: cfg.ExtensionDir, TempDir: cfg.TempDir,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	switch {
	case c.migrate:
		return duckdb.Migrate(ctx, log, db.DB())
	case c.migrateStatus:
		return duckdb.MigrationStatus(ctx, log, db.DB())
	case c.serve:
		return opsserver.New(cfg.OpsAddr, db, log).Start()
	case c.sweepLocks:
		return runSweepStaleLocks(ctx, db, log, cfg.StaleLockThreshold)
	case c.prepare != "":
		return runPrepare(ctx, db, log, cfg, c.prepare, c.workerType)
	case c.processBatchJob != "":
		return runProcessBatches(ctx, db, log, cfg, c.processBatchJob)
	case c.getProgress != "":
		return runGetProgress(ctx, db, c.getProgress)
	case c.finalize != "":
		return runFinalize(ctx, db, log, cfg, c.finalize)
	}

	fmt.Fprintln(os.Stderr, "no operation requested; see --help")
	return nil
}

func runSweepStaleLocks(ctx context.Context, db *duckdb.Client, log *slog.Logger, threshold time.Duration) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return batch.SweepStaleLocks(ctx, conn, log, threshold)
}

func runPrepare(ctx context.Context, db *duckdb.Client, log *slog.Logger, cfg *config.Config, source, workerType string) error {
	data, err := fetchArchive(ctx, source, cfg)
	if err != nil {
		return err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	summary, err := orchestrator.Prepare(ctx, conn, data, int64(cfg.BatchSize), workerType)
	if err != nil {
		return err
	}
	log.Info("job prepared", "job_id", summary.JobID, "total_batches", summary.TotalBatches)
	return nil
}

// fetchArchive reads a local file, or downloads from S3 when source
// carries the "s3://bucket/key" blob-URL form.
func fetchArchive(ctx context.Context, source string, cfg *config.Config) ([]byte, error) {
	rest, isS3 := strings.CutPrefix(source, "s3://")
	if !isS3 {
		return os.ReadFile(source)
	}

	i := strings.IndexByte(rest, '/')
	if i <= 0 || i == len(rest)-1 {
		return nil, fmt.Errorf("invalid s3 url %q, expected s3://bucket/key", source)
	}
	bucket, key := rest[:i], rest[i+1:]

	src, err := blobsource.New(ctx, bucket, cfg.S3Region, cfg.S3Endpoint)
	if err != nil {
		return nil, err
	}
	return src.Fetch(ctx, key)
}

func runProcessBatches(ctx context.Context, db *duckdb.Client, log *slog.Logger, cfg *config.Config, jobID string) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	notifier := notify.New(cfg.SlackToken, cfg.SlackChannel, log)

	for {
		next, err := jobstore.NextPending(ctx, conn, jobID)
		if err != nil {
			return err
		}
		if next == nil {
			break
		}
		result, err := orchestrator.ProcessBatch(ctx, conn, jobID, next.Table, next.Operation, next.BatchIndex)
		if err != nil {
			notifyFailure(ctx, conn, notifier, jobID, err)
			return err
		}
		log.Info("batch processed", "table", next.Table, "operation", next.Operation,
			"batch_index", next.BatchIndex, "rows_affected", result.RowsAffected)
	}
	return nil
}

func runGetProgress(ctx context.Context, db *duckdb.Client, jobID string) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	snap, err := orchestrator.GetProgress(ctx, conn, jobID)
	if err != nil {
		return err
	}
	fmt.Printf("job %s: %s (%.1f%%, %d/%d batches)\n",
		snap.JobID, snap.Status, snap.OverallPercent, snap.OverallCompleted, snap.OverallTotal)
	return nil
}

func runFinalize(ctx context.Context, db *duckdb.Client, log *slog.Logger, cfg *config.Config, jobID string) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	notifier := notify.New(cfg.SlackToken, cfg.SlackChannel, log)

	result, err := orchestrator.Finalize(ctx, conn, jobID)
	if err != nil {
		notifyFailure(ctx, conn, notifier, jobID, err)
		return err
	}
	log.Info("job finalized", "job_id", jobID, "names_resolved", result.NamesResolved)
	return nil
}

// notifyFailure best-effort posts a Slack alert for a job that just
// failed. A lookup failure here must never mask the original error.
func notifyFailure(ctx context.Context, conn *sql.Conn, notifier *notify.Notifier, jobID string, cause error) {
	job, err := jobstore.GetJob(ctx, conn, jobID)
	if err != nil {
		return
	}
	_ = notifier.NotifyJobFailed(ctx, jobID, job.ExtractNumber, job.ExtractType, cause.Error())
}
