// Package jobstore persists ImportJob, BatchPlan, and BatchStatus rows
// in the control tables and implements the atomic pending->running
// transition that gives each batch at-most-one-executor-per-batch.
// The bookkeeping style follows admin/internal/admin's migration-state
// tables, adapted to this importer's batch-level lock table.
package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kbo-data/importer/internal/apperrors"
	"github.com/kbo-data/importer/internal/dataset"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ImportJob mirrors the import_jobs control table.
type ImportJob struct {
	ID                string
	ExtractNumber     int64
	ExtractType       string
	SnapshotDate      string
	Status            string
	ErrorMessage      string
	RecordsInserted   int64
	RecordsDeleted    int64
	RecordsProcessed  int64
	WorkerType        string
}

// BatchPlan mirrors one row of the batch_plans table: how many batches
// a (table, operation) pair was split into.
type BatchPlan struct {
	Table      string
	Operation  string
	BatchCount int64
}

// BatchStatusRow mirrors one row of the batch_status table.
type BatchStatusRow struct {
	Table        string
	Operation    string
	BatchIndex   int64
	RowLo        int64
	RowHi        int64
	Status       string
	AttemptCount int64
	LastError    string
	RowsAffected int64
}

// CreateJob inserts a new import job. A duplicate (extract_number,
// extract_type) pair surfaces as ErrDuplicateJob so prepare() can be
// retried idempotently by returning the existing job instead.
func CreateJob(ctx context.Context, conn *sql.Conn, job ImportJob) error {
	_, err := conn.ExecContext(ctx, `
		INSERT INTO import_jobs (id, extract_number, extract_type, snapshot_date, status, started_at, worker_type)
		VALUES (?, ?, ?, ?, ?, now(), ?)
	`, job.ID, job.ExtractNumber, job.ExtractType, job.SnapshotDate, StatusRunning, job.WorkerType)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrDuplicateJob
		}
		return fmt.Errorf("failed to create import job: %w", err)
	}
	return nil
}

// GetJobByExtract looks up an existing job by its natural key, used by
// prepare() to recover an in-flight or completed job on retry.
func GetJobByExtract(ctx context.Context, conn *sql.Conn, extractNumber int64, extractType string) (*ImportJob, error) {
	row := conn.QueryRowContext(ctx, `
		SELECT id, extract_number, extract_type, COALESCE(snapshot_date::VARCHAR, ''), status,
		       COALESCE(error_message, ''), records_inserted, records_deleted, records_processed,
		       COALESCE(worker_type, '')
		FROM import_jobs WHERE extract_number = ? AND extract_type = ?
	`, extractNumber, extractType)
	return scanJob(row)
}

// GetJob looks up a job by id.
func GetJob(ctx context.Context, conn *sql.Conn, jobID string) (*ImportJob, error) {
	row := conn.QueryRowContext(ctx, `
		SELECT id, extract_number, extract_type, COALESCE(snapshot_date::VARCHAR, ''), status,
		       COALESCE(error_message, ''), records_inserted, records_deleted, records_processed,
		       COALESCE(worker_type, '')
		FROM import_jobs WHERE id = ?
	`, jobID)
	return scanJob(row)
}

func scanJob(row *sql.Row) (*ImportJob, error) {
	var j ImportJob
	err := row.Scan(&j.ID, &j.ExtractNumber, &j.ExtractType, &j.SnapshotDate, &j.Status,
		&j.ErrorMessage, &j.RecordsInserted, &j.RecordsDeleted, &j.RecordsProcessed, &j.WorkerType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan import job: %w", err)
	}
	return &j, nil
}

// MarkCompleted sets a job's terminal success state and tallies.
func MarkCompleted(ctx context.Context, conn *sql.Conn, jobID string, inserted, deleted, processed int64) error {
	_, err := conn.ExecContext(ctx, `
		UPDATE import_jobs
		SET status = ?, completed_at = now(), records_inserted = ?, records_deleted = ?, records_processed = ?
		WHERE id = ?
	`, StatusCompleted, inserted, deleted, processed, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job %s completed: %w", jobID, err)
	}
	return nil
}

// MarkFailed sets a job's terminal failure state.
func MarkFailed(ctx context.Context, conn *sql.Conn, jobID string, errMsg string) error {
	_, err := conn.ExecContext(ctx, `
		UPDATE import_jobs SET status = ?, completed_at = now(), error_message = ? WHERE id = ?
	`, StatusFailed, errMsg, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", jobID, err)
	}
	return nil
}

// SavePlan writes the batch_plans and batch_status rows for a job. Safe
// to call once per job; prepare() must not call it twice for the same
// job (callers should check for existing plan rows first).
func SavePlan(ctx context.Context, conn *sql.Conn, jobID string, plans []BatchPlan, statuses []BatchStatusRow) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin plan transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range plans {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO batch_plans (job_id, table_name, operation, batch_count) VALUES (?, ?, ?, ?)
		`, jobID, p.Table, p.Operation, p.BatchCount); err != nil {
			return fmt.Errorf("failed to save batch plan for %s/%s: %w", p.Table, p.Operation, err)
		}
	}

	for _, s := range statuses {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO batch_status (job_id, table_name, operation, batch_index, row_lo, row_hi, status)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, jobID, s.Table, s.Operation, s.BatchIndex, s.RowLo, s.RowHi, StatusPending); err != nil {
			return fmt.Errorf("failed to save batch status for %s/%s#%d: %w", s.Table, s.Operation, s.BatchIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch plan: %w", err)
	}
	return nil
}

// HasPlan reports whether a job already has batch_plans rows, so
// prepare() can skip re-planning on retry.
func HasPlan(ctx context.Context, conn *sql.Conn, jobID string) (bool, error) {
	var count int64
	err := conn.QueryRowContext(ctx, `SELECT count(*) FROM batch_plans WHERE job_id = ?`, jobID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check existing plan for %s: %w", jobID, err)
	}
	return count > 0, nil
}

// NextPending returns the next batch to run for a job, in the table
// dependency order, deletes before inserts, lowest batch_index first —
// or nil if every batch is already completed.
func NextPending(ctx context.Context, conn *sql.Conn, jobID string) (*BatchStatusRow, error) {
	for _, table := range dataset.TableOrder {
		for _, op := range []string{"delete", "insert"} {
			row := conn.QueryRowContext(ctx, `
				SELECT table_name, operation, batch_index, row_lo, row_hi, status, attempt_count, COALESCE(last_error, ''), rows_affected
				FROM batch_status
				WHERE job_id = ? AND table_name = ? AND operation = ? AND status != ?
				ORDER BY batch_index ASC LIMIT 1
			`, jobID, table, op, StatusCompleted)
			var s BatchStatusRow
			err := row.Scan(&s.Table, &s.Operation, &s.BatchIndex, &s.RowLo, &s.RowHi, &s.Status, &s.AttemptCount, &s.LastError, &s.RowsAffected)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to find next pending batch for %s: %w", jobID, err)
			}
			return &s, nil
		}
	}
	return nil, nil
}

// TryStartBatch atomically transitions a batch from pending to running.
// If the batch is already completed, it returns (true, nil) so the
// caller can treat the call as a no-op success (idempotent retry). If
// it is already running, it returns ErrBatchBusy.
func TryStartBatch(ctx context.Context, conn *sql.Conn, jobID, table, operation string, batchIndex int64) (alreadyDone bool, err error) {
	var status string
	row := conn.QueryRowContext(ctx, `
		SELECT status FROM batch_status WHERE job_id = ? AND table_name = ? AND operation = ? AND batch_index = ?
	`, jobID, table, operation, batchIndex)
	if err := row.Scan(&status); err != nil {
		return false, fmt.Errorf("failed to read batch status: %w", err)
	}

	switch status {
	case StatusCompleted:
		return true, nil
	case StatusRunning:
		return false, apperrors.ErrBatchBusy
	}

	res, err := conn.ExecContext(ctx, `
		UPDATE batch_status SET status = ?, started_at = now(), updated_at = now(), attempt_count = attempt_count + 1
		WHERE job_id = ? AND table_name = ? AND operation = ? AND batch_index = ? AND status = ?
	`, StatusRunning, jobID, table, operation, batchIndex, status)
	if err != nil {
		return false, fmt.Errorf("failed to start batch: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected starting batch: %w", err)
	}
	if affected == 0 {
		// Lost the race to another worker between the read and the update.
		return false, apperrors.ErrBatchBusy
	}
	return false, nil
}

// CompleteBatch records a successful batch apply.
func CompleteBatch(ctx context.Context, conn *sql.Conn, jobID, table, operation string, batchIndex, rowsAffected int64) error {
	_, err := conn.ExecContext(ctx, `
		UPDATE batch_status SET status = ?, rows_affected = ?, updated_at = now()
		WHERE job_id = ? AND table_name = ? AND operation = ? AND batch_index = ?
	`, StatusCompleted, rowsAffected, jobID, table, operation, batchIndex)
	if err != nil {
		return fmt.Errorf("failed to complete batch: %w", err)
	}
	return nil
}

// FailBatch records a failed batch apply with its error message.
func FailBatch(ctx context.Context, conn *sql.Conn, jobID, table, operation string, batchIndex int64, errMsg string) error {
	_, err := conn.ExecContext(ctx, `
		UPDATE batch_status SET status = ?, last_error = ?, updated_at = now()
		WHERE job_id = ? AND table_name = ? AND operation = ? AND batch_index = ?
	`, StatusFailed, errMsg, jobID, table, operation, batchIndex)
	if err != nil {
		return fmt.Errorf("failed to mark batch failed: %w", err)
	}
	return nil
}

// AllBatchesCompleted reports whether every planned batch for a job has
// reached the completed state — the precondition for finalize().
func AllBatchesCompleted(ctx context.Context, conn *sql.Conn, jobID string) (bool, error) {
	var incomplete int64
	err := conn.QueryRowContext(ctx, `
		SELECT count(*) FROM batch_status WHERE job_id = ? AND status != ?
	`, jobID, StatusCompleted).Scan(&incomplete)
	if err != nil {
		return false, fmt.Errorf("failed to check batch completion for %s: %w", jobID, err)
	}
	return incomplete == 0, nil
}

// SweepStaleLocks resets any batch that has been running for longer
// than threshold back to pending, making it eligible for re-execution
// after a crashed worker left it locked.
func SweepStaleLocks(ctx context.Context, conn *sql.Conn, threshold time.Duration) (map[string]int64, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT table_name, count(*) FROM batch_status
		WHERE status = ? AND started_at < now() - INTERVAL (?) SECOND
		GROUP BY table_name
	`, StatusRunning, int64(threshold.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("failed to find stale locks: %w", err)
	}
	reclaimed := map[string]int64{}
	for rows.Next() {
		var table string
		var count int64
		if err := rows.Scan(&table, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan stale lock count: %w", err)
		}
		reclaimed[table] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stale locks: %w", err)
	}
	if len(reclaimed) == 0 {
		return reclaimed, nil
	}

	_, err = conn.ExecContext(ctx, `
		UPDATE batch_status SET status = ?, updated_at = now()
		WHERE status = ? AND started_at < now() - INTERVAL (?) SECOND
	`, StatusPending, StatusRunning, int64(threshold.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("failed to reset stale locks: %w", err)
	}
	return reclaimed, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE") || strings.Contains(msg, "unique") || strings.Contains(msg, "constraint")
}
