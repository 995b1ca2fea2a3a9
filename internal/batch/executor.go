package batch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kbo-data/importer/internal/apperrors"
	"github.com/kbo-data/importer/internal/dataset"
	"github.com/kbo-data/importer/internal/jobstore"
	"github.com/kbo-data/importer/internal/metrics"
)

// Result is the outcome of one processBatch call: rows affected by
// this batch, plus the job's updated progress.
type Result struct {
	RowsAffected int64
	Progress     *jobstore.ProgressSnapshot
}

// ProcessBatch executes a single planned batch. It first attempts the
// pending->running transition; a batch already completed (a retried
// at-least-once delivery) is a no-op success, a batch already running
// elsewhere surfaces ErrBatchBusy for the caller to retry later. Any
// database error during the batch statement rolls the batch back to
// failed with the error recorded.
func ProcessBatch(ctx context.Context, conn *sql.Conn, jobID, table, operation string, batchIndex, extractNumber int64, snapshotDate string) (*Result, error) {
	alreadyDone, err := jobstore.TryStartBatch(ctx, conn, jobID, table, operation, batchIndex)
	if err != nil {
		return nil, err
	}

	var rowsAffected int64
	if alreadyDone {
		row := conn.QueryRowContext(ctx, `
			SELECT rows_affected FROM batch_status
			WHERE job_id = ? AND table_name = ? AND operation = ? AND batch_index = ?
		`, jobID, table, operation, batchIndex)
		if err := row.Scan(&rowsAffected); err != nil {
			return nil, fmt.Errorf("failed to read completed batch rows_affected: %w", err)
		}
	} else {
		lo, hi, err := batchRange(ctx, conn, jobID, table, operation, batchIndex)
		if err != nil {
			return nil, err
		}

		rowsAffected, err = apply(ctx, conn, table, operation, jobID, extractNumber, snapshotDate, lo, hi)
		if err != nil {
			metrics.BatchesTotal.WithLabelValues(table, operation, jobstore.StatusFailed).Inc()
			if ferr := jobstore.FailBatch(ctx, conn, jobID, table, operation, batchIndex, err.Error()); ferr != nil {
				return nil, fmt.Errorf("failed to apply batch and failed to record failure: %w (apply error: %v)", ferr, err)
			}
			return nil, fmt.Errorf("%w: %v", apperrors.ErrBatchFailed, err)
		}

		if err := jobstore.CompleteBatch(ctx, conn, jobID, table, operation, batchIndex, rowsAffected); err != nil {
			return nil, err
		}
		metrics.BatchesTotal.WithLabelValues(table, operation, jobstore.StatusCompleted).Inc()
		metrics.BatchRowsAffected.WithLabelValues(table, operation).Add(float64(rowsAffected))
	}

	progress, err := jobstore.GetProgress(ctx, conn, jobID)
	if err != nil {
		return nil, err
	}
	return &Result{RowsAffected: rowsAffected, Progress: progress}, nil
}

func batchRange(ctx context.Context, conn *sql.Conn, jobID, table, operation string, batchIndex int64) (lo, hi int64, err error) {
	row := conn.QueryRowContext(ctx, `
		SELECT row_lo, row_hi FROM batch_status
		WHERE job_id = ? AND table_name = ? AND operation = ? AND batch_index = ?
	`, jobID, table, operation, batchIndex)
	if err := row.Scan(&lo, &hi); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, fmt.Errorf("batch %s/%s#%d: %w", table, operation, batchIndex, apperrors.ErrBatchFailed)
		}
		return 0, 0, fmt.Errorf("failed to read batch range: %w", err)
	}
	return lo, hi, nil
}

func apply(ctx context.Context, conn *sql.Conn, table, operation, jobID string, extractNumber int64, snapshotDate string, lo, hi int64) (int64, error) {
	if operation == "delete" {
		return dataset.ApplyDeleteBatch(ctx, conn, table, jobID, extractNumber, lo, hi)
	}
	return dataset.ApplyInsertBatch(ctx, conn, table, jobID, extractNumber, snapshotDate, lo, hi)
}
