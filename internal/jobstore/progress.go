package jobstore

import (
	"context"
	"database/sql"
	"fmt"
)

// TableProgress is the completed/total/status tally for one table
// within a job's batch plan.
type TableProgress struct {
	Table     string
	Completed int64
	Total     int64
	Status    string
}

// ProgressSnapshot answers getProgress(job_id): overall and per-table
// completion, plus which batch is next in line.
type ProgressSnapshot struct {
	JobID            string
	Status           string
	OverallCompleted int64
	OverallTotal     int64
	OverallPercent   float64
	PerTable         []TableProgress
	CurrentBatch     *BatchStatusRow
	NextBatch        *BatchStatusRow
}

// GetProgress computes a job's progress snapshot from batch_status.
func GetProgress(ctx context.Context, conn *sql.Conn, jobID string) (*ProgressSnapshot, error) {
	job, err := GetJob(ctx, conn, jobID)
	if err != nil {
		return nil, err
	}

	snap := &ProgressSnapshot{JobID: jobID, Status: job.Status}

	rows, err := conn.QueryContext(ctx, `
		SELECT table_name,
		       sum(CASE WHEN status = ? THEN 1 ELSE 0 END) AS completed,
		       count(*) AS total
		FROM batch_status
		WHERE job_id = ?
		GROUP BY table_name
	`, StatusCompleted, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query per-table progress for %s: %w", jobID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var tp TableProgress
		if err := rows.Scan(&tp.Table, &tp.Completed, &tp.Total); err != nil {
			return nil, fmt.Errorf("failed to scan table progress: %w", err)
		}
		if tp.Completed == tp.Total {
			tp.Status = StatusCompleted
		} else {
			tp.Status = StatusPending
		}
		snap.PerTable = append(snap.PerTable, tp)
		snap.OverallCompleted += tp.Completed
		snap.OverallTotal += tp.Total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table progress: %w", err)
	}

	if snap.OverallTotal > 0 {
		snap.OverallPercent = 100 * float64(snap.OverallCompleted) / float64(snap.OverallTotal)
	}

	current, err := currentRunning(ctx, conn, jobID)
	if err != nil {
		return nil, err
	}
	snap.CurrentBatch = current

	next, err := NextPending(ctx, conn, jobID)
	if err != nil {
		return nil, err
	}
	snap.NextBatch = next

	return snap, nil
}

func currentRunning(ctx context.Context, conn *sql.Conn, jobID string) (*BatchStatusRow, error) {
	row := conn.QueryRowContext(ctx, `
		SELECT table_name, operation, batch_index, row_lo, row_hi, status, attempt_count, COALESCE(last_error, ''), rows_affected
		FROM batch_status WHERE job_id = ? AND status = ? LIMIT 1
	`, jobID, StatusRunning)
	var s BatchStatusRow
	err := row.Scan(&s.Table, &s.Operation, &s.BatchIndex, &s.RowLo, &s.RowHi, &s.Status, &s.AttemptCount, &s.LastError, &s.RowsAffected)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query current running batch for %s: %w", jobID, err)
	}
	return &s, nil
}
