package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kbo-data/importer/internal/apperrors"
	"github.com/kbo-data/importer/internal/archive"
	"github.com/kbo-data/importer/internal/batch"
	"github.com/kbo-data/importer/internal/dataset"
	"github.com/kbo-data/importer/internal/jobstore"
	"github.com/kbo-data/importer/internal/resolver"
)

// PlanSummary is returned from Prepare: the job id, the total batch
// count, and the delete/insert batch counts per table. It does not carry
// the extract number or snapshot date.
type PlanSummary = batch.PlanSummary

// FinalizeResult is returned from Finalize: the number of enterprise
// rows the primary-name resolver updated, plus whether staging was
// cleaned.
type FinalizeResult struct {
	NamesResolved  int64
	StagingCleaned bool
}

// Prepare implements prepare(archive, job) -> PlanSummary. It rejects
// an extract already completed under the same (extract_number,
// extract_type), ingests every table's staged rows, and writes the
// batch plan. Safe to call again for a job that failed mid-staging: the
// half-loaded job's staging rows are cleared and ingestion restarts under
// the same job id; the job row itself is kept, not deleted.
func Prepare(ctx context.Context, conn *sql.Conn, data []byte, batchSize int64, workerType string) (*PlanSummary, error) {
	a, err := archive.Open(data)
	if err != nil {
		return nil, err
	}

	metaRaw, err := a.ReadEntry("meta.csv")
	if err != nil {
		return nil, fmt.Errorf("archive missing meta.csv: %w", err)
	}
	meta, err := archive.ParseMetadata(metaRaw)
	if err != nil {
		return nil, err
	}

	existing, err := jobstore.GetJobByExtract(ctx, conn, meta.ExtractNumber, meta.ExtractType)
	if err != nil && !errors.Is(err, apperrors.ErrJobNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.Status == jobstore.StatusCompleted {
			return nil, fmt.Errorf("%w: extract %d/%s already completed", apperrors.ErrDuplicateJob, meta.ExtractNumber, meta.ExtractType)
		}
		if hasPlan, err := jobstore.HasPlan(ctx, conn, existing.ID); err != nil {
			return nil, err
		} else if hasPlan {
			// A previous prepare() call committed its plan; treat this
			// retry as already done rather than re-ingesting.
			summary, err := planSummaryFor(ctx, conn, existing.ID)
			if err != nil {
				return nil, err
			}
			return summary, nil
		}
		// Half-loaded job from a crashed prepare: clear its staging and
		// restart ingestion under the same job id.
		if err := dataset.ClearStaging(ctx, conn, existing.ID); err != nil {
			return nil, err
		}
		return prepareJob(ctx, conn, a, existing.ID, meta, batchSize)
	}

	jobID := uuid.New().String()
	if err := jobstore.CreateJob(ctx, conn, jobstore.ImportJob{
		ID: jobID, ExtractNumber: meta.ExtractNumber, ExtractType: meta.ExtractType,
		SnapshotDate: meta.SnapshotDate, WorkerType: workerType,
	}); err != nil {
		return nil, err
	}
	return prepareJob(ctx, conn, a, jobID, meta, batchSize)
}

func prepareJob(ctx context.Context, conn *sql.Conn, a *archive.Archive, jobID string, meta archive.Metadata, batchSize int64) (*PlanSummary, error) {
	for _, table := range dataset.TableOrder {
		if _, _, err := ingestTable(ctx, conn, a, jobID, table, meta.ExtractType); err != nil {
			return nil, fmt.Errorf("failed to ingest %s for job %s: %w", table, jobID, err)
		}
	}

	summary, err := batch.Plan(ctx, conn, jobID, batchSize)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func planSummaryFor(ctx context.Context, conn *sql.Conn, jobID string) (*PlanSummary, error) {
	summary := &PlanSummary{JobID: jobID, BatchesByTable: map[string]batch.TableSummary{}}
	rows, err := conn.QueryContext(ctx, `SELECT table_name, operation, batch_count FROM batch_plans WHERE job_id = ?`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to read existing batch plan for %s: %w", jobID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var table, op string
		var count int64
		if err := rows.Scan(&table, &op, &count); err != nil {
			return nil, fmt.Errorf("failed to scan batch plan row: %w", err)
		}
		ts := summary.BatchesByTable[table]
		if op == "delete" {
			ts.DeleteBatches = count
		} else {
			ts.InsertBatches = count
		}
		summary.BatchesByTable[table] = ts
		summary.TotalBatches += count
	}
	return summary, rows.Err()
}

// ProcessBatch implements processBatch(job_id, table, batch_index,
// operation) -> BatchResult. It requires the job's extract_number and
// snapshot_date, which it looks up from the job row.
func ProcessBatch(ctx context.Context, conn *sql.Conn, jobID, table, operation string, batchIndex int64) (*batch.Result, error) {
	job, err := jobstore.GetJob(ctx, conn, jobID)
	if err != nil {
		return nil, err
	}
	return batch.ProcessBatch(ctx, conn, jobID, table, operation, batchIndex, job.ExtractNumber, job.SnapshotDate)
}

// GetProgress implements getProgress(job_id) -> ProgressSnapshot.
func GetProgress(ctx context.Context, conn *sql.Conn, jobID string) (*jobstore.ProgressSnapshot, error) {
	return jobstore.GetProgress(ctx, conn, jobID)
}

// Finalize implements finalize(job_id) -> { names_resolved,
// staging_cleaned }. It requires every planned batch to be completed,
// runs the primary-name resolver once, reconciles the job's record
// counters from the temporal tables themselves, clears staging, and
// marks the job completed.
func Finalize(ctx context.Context, conn *sql.Conn, jobID string) (*FinalizeResult, error) {
	job, err := jobstore.GetJob(ctx, conn, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == jobstore.StatusCompleted {
		return &FinalizeResult{StagingCleaned: true}, nil
	}

	allDone, err := jobstore.AllBatchesCompleted(ctx, conn, jobID)
	if err != nil {
		return nil, err
	}
	if !allDone {
		return nil, apperrors.ErrNotAllBatchesCompleted
	}

	namesResolved, err := resolver.Resolve(ctx, conn, jobID, job.ExtractNumber)
	if err != nil {
		return nil, err
	}

	inserted, deleted, err := reconcileCounts(ctx, conn, job.ExtractNumber)
	if err != nil {
		return nil, err
	}

	if err := dataset.ClearStaging(ctx, conn, jobID); err != nil {
		return nil, err
	}

	if err := jobstore.MarkCompleted(ctx, conn, jobID, inserted, deleted, inserted+deleted); err != nil {
		return nil, err
	}

	return &FinalizeResult{NamesResolved: namesResolved, StagingCleaned: true}, nil
}

// reconcileCounts recomputes records_inserted/records_deleted from the
// temporal tables themselves — rows stamped with this extract number as
// inserts, rows retired at this extract number as deletes — which is
// authoritative over any pre-finalize batch tally.
func reconcileCounts(ctx context.Context, conn *sql.Conn, extractNumber int64) (inserted, deleted int64, err error) {
	for _, table := range dataset.TableOrder {
		var ins, del int64
		row := conn.QueryRowContext(ctx, fmt.Sprintf(`
			SELECT
				(SELECT count(*) FROM %s WHERE _extract_number = ?),
				(SELECT count(*) FROM %s WHERE _deleted_at_extract = ?)
		`, table, table), extractNumber, extractNumber)
		if err := row.Scan(&ins, &del); err != nil {
			return 0, 0, fmt.Errorf("failed to reconcile counts for %s: %w", table, err)
		}
		inserted += ins
		deleted += del
	}
	return inserted, deleted, nil
}
