// Package batch implements the Batch Planner and Batch Executor: it
// turns staged rows into a fixed sequence of idempotent batches and
// drives each one through the delete/insert SQL in internal/dataset.
package batch

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kbo-data/importer/internal/dataset"
	"github.com/kbo-data/importer/internal/jobstore"
)

// DefaultBatchSize is the only sizing knob: batch count for a
// (table, operation) pair is ceil(staged_rows / BatchSize).
const DefaultBatchSize = 10_000

// TableSummary is the delete/insert batch counts for one table, part
// of PlanSummary.
type TableSummary struct {
	DeleteBatches int64
	InsertBatches int64
}

// PlanSummary is returned from Plan: the shape of the work a job will
// execute.
type PlanSummary struct {
	JobID        string
	TotalBatches int64
	BatchesByTable map[string]TableSummary
}

// Plan counts staged rows per (table, operation), splits each count
// into ceil(rows/batchSize) batches, and persists the plan and initial
// pending BatchStatus rows. Delete batches are ordered before insert
// batches for the same table; tables follow dataset.TableOrder.
func Plan(ctx context.Context, conn *sql.Conn, jobID string, batchSize int64) (*PlanSummary, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var plans []jobstore.BatchPlan
	var statuses []jobstore.BatchStatusRow
	summary := &PlanSummary{JobID: jobID, BatchesByTable: map[string]TableSummary{}}

	for _, table := range dataset.TableOrder {
		ts := TableSummary{}
		for _, op := range []string{"delete", "insert"} {
			count, err := dataset.CountStaging(ctx, conn, jobID, table, op)
			if err != nil {
				return nil, fmt.Errorf("failed to plan %s/%s: %w", table, op, err)
			}
			batches := ceilDiv(count, batchSize)
			plans = append(plans, jobstore.BatchPlan{Table: table, Operation: op, BatchCount: batches})

			for i := int64(1); i <= batches; i++ {
				lo := (i-1)*batchSize + 1
				hi := i * batchSize
				if hi > count {
					hi = count
				}
				statuses = append(statuses, jobstore.BatchStatusRow{
					Table: table, Operation: op, BatchIndex: i, RowLo: lo, RowHi: hi,
				})
			}

			if op == "delete" {
				ts.DeleteBatches = batches
			} else {
				ts.InsertBatches = batches
			}
			summary.TotalBatches += batches
		}
		summary.BatchesByTable[table] = ts
	}

	if err := jobstore.SavePlan(ctx, conn, jobID, plans, statuses); err != nil {
		return nil, err
	}
	return summary, nil
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
