package jobstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kbo-data/importer/internal/apperrors"
	"github.com/kbo-data/importer/internal/duckdbtest"
	"github.com/kbo-data/importer/internal/jobstore"
)

func TestCreateJobRejectsDuplicateExtract(t *testing.T) {
	client := duckdbtest.New(t)
	ctx := context.Background()
	conn, err := client.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	job := jobstore.ImportJob{ID: "job-1", ExtractNumber: 140, ExtractType: "full", SnapshotDate: "2025-10-05"}
	require.NoError(t, jobstore.CreateJob(ctx, conn, job))

	dup := jobstore.ImportJob{ID: "job-2", ExtractNumber: 140, ExtractType: "full", SnapshotDate: "2025-10-05"}
	err = jobstore.CreateJob(ctx, conn, dup)
	require.True(t, errors.Is(err, apperrors.ErrDuplicateJob))
}

func TestTryStartBatchLocksAgainstConcurrentRunner(t *testing.T) {
	client := duckdbtest.New(t)
	ctx := context.Background()
	conn, err := client.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	job := jobstore.ImportJob{ID: "job-1", ExtractNumber: 140, ExtractType: "full", SnapshotDate: "2025-10-05"}
	require.NoError(t, jobstore.CreateJob(ctx, conn, job))
	require.NoError(t, jobstore.SavePlan(ctx, conn, job.ID,
		[]jobstore.BatchPlan{{Table: "enterprises", Operation: "insert", BatchCount: 1}},
		[]jobstore.BatchStatusRow{{Table: "enterprises", Operation: "insert", BatchIndex: 1, RowLo: 1, RowHi: 100}},
	))

	done, err := jobstore.TryStartBatch(ctx, conn, job.ID, "enterprises", "insert", 1)
	require.NoError(t, err)
	require.False(t, done)

	_, err = jobstore.TryStartBatch(ctx, conn, job.ID, "enterprises", "insert", 1)
	require.True(t, errors.Is(err, apperrors.ErrBatchBusy))

	require.NoError(t, jobstore.CompleteBatch(ctx, conn, job.ID, "enterprises", "insert", 1, 100))
	done, err = jobstore.TryStartBatch(ctx, conn, job.ID, "enterprises", "insert", 1)
	require.NoError(t, err)
	require.True(t, done)
}

func TestSweepStaleLocksResetsLongRunningBatch(t *testing.T) {
	client := duckdbtest.New(t)
	ctx := context.Background()
	conn, err := client.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	job := jobstore.ImportJob{ID: "job-1", ExtractNumber: 140, ExtractType: "full", SnapshotDate: "2025-10-05"}
	require.NoError(t, jobstore.CreateJob(ctx, conn, job))
	require.NoError(t, jobstore.SavePlan(ctx, conn, job.ID,
		[]jobstore.BatchPlan{{Table: "enterprises", Operation: "insert", BatchCount: 1}},
		[]jobstore.BatchStatusRow{{Table: "enterprises", Operation: "insert", BatchIndex: 1, RowLo: 1, RowHi: 100}},
	))
	_, err = jobstore.TryStartBatch(ctx, conn, job.ID, "enterprises", "insert", 1)
	require.NoError(t, err)

	_, err = conn.ExecContext(ctx, `UPDATE batch_status SET started_at = now() - INTERVAL 20 MINUTE WHERE job_id = ?`, job.ID)
	require.NoError(t, err)

	reclaimed, err := jobstore.SweepStaleLocks(ctx, conn, 10*time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), reclaimed["enterprises"])

	done, err := jobstore.TryStartBatch(ctx, conn, job.ID, "enterprises", "insert", 1)
	require.NoError(t, err)
	require.False(t, done)
}
