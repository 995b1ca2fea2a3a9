package batch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kbo-data/importer/internal/apperrors"
	"github.com/kbo-data/importer/internal/batch"
	"github.com/kbo-data/importer/internal/dataset"
	"github.com/kbo-data/importer/internal/duckdbtest"
	"github.com/kbo-data/importer/internal/jobstore"
)

func TestProcessBatchInsertsAndIsIdempotent(t *testing.T) {
	client := duckdbtest.New(t)
	ctx := context.Background()
	conn, err := client.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	job := jobstore.ImportJob{ID: "job-1", ExtractNumber: 140, ExtractType: "full", SnapshotDate: "2025-10-05"}
	require.NoError(t, jobstore.CreateJob(ctx, conn, job))

	rows := []dataset.StagingRow{
		{Operation: "insert", RowSequence: 1, Values: map[string]string{"enterprise_number": "0100.100.100", "status": "AC"}},
	}
	require.NoError(t, dataset.LoadStaging(ctx, conn, job.ID, "enterprises",
		[]string{"enterprise_number", "status", "juridical_situation", "type_of_enterprise", "juridical_form", "juridical_form_cac", "start_date"}, rows))

	_, err = batch.Plan(ctx, conn, job.ID, 10_000)
	require.NoError(t, err)

	result, err := batch.ProcessBatch(ctx, conn, job.ID, "enterprises", "insert", 1, 140, "2025-10-05")
	require.NoError(t, err)
	require.Equal(t, int64(1), result.RowsAffected)

	var count int64
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT count(*) FROM enterprises WHERE _is_current = true`).Scan(&count))
	require.Equal(t, int64(1), count)

	again, err := batch.ProcessBatch(ctx, conn, job.ID, "enterprises", "insert", 1, 140, "2025-10-05")
	require.NoError(t, err)
	require.Equal(t, int64(1), again.RowsAffected)

	require.NoError(t, conn.QueryRowContext(ctx, `SELECT count(*) FROM enterprises WHERE _is_current = true`).Scan(&count))
	require.Equal(t, int64(1), count)
}

func TestProcessBatchUnknownBatchFails(t *testing.T) {
	client := duckdbtest.New(t)
	ctx := context.Background()
	conn, err := client.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	job := jobstore.ImportJob{ID: "job-1", ExtractNumber: 140, ExtractType: "full", SnapshotDate: "2025-10-05"}
	require.NoError(t, jobstore.CreateJob(ctx, conn, job))

	_, err = batch.ProcessBatch(ctx, conn, job.ID, "enterprises", "insert", 1, 140, "2025-10-05")
	require.Error(t, err)
	require.False(t, errors.Is(err, apperrors.ErrBatchBusy))
}
