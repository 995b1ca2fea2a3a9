package batch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kbo-data/importer/internal/batch"
	"github.com/kbo-data/importer/internal/dataset"
	"github.com/kbo-data/importer/internal/duckdbtest"
	"github.com/kbo-data/importer/internal/jobstore"
)

func TestPlanSplitsIntoCeilBatches(t *testing.T) {
	client := duckdbtest.New(t)
	ctx := context.Background()
	conn, err := client.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	job := jobstore.ImportJob{ID: "job-1", ExtractNumber: 140, ExtractType: "full", SnapshotDate: "2025-10-05"}
	require.NoError(t, jobstore.CreateJob(ctx, conn, job))

	rows := make([]dataset.StagingRow, 25)
	for i := range rows {
		rows[i] = dataset.StagingRow{
			Operation:   "insert",
			RowSequence: int64(i + 1),
			Values:      map[string]string{"enterprise_number": "0100.100.100", "status": "AC"},
		}
	}
	require.NoError(t, dataset.LoadStaging(ctx, conn, job.ID, "enterprises",
		[]string{"enterprise_number", "status", "juridical_situation", "type_of_enterprise", "juridical_form", "juridical_form_cac", "start_date"}, rows))

	summary, err := batch.Plan(ctx, conn, job.ID, 10)
	require.NoError(t, err)
	require.Equal(t, int64(3), summary.BatchesByTable["enterprises"].InsertBatches)
	require.Equal(t, int64(0), summary.BatchesByTable["enterprises"].DeleteBatches)
}

func TestPlanZeroRowsProducesZeroBatches(t *testing.T) {
	client := duckdbtest.New(t)
	ctx := context.Background()
	conn, err := client.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	job := jobstore.ImportJob{ID: "job-1", ExtractNumber: 140, ExtractType: "full", SnapshotDate: "2025-10-05"}
	require.NoError(t, jobstore.CreateJob(ctx, conn, job))

	summary, err := batch.Plan(ctx, conn, job.ID, 10)
	require.NoError(t, err)
	require.Equal(t, int64(0), summary.TotalBatches)
}
