package dataset_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kbo-data/importer/internal/dataset"
	"github.com/kbo-data/importer/internal/duckdbtest"
	"github.com/kbo-data/importer/internal/jobstore"
)

func stagingCols(table string) []string {
	schema := dataset.Tables[table]
	return append(append([]string{}, schema.NaturalKeyCols...), schema.StagingPayloadCols()...)
}

func TestApplyInsertBatchDedupesByKeyKeepingLastRowSequence(t *testing.T) {
	client := duckdbtest.New(t)
	ctx := context.Background()
	conn, err := client.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	job := jobstore.ImportJob{ID: "job-1", ExtractNumber: 140, ExtractType: "full", SnapshotDate: "2025-10-05"}
	require.NoError(t, jobstore.CreateJob(ctx, conn, job))

	rows := []dataset.StagingRow{
		{Operation: "insert", RowSequence: 1, Values: map[string]string{"enterprise_number": "0100.100.100", "status": "AC"}},
		{Operation: "insert", RowSequence: 2, Values: map[string]string{"enterprise_number": "0100.100.100", "status": "ST"}},
	}
	require.NoError(t, dataset.LoadStaging(ctx, conn, job.ID, "enterprises", stagingCols("enterprises"), rows))

	affected, err := dataset.ApplyInsertBatch(ctx, conn, "enterprises", job.ID, 140, "2025-10-05", 1, 2)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	var status string
	require.NoError(t, conn.QueryRowContext(ctx,
		`SELECT status FROM enterprises WHERE enterprise_number = ? AND _is_current = true`,
		"0100.100.100").Scan(&status))
	require.Equal(t, "ST", status)
}

func TestApplyInsertBatchSupersedesExistingCurrentRow(t *testing.T) {
	client := duckdbtest.New(t)
	ctx := context.Background()
	conn, err := client.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	firstJob := jobstore.ImportJob{ID: "job-1", ExtractNumber: 140, ExtractType: "full", SnapshotDate: "2025-10-05"}
	require.NoError(t, jobstore.CreateJob(ctx, conn, firstJob))
	require.NoError(t, dataset.LoadStaging(ctx, conn, firstJob.ID, "enterprises", stagingCols("enterprises"),
		[]dataset.StagingRow{{Operation: "insert", RowSequence: 1, Values: map[string]string{"enterprise_number": "0100.100.100", "status": "AC"}}}))
	_, err = dataset.ApplyInsertBatch(ctx, conn, "enterprises", firstJob.ID, 140, "2025-10-05", 1, 1)
	require.NoError(t, err)

	secondJob := jobstore.ImportJob{ID: "job-2", ExtractNumber: 141, ExtractType: "update", SnapshotDate: "2025-10-12"}
	require.NoError(t, jobstore.CreateJob(ctx, conn, secondJob))
	require.NoError(t, dataset.LoadStaging(ctx, conn, secondJob.ID, "enterprises", stagingCols("enterprises"),
		[]dataset.StagingRow{{Operation: "insert", RowSequence: 1, Values: map[string]string{"enterprise_number": "0100.100.100", "status": "ST"}}}))
	affected, err := dataset.ApplyInsertBatch(ctx, conn, "enterprises", secondJob.ID, 141, "2025-10-12", 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	var currentCount, historicalCount int64
	require.NoError(t, conn.QueryRowContext(ctx,
		`SELECT count(*) FROM enterprises WHERE enterprise_number = ? AND _is_current = true`,
		"0100.100.100").Scan(&currentCount))
	require.Equal(t, int64(1), currentCount)

	require.NoError(t, conn.QueryRowContext(ctx,
		`SELECT count(*) FROM enterprises WHERE enterprise_number = ? AND _is_current = false AND _deleted_at_extract = 141`,
		"0100.100.100").Scan(&historicalCount))
	require.Equal(t, int64(1), historicalCount)
}

func TestApplyDeleteBatchRetiresMatchingCurrentRowAndIsIdempotent(t *testing.T) {
	client := duckdbtest.New(t)
	ctx := context.Background()
	conn, err := client.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	job := jobstore.ImportJob{ID: "job-1", ExtractNumber: 140, ExtractType: "full", SnapshotDate: "2025-10-05"}
	require.NoError(t, jobstore.CreateJob(ctx, conn, job))
	require.NoError(t, dataset.LoadStaging(ctx, conn, job.ID, "enterprises", stagingCols("enterprises"),
		[]dataset.StagingRow{{Operation: "insert", RowSequence: 1, Values: map[string]string{"enterprise_number": "0100.100.100", "status": "AC"}}}))
	_, err = dataset.ApplyInsertBatch(ctx, conn, "enterprises", job.ID, 140, "2025-10-05", 1, 1)
	require.NoError(t, err)

	deleteJob := jobstore.ImportJob{ID: "job-2", ExtractNumber: 141, ExtractType: "update", SnapshotDate: "2025-10-12"}
	require.NoError(t, jobstore.CreateJob(ctx, conn, deleteJob))
	require.NoError(t, dataset.LoadStaging(ctx, conn, deleteJob.ID, "enterprises", stagingCols("enterprises"),
		[]dataset.StagingRow{{Operation: "delete", RowSequence: 1, Values: map[string]string{"enterprise_number": "0100.100.100"}}}))

	affected, err := dataset.ApplyDeleteBatch(ctx, conn, "enterprises", deleteJob.ID, 141, 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	var currentCount int64
	require.NoError(t, conn.QueryRowContext(ctx,
		`SELECT count(*) FROM enterprises WHERE enterprise_number = ? AND _is_current = true`,
		"0100.100.100").Scan(&currentCount))
	require.Equal(t, int64(0), currentCount)

	again, err := dataset.ApplyDeleteBatch(ctx, conn, "enterprises", deleteJob.ID, 141, 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(0), again)
}
