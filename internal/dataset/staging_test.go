package dataset_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kbo-data/importer/internal/dataset"
	"github.com/kbo-data/importer/internal/duckdbtest"
	"github.com/kbo-data/importer/internal/jobstore"
)

func TestLoadStagingCountAndClear(t *testing.T) {
	client := duckdbtest.New(t)
	ctx := context.Background()
	conn, err := client.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	job := jobstore.ImportJob{ID: "job-1", ExtractNumber: 140, ExtractType: "full", SnapshotDate: "2025-10-05"}
	require.NoError(t, jobstore.CreateJob(ctx, conn, job))

	rows := []dataset.StagingRow{
		{Operation: "insert", RowSequence: 1, Values: map[string]string{"id": "d1", "entity_number": "0100.100.100", "entity_type": "enterprise", "language": "nl", "type_of_denomination": "001", "denomination": "ACME"}},
		{Operation: "insert", RowSequence: 2, Values: map[string]string{"id": "d2", "entity_number": "0100.100.100", "entity_type": "enterprise", "language": "fr", "type_of_denomination": "001", "denomination": "ACME SA"}},
	}
	require.NoError(t, dataset.LoadStaging(ctx, conn, job.ID, "denominations", stagingCols("denominations"), rows))

	count, err := dataset.CountStaging(ctx, conn, job.ID, "denominations", "insert")
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	require.NoError(t, dataset.ClearStaging(ctx, conn, job.ID))

	count, err = dataset.CountStaging(ctx, conn, job.ID, "denominations", "insert")
	require.NoError(t, err)
	require.Equal(t, int64(0), count)
}

func TestLoadStagingNoopOnEmptyRows(t *testing.T) {
	client := duckdbtest.New(t)
	ctx := context.Background()
	conn, err := client.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, dataset.LoadStaging(ctx, conn, "job-1", "enterprises", stagingCols("enterprises"), nil))
}
