package opsserver_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kbo-data/importer/internal/duckdbtest"
	"github.com/kbo-data/importer/internal/jobstore"
	"github.com/kbo-data/importer/internal/opsserver"
)

func TestHealthzAlwaysOK(t *testing.T) {
	db := duckdbtest.New(t)
	srv := opsserver.New("127.0.0.1:0", db, duckdbtest.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReportsDatabaseReachable(t *testing.T) {
	db := duckdbtest.New(t)
	srv := opsserver.New("127.0.0.1:0", db, duckdbtest.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestJobProgressNotFoundForUnknownJob(t *testing.T) {
	db := duckdbtest.New(t)
	srv := opsserver.New("127.0.0.1:0", db, duckdbtest.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/jobs/does-not-exist/progress", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobProgressReturnsSnapshotForKnownJob(t *testing.T) {
	db := duckdbtest.New(t)
	ctx := t.Context()
	conn, err := db.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, jobstore.CreateJob(ctx, conn, jobstore.ImportJob{
		ID: "job-1", ExtractNumber: 1, ExtractType: "full",
		SnapshotDate: "2025-01-01", WorkerType: "test",
	}))

	srv := opsserver.New("127.0.0.1:0", db, duckdbtest.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/jobs/job-1/progress", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
