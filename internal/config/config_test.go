package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kbo-data/importer/internal/config"
)

func TestLoadAppliesFlagDefaults(t *testing.T) {
	cfg, err := config.Load(nil, "")
	require.NoError(t, err)
	require.Equal(t, config.DefaultBatchSize, cfg.BatchSize)
	require.Equal(t, "import.duckdb", cfg.DatabasePath)
}

func TestLoadRejectsNonPositiveBatchSize(t *testing.T) {
	_, err := config.Load([]string{"--batch-size=0"}, "")
	require.Error(t, err)
}

func TestLoadReadsExplicitFlags(t *testing.T) {
	cfg, err := config.Load([]string{"--db-path=/tmp/test.duckdb", "--ops-addr=:9191"}, "")
	require.NoError(t, err)
	require.Equal(t, "/tmp/test.duckdb", cfg.DatabasePath)
	require.Equal(t, ":9191", cfg.OpsAddr)
}
