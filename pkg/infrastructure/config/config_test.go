package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shopfloor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", dir)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "shopfloor.db", cfg.Database.DSN)
	assert.Equal(t, "TRY", cfg.Currency.Reference)
	assert.Equal(t, 24*time.Hour, cfg.Reconcile.MaxSnapshotAge)
	assert.Equal(t, 72*time.Hour, cfg.Compare.MaxRateAge)
	assert.Equal(t, "RFQ", cfg.RFQ.Prefix)
	assert.Equal(t, "*/15 * * * *", cfg.Watch.Schedule)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
  dsn: host=localhost dbname=shop
currency:
  reference: try
  as_of: "2025-03-01"
  rates:
    usd: "34.5"
    EUR: "37.2"
reconcile:
  max_snapshot_age: 6h
`)
	t.Setenv("SHOPFLOOR_RFQ_PREFIX", "TKL")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 6*time.Hour, cfg.Reconcile.MaxSnapshotAge)
	assert.Equal(t, "TKL", cfg.RFQ.Prefix)

	rates, err := cfg.RateTable()
	require.NoError(t, err)
	assert.Equal(t, "TRY", rates.Reference)
	usd, known := rates.Rate("USD")
	assert.True(t, known)
	assert.True(t, usd.Equal(decimal.RequireFromString("34.5")))
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), rates.AsOf)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"driver", "database:\n  driver: oracle\n"},
		{"negative rate", "currency:\n  rates:\n    USD: \"-1\"\n"},
		{"bad rate", "currency:\n  rates:\n    USD: abc\n"},
		{"empty reference", "currency:\n  reference: \"\"\n"},
		{"schedule", "watch:\n  schedule: every now and then\n"},
		{"filter", "watch:\n  filter: urgent\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(viper.New(), writeConfig(t, tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, entities.ErrValidation), "got %v", err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
