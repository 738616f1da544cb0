package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "rates", cfg.Store.RatesTable)
	assert.Equal(t, "rates_%d", cfg.Store.ArchiveTablePattern)
	assert.Equal(t, "sites", cfg.Store.InfoTable)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "https://api.stortrack.com/", cfg.StorTrack.BaseURL)
	assert.Equal(t, 60, cfg.StorTrack.TimeoutSecs)
	assert.Equal(t, 3000, cfg.StorTrack.HourlyLimit)
	assert.Equal(t, 3, cfg.StorTrack.MaxRetries)
	assert.Equal(t, "https://login.salesforce.com", cfg.Salesforce.LoginURL)
	assert.InDelta(t, 0.6, cfg.Salesforce.MinScore, 0.001)
	assert.Equal(t, 3, cfg.Salesforce.MaxAttempts)
	assert.Equal(t, 500, cfg.Salesforce.InitialBackoffMs)
	assert.InDelta(t, 12.50, cfg.Pricing.StorTrack.YearPrice, 0.001)
	assert.Equal(t, 1, cfg.Backfill.Concurrency)
	assert.Equal(t, "Unit", cfg.Analysis.SpaceType)
	assert.Contains(t, cfg.Analysis.AllowedSizes, "10x10")
	assert.False(t, cfg.Analysis.ExcludeBeforeT12)
	assert.InDelta(t, 5.0, cfg.Analysis.Radius, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: cache.db
log:
  level: debug
  format: console
backfill:
  concurrency: 4
analysis:
  allowed_sizes: ["10x10", "10x20"]
  exclude_before_t12: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "cache.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Backfill.Concurrency)
	assert.Equal(t, []string{"10x10", "10x20"}, cfg.Analysis.AllowedSizes)
	assert.True(t, cfg.Analysis.ExcludeBeforeT12)
	// Defaults still apply for unset values
	assert.Equal(t, 3000, cfg.StorTrack.HourlyLimit)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("RCA_STORE_DRIVER", "postgres")
	t.Setenv("RCA_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("RCA_STORTRACK_USERNAME", "analyst")
	t.Setenv("RCA_STORTRACK_HOURLY_LIMIT", "40")
	t.Setenv("RCA_SALESFORCE_CLIENT_ID", "client")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "analyst", cfg.StorTrack.Username)
	assert.Equal(t, 40, cfg.StorTrack.HourlyLimit)
	assert.Equal(t, "client", cfg.Salesforce.ClientID)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.StorTrack.HourlyLimit = 100
	cfg.Salesforce.MinScore = 0.6
	cfg.Pricing.StorTrack.YearPrice = 12.5
	cfg.Backfill.Concurrency = 1
	return cfg
}

func TestValidateSearch(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("search")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stortrack.username is required")
	assert.Contains(t, err.Error(), "stortrack.password is required")

	cfg.StorTrack.Username = "u"
	cfg.StorTrack.Password = "p"
	assert.NoError(t, cfg.Validate("search"))
}

func TestValidateGaps(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("gaps")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/rates"
	assert.NoError(t, cfg.Validate("gaps"))

	cfg.Store.Driver = "oracle"
	err = cfg.Validate("gaps")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be one of")
}

func TestValidateAnalyze_Bounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = "postgres://localhost/rates"
	require.NoError(t, cfg.Validate("analyze"))

	cfg.Backfill.Concurrency = 0
	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backfill.concurrency must be between 1 and 10")

	cfg.Backfill.Concurrency = 11
	assert.Error(t, cfg.Validate("analyze"))

	cfg.Backfill.Concurrency = 10
	cfg.Backfill.MaxCost = -1
	err = cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backfill.max_cost")
}

func TestValidateCommonFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = "x"
	cfg.StorTrack.HourlyLimit = 0
	cfg.Salesforce.MinScore = 1.5
	cfg.Pricing.StorTrack.YearPrice = -1

	err := cfg.Validate("gaps")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stortrack.hourly_limit must be > 0")
	assert.Contains(t, err.Error(), "salesforce.min_score must be between 0 and 1")
	assert.Contains(t, err.Error(), "pricing.stortrack.year_price")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestSalesforceEnabled(t *testing.T) {
	assert.False(t, SalesforceConfig{}.Enabled())
	assert.True(t, SalesforceConfig{ClientID: "c", Username: "u", KeyPath: "k.pem"}.Enabled())
}
