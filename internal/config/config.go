package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	StorTrack  StorTrackConfig  `yaml:"stortrack" mapstructure:"stortrack"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Backfill   BackfillConfig   `yaml:"backfill" mapstructure:"backfill"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StorTrackConfig holds the remote rate service account and limits.
type StorTrackConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	Username          string  `yaml:"username" mapstructure:"username"`
	Password          string  `yaml:"password" mapstructure:"password"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	HourlyLimit       int     `yaml:"hourly_limit" mapstructure:"hourly_limit"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// StoreConfig configures the local rate cache.
type StoreConfig struct {
	Driver              string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL         string `yaml:"database_url" mapstructure:"database_url"`
	RatesTable          string `yaml:"rates_table" mapstructure:"rates_table"`
	ArchiveTablePattern string `yaml:"archive_table_pattern" mapstructure:"archive_table_pattern"`
	InfoTable           string `yaml:"info_table" mapstructure:"info_table"`
}

// SalesforceConfig holds Salesforce JWT auth settings and site matching
// thresholds.
type SalesforceConfig struct {
	ClientID          string  `yaml:"client_id" mapstructure:"client_id"`
	Username          string  `yaml:"username" mapstructure:"username"`
	KeyPath           string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL          string  `yaml:"login_url" mapstructure:"login_url"`
	MinScore          float64 `yaml:"min_score" mapstructure:"min_score"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs  int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// Enabled reports whether enough is configured to connect.
func (s SalesforceConfig) Enabled() bool {
	return s.ClientID != "" && s.Username != "" && s.KeyPath != ""
}

// PricingConfig holds remote data pricing.
type PricingConfig struct {
	StorTrack StorTrackPricing `yaml:"stortrack" mapstructure:"stortrack"`
}

// StorTrackPricing is the price of one entity-year of history.
type StorTrackPricing struct {
	YearPrice float64 `yaml:"year_price" mapstructure:"year_price"`
}

// BackfillConfig configures remote backfill.
type BackfillConfig struct {
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
	MaxCost     float64 `yaml:"max_cost" mapstructure:"max_cost"`
}

// AnalysisConfig tunes filtering and rollup.
type AnalysisConfig struct {
	SpaceType        string   `yaml:"space_type" mapstructure:"space_type"`
	AllowedSizes     []string `yaml:"allowed_sizes" mapstructure:"allowed_sizes"`
	ExcludeBeforeT12 bool     `yaml:"exclude_before_t12" mapstructure:"exclude_before_t12"`
	Radius           float64  `yaml:"radius" mapstructure:"radius"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RCA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("stortrack.base_url", "https://api.stortrack.com/")
	v.SetDefault("stortrack.timeout_secs", 60)
	v.SetDefault("stortrack.hourly_limit", 3000)
	v.SetDefault("stortrack.max_retries", 3)
	v.SetDefault("stortrack.requests_per_second", 0)
	v.SetDefault("stortrack.username", "")
	v.SetDefault("stortrack.password", "")
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.rates_table", "rates")
	v.SetDefault("store.archive_table_pattern", "rates_%d")
	v.SetDefault("store.info_table", "sites")
	v.SetDefault("salesforce.client_id", "")
	v.SetDefault("salesforce.username", "")
	v.SetDefault("salesforce.key_path", "")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.min_score", 0.6)
	v.SetDefault("salesforce.requests_per_second", 5)
	v.SetDefault("salesforce.max_attempts", 3)
	v.SetDefault("salesforce.initial_backoff_ms", 500)
	v.SetDefault("salesforce.max_backoff_ms", 10000)
	v.SetDefault("pricing.stortrack.year_price", 12.50)
	v.SetDefault("backfill.concurrency", 1)
	v.SetDefault("backfill.max_cost", 0)
	v.SetDefault("analysis.space_type", "Unit")
	v.SetDefault("analysis.allowed_sizes", []string{"5x5", "5x10", "10x5", "10x10", "10x15", "10x20", "10x25", "10x30"})
	v.SetDefault("analysis.exclude_before_t12", false)
	v.SetDefault("analysis.radius", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of search,
// gaps or analyze.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "search":
		errs = append(errs, c.requireStorTrack()...)
	case "gaps":
		errs = append(errs, c.requireStore()...)
	case "analyze":
		errs = append(errs, c.requireStore()...)
		if c.Backfill.Concurrency < 1 || c.Backfill.Concurrency > 10 {
			errs = append(errs, "backfill.concurrency must be between 1 and 10")
		}
		if c.Backfill.MaxCost < 0 {
			errs = append(errs, "backfill.max_cost must be >= 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.StorTrack.HourlyLimit <= 0 {
		errs = append(errs, "stortrack.hourly_limit must be > 0")
	}
	if c.Salesforce.MinScore < 0 || c.Salesforce.MinScore > 1 {
		errs = append(errs, "salesforce.min_score must be between 0 and 1")
	}
	if c.Pricing.StorTrack.YearPrice < 0 {
		errs = append(errs, "pricing.stortrack.year_price must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) requireStorTrack() []string {
	var errs []string
	if c.StorTrack.Username == "" {
		errs = append(errs, "stortrack.username is required")
	}
	if c.StorTrack.Password == "" {
		errs = append(errs, "stortrack.password is required")
	}
	return errs
}

func (c *Config) requireStore() []string {
	switch c.Store.Driver {
	case "postgres", "sqlite", "mysql":
	default:
		return []string{"store.driver must be one of postgres, sqlite, mysql"}
	}
	if c.Store.DatabaseURL == "" {
		return []string{"store.database_url is required"}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
