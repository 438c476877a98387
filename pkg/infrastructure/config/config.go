package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// EnvPrefix is prepended to every environment override, e.g.
// SHOPFLOOR_DATABASE_DSN
const EnvPrefix = "SHOPFLOOR"

// Config is the full application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Currency  CurrencyConfig  `mapstructure:"currency"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Compare   CompareConfig   `mapstructure:"compare"`
	RFQ       RFQConfig       `mapstructure:"rfq"`
	Watch     WatchConfig     `mapstructure:"watch"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Debug  bool   `mapstructure:"debug"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// CurrencyConfig holds the exchange-rate table. Rates are kept as strings so
// no precision is lost before they reach decimal.
type CurrencyConfig struct {
	Reference string            `mapstructure:"reference"`
	Rates     map[string]string `mapstructure:"rates"`
	AsOf      string            `mapstructure:"as_of"`
}

type ReconcileConfig struct {
	MaxSnapshotAge time.Duration `mapstructure:"max_snapshot_age"`
}

type CompareConfig struct {
	MaxRateAge time.Duration `mapstructure:"max_rate_age"`
}

type RFQConfig struct {
	Prefix string `mapstructure:"prefix"`
}

type WatchConfig struct {
	Schedule string `mapstructure:"schedule"`
	Filter   string `mapstructure:"filter"`
}

// SetDefaults registers every default on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "shopfloor.db")
	v.SetDefault("database.debug", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("currency.reference", "TRY")
	v.SetDefault("currency.rates", map[string]string{})
	v.SetDefault("currency.as_of", "")
	v.SetDefault("reconcile.max_snapshot_age", "24h")
	v.SetDefault("compare.max_rate_age", "72h")
	v.SetDefault("rfq.prefix", "RFQ")
	v.SetDefault("watch.schedule", "*/15 * * * *")
	v.SetDefault("watch.filter", string(entities.FilterAll))
}

// Load reads shopfloor.yaml (or file when given), applies SHOPFLOOR_*
// environment overrides and validates the result. A missing default config
// file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("shopfloor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.shopfloor")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values the services rely on
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "sqlite3", "postgres", "postgresql":
	default:
		return entities.NewValidationError("database.driver", "unsupported driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return entities.NewValidationError("database.dsn", "dsn cannot be empty")
	}
	if c.Reconcile.MaxSnapshotAge < 0 {
		return entities.NewValidationError("reconcile.max_snapshot_age", "cannot be negative")
	}
	if c.Compare.MaxRateAge < 0 {
		return entities.NewValidationError("compare.max_rate_age", "cannot be negative")
	}
	if strings.TrimSpace(c.RFQ.Prefix) == "" {
		return entities.NewValidationError("rfq.prefix", "prefix cannot be empty")
	}
	if _, err := cron.ParseStandard(c.Watch.Schedule); err != nil {
		return entities.NewValidationError("watch.schedule", "%v", err)
	}
	if _, err := entities.ParseNeedsFilter(c.Watch.Filter); err != nil {
		return err
	}
	_, err := c.RateTable()
	return err
}

// RateTable builds the exchange-rate table from the currency section
func (c *Config) RateTable() (entities.RateTable, error) {
	rates := make(map[string]decimal.Decimal, len(c.Currency.Rates))
	for code, raw := range c.Currency.Rates {
		rate, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return entities.RateTable{}, entities.NewValidationError("currency.rates", "rate for %s is not a number: %q", code, raw)
		}
		rates[code] = rate
	}

	var asOf time.Time
	if s := strings.TrimSpace(c.Currency.AsOf); s != "" {
		t, err := parseTime(s)
		if err != nil {
			return entities.RateTable{}, entities.NewValidationError("currency.as_of", "cannot parse %q", s)
		}
		asOf = t
	}
	return entities.NewRateTable(c.Currency.Reference, rates, asOf)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
