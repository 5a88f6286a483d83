// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Checkout   CheckoutConfig   `mapstructure:"checkout"`
	Payments   PaymentsConfig   `mapstructure:"payments"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Reports    ReportsConfig    `mapstructure:"reports"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Log        LogConfig        `mapstructure:"log"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// LedgerConfig tunes the wallet mutation primitive.
type LedgerConfig struct {
	// LockTimeout bounds the wait for a user's exclusive section.
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
	// MaxRetries bounds re-runs of a database transaction that hit a
	// serialization failure or deadlock.
	MaxRetries int `mapstructure:"max_retries"`
}

// CheckoutConfig holds bet placement limits.
type CheckoutConfig struct {
	MaxItems int `mapstructure:"max_items"`
	// EnforcePriceTable rejects carts whose unit price or unit win differ
	// from the lottery's price table.
	EnforcePriceTable bool `mapstructure:"enforce_price_table"`
}

// PaymentsConfig holds deposit/withdrawal request limits.
type PaymentsConfig struct {
	MinDeposit    string `mapstructure:"min_deposit"`
	MinWithdrawal string `mapstructure:"min_withdrawal"`
}

// SettlementConfig holds settlement worker configuration.
type SettlementConfig struct {
	// ResumeInterval is how often interrupted settlements are swept.
	// Zero disables the periodic sweep; the start-up sweep always runs.
	ResumeInterval time.Duration `mapstructure:"resume_interval"`
}

// ReportsConfig holds report configuration.
type ReportsConfig struct {
	// Timezone is the IANA zone whose calendar days the daily reports use.
	Timezone string `mapstructure:"timezone"`
}

// Location loads the configured timezone.
func (r *ReportsConfig) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid reports.timezone %q: %w", r.Timezone, err)
	}
	return loc, nil
}

// CacheConfig holds the Redis report cache configuration.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// KafkaConfig holds ledger event publishing configuration.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// MetricsConfig holds the metrics/health listener configuration.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// AdminConfig lists the operators allowed to call the admin write endpoints.
type AdminConfig struct {
	IDs []string `mapstructure:"ids"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode,
	)
}

// AdminIDs parses the configured admin user IDs.
func (a *AdminConfig) AdminIDs() ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(a.IDs))
	for _, raw := range a.IDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid admin.ids entry %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID uuid.UUID) bool {
	ids, err := c.Admin.AdminIDs()
	if err != nil {
		return false
	}
	for _, id := range ids {
		if id == userID {
			return true
		}
	}
	return false
}

// Limits returns the parsed minimum deposit and withdrawal amounts.
func (p *PaymentsConfig) Limits() (minDeposit, minWithdrawal decimal.Decimal, err error) {
	minDeposit, err = decimal.NewFromString(p.MinDeposit)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid payments.min_deposit %q: %w", p.MinDeposit, err)
	}
	minWithdrawal, err = decimal.NewFromString(p.MinWithdrawal)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid payments.min_withdrawal %q: %w", p.MinWithdrawal, err)
	}
	return minDeposit, minWithdrawal, nil
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in configPath, the working directory and ./config.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. DATABASE_HOST, LEDGER_LOCK_TIMEOUT, KAFKA_ENABLED
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	if c.Ledger.MaxRetries < 1 {
		return fmt.Errorf("ledger.max_retries must be at least 1, got %d", c.Ledger.MaxRetries)
	}
	if c.Checkout.MaxItems < 1 {
		return fmt.Errorf("checkout.max_items must be at least 1, got %d", c.Checkout.MaxItems)
	}
	if _, _, err := c.Payments.Limits(); err != nil {
		return err
	}
	if _, err := c.Reports.Location(); err != nil {
		return err
	}
	if _, err := c.Admin.AdminIDs(); err != nil {
		return err
	}
	if c.Cache.Enabled && (c.Cache.Addr == "" || c.Cache.TTL <= 0) {
		return fmt.Errorf("cache.addr and a positive cache.ttl are required when cache.enabled is set")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic are required when kafka.enabled is set")
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "ledger")
	v.SetDefault("database.name", "ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("ledger.lock_timeout", "5s")
	v.SetDefault("ledger.max_retries", 5)

	v.SetDefault("checkout.max_items", 50)
	v.SetDefault("checkout.enforce_price_table", false)

	v.SetDefault("payments.min_deposit", "100")
	v.SetDefault("payments.min_withdrawal", "100")

	v.SetDefault("settlement.resume_interval", "1m")

	v.SetDefault("reports.timezone", "UTC")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "30s")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "ledger.events")
	v.SetDefault("kafka.write_timeout", "5s")

	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("admin.ids", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
}
