package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Log           LogConfig           `yaml:"log"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	Rates         RatesConfig         `yaml:"rates"`
	Fees          FeesConfig          `yaml:"fees"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
}

// ServerConfig contains the gRPC health and metrics listener settings
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Type               string `yaml:"type"` // "postgres" or "memory"
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	Database           string `yaml:"database"`
	SSLMode            string `yaml:"ssl_mode"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMin int    `yaml:"conn_max_lifetime_minutes"`
	AutoMigrate        bool   `yaml:"auto_migrate"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// LedgerConfig holds the limits and thresholds applied to money movement.
// All amounts are seconds.
type LedgerConfig struct {
	MaxTransactionAmount  int64   `yaml:"max_transaction_amount"`
	FraudRiskThreshold    float64 `yaml:"fraud_risk_threshold"`
	LowBalanceThreshold   int64   `yaml:"low_balance_threshold"`
	LowBalanceCooldownMin int     `yaml:"low_balance_cooldown_minutes"`
	SecondsPerDisplayHour int64   `yaml:"seconds_per_display_hour"`
	ReferenceCodeAttempts int     `yaml:"reference_code_attempts"`
}

// RatesConfig holds interest rate inputs.
type RatesConfig struct {
	LoanBaseRate     float64 `yaml:"loan_base_rate"`
	MarketAdjustment float64 `yaml:"market_adjustment"`
}

// FeesConfig holds the post-processing percentages.
type FeesConfig struct {
	TransferTaxPercent  float64 `yaml:"transfer_tax_percent"`
	DepositBonusPercent float64 `yaml:"deposit_bonus_percent"`
	SavingsBonusPercent float64 `yaml:"savings_bonus_percent"`
}

// NotificationsConfig selects where relayed notifications go.
type NotificationsConfig struct {
	Sink         string   `yaml:"sink"` // "log" or "kafka"
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
	RelayBatch   int      `yaml:"relay_batch"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	SweepOverdueLoans       string `yaml:"sweep_overdue_loans"`
	SweepMaturedInvestments string `yaml:"sweep_matured_investments"`
	RelayNotifications      string `yaml:"relay_notifications"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies environment overrides and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_TYPE"); val != "" {
		c.Database.Type = val
	}
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}
	if val := os.Getenv("METRICS_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.MetricsPort)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Ledger
	if val := os.Getenv("MAX_TRANSACTION_AMOUNT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Ledger.MaxTransactionAmount)
	}
	if val := os.Getenv("FRAUD_RISK_THRESHOLD"); val != "" {
		fmt.Sscanf(val, "%g", &c.Ledger.FraudRiskThreshold)
	}

	// Notifications
	if val := os.Getenv("KAFKA_BROKERS"); val != "" {
		c.Notifications.KafkaBrokers = strings.Split(val, ",")
	}
	if val := os.Getenv("KAFKA_TOPIC"); val != "" {
		c.Notifications.KafkaTopic = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}
	if c.Server.Port == 0 {
		c.Server.Port = 50051
	}
	if c.Server.MetricsPort == 0 {
		c.Server.MetricsPort = 9090
	}

	switch c.Database.Type {
	case "":
		c.Database.Type = "postgres"
		fallthrough
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database type: %q", c.Database.Type)
	}

	// Ledger defaults
	if c.Ledger.MaxTransactionAmount == 0 {
		c.Ledger.MaxTransactionAmount = 10000
	}
	if c.Ledger.FraudRiskThreshold == 0 {
		c.Ledger.FraudRiskThreshold = 0.7
	}
	if c.Ledger.FraudRiskThreshold < 0 {
		return fmt.Errorf("fraud risk threshold must not be negative")
	}
	if c.Ledger.LowBalanceThreshold == 0 {
		c.Ledger.LowBalanceThreshold = 10800 // 3 hours
	}
	if c.Ledger.LowBalanceCooldownMin == 0 {
		c.Ledger.LowBalanceCooldownMin = 60
	}
	if c.Ledger.SecondsPerDisplayHour == 0 {
		c.Ledger.SecondsPerDisplayHour = 3600
	}
	if c.Ledger.ReferenceCodeAttempts == 0 {
		c.Ledger.ReferenceCodeAttempts = 5
	}

	// Rate defaults
	if c.Rates.LoanBaseRate == 0 {
		c.Rates.LoanBaseRate = 0.05
	}

	// Fee defaults
	if c.Fees.TransferTaxPercent == 0 {
		c.Fees.TransferTaxPercent = 2
	}
	if c.Fees.DepositBonusPercent == 0 {
		c.Fees.DepositBonusPercent = 5
	}
	if c.Fees.SavingsBonusPercent == 0 {
		c.Fees.SavingsBonusPercent = 10
	}

	// Notification defaults
	switch c.Notifications.Sink {
	case "":
		c.Notifications.Sink = "log"
	case "log":
	case "kafka":
		if len(c.Notifications.KafkaBrokers) == 0 {
			return fmt.Errorf("kafka brokers are required for the kafka notification sink")
		}
	default:
		return fmt.Errorf("unknown notification sink: %q", c.Notifications.Sink)
	}
	if c.Notifications.KafkaTopic == "" {
		c.Notifications.KafkaTopic = "chronobank.notifications"
	}
	if c.Notifications.RelayBatch == 0 {
		c.Notifications.RelayBatch = 100
	}

	// Scheduler defaults
	if c.Scheduler.SweepOverdueLoans == "" {
		c.Scheduler.SweepOverdueLoans = "0 0 * * * *" // hourly
	}
	if c.Scheduler.SweepMaturedInvestments == "" {
		c.Scheduler.SweepMaturedInvestments = "0 5 * * * *" // hourly, offset from the loan sweep
	}
	if c.Scheduler.RelayNotifications == "" {
		c.Scheduler.RelayNotifications = "*/30 * * * * *"
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the gRPC server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetMetricsAddress returns the metrics HTTP listener address
func (c *Config) GetMetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.MetricsPort)
}

func (c *Config) ConnMaxLifetime() time.Duration {
	return time.Duration(c.Database.ConnMaxLifetimeMin) * time.Minute
}

func (c *Config) LowBalanceCooldown() time.Duration {
	return time.Duration(c.Ledger.LowBalanceCooldownMin) * time.Minute
}

// RiskThreshold returns the fraud threshold as an exact decimal.
func (c *Config) RiskThreshold() decimal.Decimal {
	return decimal.NewFromFloat(c.Ledger.FraudRiskThreshold)
}

// Percent converts a configured percentage into a fraction, e.g. 2 -> 0.02.
func Percent(p float64) decimal.Decimal {
	return decimal.NewFromFloat(p).Div(decimal.NewFromInt(100))
}
