package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Ledger    LedgerConfig    `mapstructure:",squash"`
	SMTP      SMTPConfig      `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"DATABASE_DRIVER"`
	URL             string        `mapstructure:"DATABASE_URL"`
	Host            string        `mapstructure:"DATABASE_HOST"`
	Port            string        `mapstructure:"DATABASE_PORT"`
	Name            string        `mapstructure:"DATABASE_NAME"`
	User            string        `mapstructure:"DATABASE_USER"`
	Password        string        `mapstructure:"DATABASE_PASSWORD"`
	SSLMode         string        `mapstructure:"DATABASE_SSLMODE"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `mapstructure:"DATABASE_AUTO_MIGRATE"`
}

type RedisConfig struct {
	URL      string `mapstructure:"REDIS_URL"`
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type SchedulerConfig struct {
	FineAssessmentSpec string `mapstructure:"SCHEDULER_FINE_ASSESSMENT_SPEC"`
	ReminderSpec       string `mapstructure:"SCHEDULER_REMINDER_SPEC"`
	Timezone           string `mapstructure:"SCHEDULER_TIMEZONE"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

// LedgerConfig carries the knobs of the payment processor
type LedgerConfig struct {
	DuplicateWindow time.Duration `mapstructure:"LEDGER_DUPLICATE_WINDOW"`
	TxTimeout       time.Duration `mapstructure:"LEDGER_TX_TIMEOUT"`
	TxMaxRetries    int           `mapstructure:"LEDGER_TX_MAX_RETRIES"`
	NotifyTimeout   time.Duration `mapstructure:"LEDGER_NOTIFY_TIMEOUT"`
	JobTTL          time.Duration `mapstructure:"LEDGER_JOB_TTL"`
	CatalogCacheTTL time.Duration `mapstructure:"LEDGER_CATALOG_CACHE_TTL"`
}

type SMTPConfig struct {
	Host        string `mapstructure:"SMTP_HOST"`
	Port        string `mapstructure:"SMTP_PORT"`
	Username    string `mapstructure:"SMTP_USERNAME"`
	Password    string `mapstructure:"SMTP_PASSWORD"`
	SenderEmail string `mapstructure:"SMTP_SENDER_EMAIL"`
}

type HealthConfig struct {
	Timeout time.Duration `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

var defaults = map[string]interface{}{
	"SERVER_PORT":                    "8080",
	"SERVER_HOST":                    "0.0.0.0",
	"ENV":                            "development",
	"SERVER_READ_TIMEOUT":            "15s",
	"SERVER_WRITE_TIMEOUT":           "15s",
	"DATABASE_DRIVER":                "postgres",
	"DATABASE_URL":                   "",
	"DATABASE_HOST":                  "localhost",
	"DATABASE_PORT":                  "5432",
	"DATABASE_NAME":                  "fee_ledger",
	"DATABASE_USER":                  "postgres",
	"DATABASE_PASSWORD":              "",
	"DATABASE_SSLMODE":               "disable",
	"DATABASE_MAX_OPEN_CONNS":        25,
	"DATABASE_MAX_IDLE_CONNS":        5,
	"DATABASE_CONN_MAX_LIFETIME":     "30m",
	"DATABASE_AUTO_MIGRATE":          false,
	"REDIS_URL":                      "",
	"REDIS_HOST":                     "localhost",
	"REDIS_PORT":                     "6379",
	"REDIS_PASSWORD":                 "",
	"REDIS_DB":                       0,
	"SCHEDULER_FINE_ASSESSMENT_SPEC": "0 5 0 * * *",
	"SCHEDULER_REMINDER_SPEC":        "0 0 9 * * MON",
	"SCHEDULER_TIMEZONE":             "UTC",
	"LOG_LEVEL":                      "info",
	"LOG_FORMAT":                     "json",
	"LEDGER_DUPLICATE_WINDOW":        "10s",
	"LEDGER_TX_TIMEOUT":              "10s",
	"LEDGER_TX_MAX_RETRIES":          3,
	"LEDGER_NOTIFY_TIMEOUT":          "30s",
	"LEDGER_JOB_TTL":                 "72h",
	"LEDGER_CATALOG_CACHE_TTL":       "5m",
	"SMTP_HOST":                      "",
	"SMTP_PORT":                      "587",
	"SMTP_USERNAME":                  "",
	"SMTP_PASSWORD":                  "",
	"SMTP_SENDER_EMAIL":              "",
	"HEALTH_CHECK_TIMEOUT":           "5s",
}

// Load reads configuration from environment variables and an optional .env file
// in the given directories (the working directory and ./deployments when none given).
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Read from environment variables
	v.AutomaticEnv()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	if len(paths) == 0 {
		paths = []string{".", "./deployments"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Don't fail if .env file doesn't exist
	_ = v.ReadInConfig()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite3, got %q", c.Database.Driver)
	}

	if c.Database.Driver == "sqlite3" && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for sqlite3")
	}

	if c.Ledger.DuplicateWindow <= 0 {
		return fmt.Errorf("LEDGER_DUPLICATE_WINDOW must be greater than 0")
	}

	if c.Ledger.TxTimeout <= 0 {
		return fmt.Errorf("LEDGER_TX_TIMEOUT must be greater than 0")
	}

	if c.Ledger.TxMaxRetries <= 0 {
		return fmt.Errorf("LEDGER_TX_MAX_RETRIES must be greater than 0")
	}

	if c.Ledger.JobTTL <= 0 {
		return fmt.Errorf("LEDGER_JOB_TTL must be greater than 0")
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.Scheduler.FineAssessmentSpec); err != nil {
		return fmt.Errorf("SCHEDULER_FINE_ASSESSMENT_SPEC must be a valid cron spec: %w", err)
	}
	if _, err := parser.Parse(c.Scheduler.ReminderSpec); err != nil {
		return fmt.Errorf("SCHEDULER_REMINDER_SPEC must be a valid cron spec: %w", err)
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid IANA zone: %w", err)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text")
	}

	return nil
}

// DSN builds the database connection string. DATABASE_URL wins when set.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// RedisAddr returns host:port for the redis client
func (r RedisConfig) RedisAddr() string {
	return r.Host + ":" + r.Port
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// SMTPEnabled reports whether e-mail notifications can be sent
func (c *Config) SMTPEnabled() bool {
	return c.SMTP.Host != "" && c.SMTP.SenderEmail != ""
}

// SchedulerLocation returns the scheduler timezone
func (c *Config) SchedulerLocation() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
