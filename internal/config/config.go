package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JobAPI   JobAPIConfig   `mapstructure:"job_api"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Invoice  InvoiceConfig  `mapstructure:"invoice"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"` // empty uses the embedded migrations
}

// JobAPIConfig holds the remote job service client configuration
type JobAPIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Token          string        `mapstructure:"token"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      time.Duration `mapstructure:"rate_limit"`
	Burst          int           `mapstructure:"burst"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
}

// WorkflowConfig holds visit engine configuration
type WorkflowConfig struct {
	SessionExpiry  time.Duration `mapstructure:"session_expiry"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	TimerTick      time.Duration `mapstructure:"timer_tick"`
	LogRetention   time.Duration `mapstructure:"log_retention"`
	RetentionCheck time.Duration `mapstructure:"retention_check"`
}

// InvoiceConfig holds invoice rendering configuration
type InvoiceConfig struct {
	OutputDir    string `mapstructure:"output_dir"`
	TemplatePath string `mapstructure:"template_path"`
	CompanyName  string `mapstructure:"company_name"`
	Currency     string `mapstructure:"currency"`
}

// NATSConfig holds the event bridge configuration
type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	ClientName    string        `mapstructure:"client_name"`
	FlushTimeout  time.Duration `mapstructure:"flush_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads an optional .env file, then the YAML file at configPath, then
// environment overrides. A missing config file falls back to defaults.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/fieldjob.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.migrations_dir", "")

	// Job API defaults
	v.SetDefault("job_api.timeout", 15*time.Second)
	v.SetDefault("job_api.rate_limit", 100*time.Millisecond)
	v.SetDefault("job_api.burst", 5)
	v.SetDefault("job_api.retry_attempts", 3)
	v.SetDefault("job_api.retry_base_delay", 200*time.Millisecond)
	v.SetDefault("job_api.retry_max_delay", 2*time.Second)

	// Workflow defaults
	v.SetDefault("workflow.session_expiry", 2*time.Hour)
	v.SetDefault("workflow.sweep_interval", 5*time.Minute)
	v.SetDefault("workflow.timer_tick", time.Second)
	v.SetDefault("workflow.log_retention", 90*24*time.Hour)
	v.SetDefault("workflow.retention_check", 24*time.Hour)

	// Invoice defaults
	v.SetDefault("invoice.output_dir", "invoices")
	v.SetDefault("invoice.currency", "USD")

	// NATS defaults
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.subject_prefix", "fieldjob")
	v.SetDefault("nats.client_name", "fieldjob")
	v.SetDefault("nats.flush_timeout", 2*time.Second)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	_ = v.BindEnv("job_api.token", "JOB_API_TOKEN")
	_ = v.BindEnv("job_api.base_url", "JOB_API_BASE_URL")
	_ = v.BindEnv("nats.url", "NATS_URL")
	_ = v.BindEnv("invoice.company_name", "COMPANY_NAME")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.JobAPI.BaseURL == "" {
		return fmt.Errorf("job_api.base_url is required")
	}
	if !strings.HasPrefix(c.JobAPI.BaseURL, "http://") && !strings.HasPrefix(c.JobAPI.BaseURL, "https://") {
		return fmt.Errorf("job_api.base_url must be an http(s) URL: %s", c.JobAPI.BaseURL)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Workflow.SessionExpiry <= 0 {
		return fmt.Errorf("workflow.session_expiry must be positive")
	}
	if c.Workflow.TimerTick <= 0 {
		return fmt.Errorf("workflow.timer_tick must be positive")
	}
	if c.Invoice.OutputDir == "" {
		return fmt.Errorf("invoice.output_dir is required")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats is enabled")
	}
	return nil
}
