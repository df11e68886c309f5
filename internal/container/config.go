// Package container provides dependency injection and lifecycle management
// for the field job visit service.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/fieldjob/internal/config"
)

// Config holds all configuration for the Container
type Config struct {
	Database DatabaseConfig
	JobAPI   JobAPIConfig
	NATS     NATSConfig
	Workflow WorkflowConfig
	Invoice  InvoiceConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string
}

// JobAPIConfig holds the job service client settings
type JobAPIConfig struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	RateLimit      time.Duration
	Burst          int
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// NATSConfig holds the event bridge settings
type NATSConfig struct {
	Enabled       bool
	URL           string
	SubjectPrefix string
	ClientName    string
	FlushTimeout  time.Duration
}

// WorkflowConfig holds visit engine and worker settings
type WorkflowConfig struct {
	SessionExpiry  time.Duration
	SweepInterval  time.Duration
	TimerTick      time.Duration
	LogRetention   time.Duration
	RetentionCheck time.Duration
}

// InvoiceConfig holds invoice rendering settings
type InvoiceConfig struct {
	OutputDir    string
	TemplatePath string
	CompanyName  string
	Currency     string
}

// FromAppConfig converts the file-based application config
func FromAppConfig(c *config.Config) *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		JobAPI: JobAPIConfig{
			BaseURL:        c.JobAPI.BaseURL,
			Token:          c.JobAPI.Token,
			Timeout:        c.JobAPI.Timeout,
			RateLimit:      c.JobAPI.RateLimit,
			Burst:          c.JobAPI.Burst,
			RetryAttempts:  c.JobAPI.RetryAttempts,
			RetryBaseDelay: c.JobAPI.RetryBaseDelay,
			RetryMaxDelay:  c.JobAPI.RetryMaxDelay,
		},
		NATS: NATSConfig{
			Enabled:       c.NATS.Enabled,
			URL:           c.NATS.URL,
			SubjectPrefix: c.NATS.SubjectPrefix,
			ClientName:    c.NATS.ClientName,
			FlushTimeout:  c.NATS.FlushTimeout,
		},
		Workflow: WorkflowConfig{
			SessionExpiry:  c.Workflow.SessionExpiry,
			SweepInterval:  c.Workflow.SweepInterval,
			TimerTick:      c.Workflow.TimerTick,
			LogRetention:   c.Workflow.LogRetention,
			RetentionCheck: c.Workflow.RetentionCheck,
		},
		Invoice: InvoiceConfig{
			OutputDir:    c.Invoice.OutputDir,
			TemplatePath: c.Invoice.TemplatePath,
			CompanyName:  c.Invoice.CompanyName,
			Currency:     c.Invoice.Currency,
		},
	}
}

// Validate checks the settings the container cannot start without
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.JobAPI.BaseURL == "" {
		return fmt.Errorf("job API base URL is required")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("NATS URL is required when the event bridge is enabled")
	}
	if c.Workflow.SessionExpiry <= 0 {
		return fmt.Errorf("session expiry must be positive")
	}
	return nil
}
