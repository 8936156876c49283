// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Entitlement   EntitlementConfig       `mapstructure:"entitlement"`
	Dispatch      DispatchConfig          `mapstructure:"dispatch"`
	Push          PushConfig              `mapstructure:"push"`
	Alerts        AlertsConfig            `mapstructure:"alerts"`
	Reporting     ReportingConfig         `mapstructure:"reporting"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Registry      RegistryConfig          `mapstructure:"registry"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	HTTPAddress string `mapstructure:"http_address"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// --- Domain Configuration ---

// EntitlementConfig controls trial derivation.
type EntitlementConfig struct {
	TrialDays int    `mapstructure:"trial_days"`
	Timezone  string `mapstructure:"timezone"`
}

// Location resolves Timezone, falling back to UTC.
func (e EntitlementConfig) Location() (*time.Location, error) {
	if e.Timezone == "" || e.Timezone == "UTC" {
		return time.UTC, nil
	}
	return time.LoadLocation(e.Timezone)
}

// DispatchConfig controls the notification dispatcher.
type DispatchConfig struct {
	MaxConcurrency   int    `mapstructure:"max_concurrency"`
	AttemptTimeoutMs int    `mapstructure:"attempt_timeout"` // milliseconds
	SentinelToken    string `mapstructure:"sentinel_token"`
}

// PushConfig selects and configures the push provider.
type PushConfig struct {
	Provider string `mapstructure:"provider"` // fcm | sns | expo

	FCM struct {
		ProjectID   string `mapstructure:"project_id"`
		ClientEmail string `mapstructure:"client_email"`
		PrivateKey  string `mapstructure:"private_key"`
	} `mapstructure:"fcm"`

	SNS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"sns"`

	Expo struct {
		URL         string `mapstructure:"url"`
		AccessToken string `mapstructure:"access_token"`
	} `mapstructure:"expo"`
}

// AlertsConfig holds the ops alert settings for provider credential failures.
type AlertsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Region    string `mapstructure:"region"`
	FromEmail string `mapstructure:"from_email"`
	ToEmail   string `mapstructure:"to_email"`
	Cooldown  int    `mapstructure:"cooldown"` // seconds
}

// ReportingConfig holds the Elasticsearch report sink settings.
type ReportingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Index   string `mapstructure:"index"`
}

// ObservabilityConfig holds tracing settings.
type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// RegistryConfig points at the activity registry holding job input schemas.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}
