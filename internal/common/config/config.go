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
	Auth          AuthConfig              `mapstructure:"auth"`
	Integrations  IntegrationConfig       `mapstructure:"integrations"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	HTTP          HTTPConfig              `mapstructure:"http"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
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
	URL       string   `mapstructure:"url"` // single address shorthand
}

// GetAddresses merges the URL shorthand into the address list.
func (e ElasticsearchConfig) GetAddresses() []string {
	if len(e.Addresses) > 0 {
		return e.Addresses
	}
	if e.URL != "" {
		return []string{e.URL}
	}
	return nil
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// --- Specific Configuration Sections ---

// AuthConfig holds the Keycloak realm used for token introspection and
// recipient lookups.
type AuthConfig struct {
	Keycloak struct {
		URL          string `mapstructure:"url"`
		Realm        string `mapstructure:"realm"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
	} `mapstructure:"keycloak"`
}

// IntegrationConfig holds settings for the delivery transports.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled          bool   `mapstructure:"enabled"`
			FromEmail        string `mapstructure:"from_email"`
			ConfigurationSet string `mapstructure:"configuration_set"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled bool `mapstructure:"enabled"`
			// PlatformApplicationARN registers device tokens as SNS endpoints.
			PlatformApplicationARN string `mapstructure:"platform_application_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`

	Firebase struct {
		Enabled         bool   `mapstructure:"enabled"`
		CredentialsFile string `mapstructure:"credentials_file"`
		ProjectID       string `mapstructure:"project_id"`
	} `mapstructure:"firebase"`
}

// NotificationConfig tunes the decision engine and digest scheduler.
type NotificationConfig struct {
	Timezone           string `mapstructure:"timezone"`
	PushProvider       string `mapstructure:"push_provider"` // "fcm" or "sns"
	FromEmail          string `mapstructure:"from_email"`
	EmailRetryCap      int    `mapstructure:"email_retry_cap"`
	DigestTick         int    `mapstructure:"digest_tick"`          // milliseconds
	PreferenceCacheTTL int    `mapstructure:"preference_cache_ttl"` // milliseconds
	AuditIndex         string `mapstructure:"audit_index"`
	RegistryPath       string `mapstructure:"registry_path"`
	DashboardURL       string `mapstructure:"dashboard_url"`
	PublicURL          string `mapstructure:"public_url"` // base of unsubscribe links
}

// Location resolves the configured time zone, falling back to UTC.
func (n NotificationConfig) Location() *time.Location {
	if n.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(n.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// HTTPConfig holds the API / health listener settings.
type HTTPConfig struct {
	Address         string   `mapstructure:"address"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
