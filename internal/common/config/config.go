// internal/common/config/config.go
package config

import (
	"fmt"
	"net/url"
)

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Integrations IntegrationConfig       `mapstructure:"integrations"`
	Delivery     DeliveryConfig          `mapstructure:"delivery"`
	Templates    TemplatesConfig         `mapstructure:"templates"`
	Logging      LoggingConfig           `mapstructure:"logging"`
	Metrics      MetricsConfig           `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	UsePlaintext   bool   `mapstructure:"use_plaintext"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
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

// GetDSN returns the lib/pq connection URL.
func (p PostgresConfig) GetDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.Database,
		RawQuery: url.Values{"sslmode": []string{p.SSLMode}}.Encode(),
	}
	return u.String()
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // retries handed back to Zeebe on retryable failures
}

// IntegrationConfig holds credentials for outbound transports.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			SenderID string `mapstructure:"sender_id"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`

	SMTP SMTPConfig `mapstructure:"smtp"`
}

type SMTPConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	UseTLS      bool   `mapstructure:"use_tls"`
	DefaultFrom string `mapstructure:"default_from"`
	FromName    string `mapstructure:"from_name"`
}

// Transport names accepted by the delivery section.
const (
	TransportNone = "none"
	TransportStub = "stub"
	TransportSMTP = "smtp"
	TransportSES  = "ses"
	TransportSNS  = "sns"
)

// DeliveryConfig selects the channel transports and dispatch limits.
type DeliveryConfig struct {
	EmailTransport string `mapstructure:"email_transport"`
	SMSTransport   string `mapstructure:"sms_transport"`
	SendTimeout    int    `mapstructure:"send_timeout"` // milliseconds
	LockTTL        int    `mapstructure:"lock_ttl"`     // milliseconds
	DueBatchSize   int    `mapstructure:"due_batch_size"`
	DefaultRegion  string `mapstructure:"default_region"`
	DefaultSubject string `mapstructure:"default_subject"`
}

type TemplatesConfig struct {
	CatalogPath string `mapstructure:"catalog_path"`
	CacheTTL    int    `mapstructure:"cache_ttl"` // seconds
	SeedOnStart bool   `mapstructure:"seed_on_start"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}
