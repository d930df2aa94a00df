// internal/common/config/loader.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml over it
// and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName("config." + env)
	_ = v.MergeInConfig()

	return build(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return build(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func build(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	candidates := []string{".env", "../.env", "../../.env", "../../../.env"}
	if root := findProjectRoot(); root != "" {
		candidates = append(candidates, filepath.Join(root, ".env"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		s, ok := v.Get(key).(string)
		if !ok || !strings.Contains(s, "$") {
			continue
		}
		if expanded := os.ExpandEnv(s); expanded != s && expanded != "" {
			v.Set(key, expanded)
		}
	}
}

// overrideEmptyConfig fills secrets that are conventionally passed as plain env vars.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
	setIfEmpty(&cfg.Integrations.SMTP.Username, "SMTP_USERNAME")
	setIfEmpty(&cfg.Integrations.SMTP.Password, "SMTP_PASSWORD")
	setIfEmpty(&cfg.Integrations.AWS.Region, "AWS_REGION")
}

func setIfEmpty(dst *string, env string) {
	if *dst != "" {
		return
	}
	if val := os.Getenv(env); val != "" {
		*dst = val
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "lead-intake-workers"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Delivery.EmailTransport == "" {
		cfg.Delivery.EmailTransport = TransportNone
	}
	if cfg.Delivery.SMSTransport == "" {
		cfg.Delivery.SMSTransport = TransportStub
	}
	if cfg.Delivery.SendTimeout == 0 {
		cfg.Delivery.SendTimeout = 15000
	}
	if cfg.Delivery.LockTTL == 0 {
		cfg.Delivery.LockTTL = 60000
	}
	if cfg.Delivery.DueBatchSize == 0 {
		cfg.Delivery.DueBatchSize = 20
	}
	if cfg.Delivery.DefaultRegion == "" {
		cfg.Delivery.DefaultRegion = "US"
	}
	if cfg.Delivery.DefaultSubject == "" {
		cfg.Delivery.DefaultSubject = "(no subject)"
	}

	if cfg.Integrations.SMTP.Port == 0 {
		cfg.Integrations.SMTP.Port = 587
	}
	if cfg.Integrations.SMTP.DefaultFrom == "" {
		cfg.Integrations.SMTP.DefaultFrom = "no-reply@example.com"
	}

	if cfg.Templates.CacheTTL == 0 {
		cfg.Templates.CacheTTL = 300
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":8080"
	}

	for key, w := range cfg.Workers {
		if w.MaxJobsActive == 0 {
			w.MaxJobsActive = 5
		}
		if w.Timeout == 0 {
			w.Timeout = 30000
		}
		if w.MaxRetries == 0 {
			w.MaxRetries = 3
		}
		cfg.Workers[key] = w
	}
}

const dueSweepWorker = "followup-dispatch-due"

func validateConfig(cfg *Config) error {
	var errs []error

	if cfg.Camunda.BrokerAddress == "" {
		errs = append(errs, errors.New("camunda.broker_address is required"))
	}
	if cfg.Database.Postgres.Host == "" {
		errs = append(errs, errors.New("database.postgres.host is required"))
	}
	if cfg.Database.Postgres.Database == "" {
		errs = append(errs, errors.New("database.postgres.database is required"))
	}
	if cfg.Database.Postgres.User == "" {
		errs = append(errs, errors.New("database.postgres.user is required"))
	}
	if cfg.Database.Redis.Enabled && cfg.Database.Redis.Address == "" {
		errs = append(errs, errors.New("database.redis.address is required when redis is enabled"))
	}

	switch cfg.Delivery.EmailTransport {
	case TransportNone, TransportStub:
	case TransportSMTP:
		if cfg.Integrations.SMTP.Host == "" {
			errs = append(errs, errors.New("integrations.smtp.host is required for smtp email transport"))
		}
	case TransportSES:
		if cfg.Integrations.AWS.Region == "" || cfg.Integrations.AWS.SES.FromEmail == "" {
			errs = append(errs, errors.New("integrations.aws.region and ses.from_email are required for ses email transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("delivery.email_transport: unknown transport %q", cfg.Delivery.EmailTransport))
	}

	switch cfg.Delivery.SMSTransport {
	case TransportNone, TransportStub:
	case TransportSNS:
		if cfg.Integrations.AWS.Region == "" {
			errs = append(errs, errors.New("integrations.aws.region is required for sns sms transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("delivery.sms_transport: unknown transport %q", cfg.Delivery.SMSTransport))
	}

	if cfg.Delivery.SendTimeout < 0 {
		errs = append(errs, errors.New("delivery.send_timeout must be positive"))
	}
	if cfg.Delivery.LockTTL < cfg.Delivery.SendTimeout {
		errs = append(errs, errors.New("delivery.lock_ttl must be at least delivery.send_timeout"))
	}
	// A due sweep sends up to due_batch_size messages inside one worker job.
	if w, ok := cfg.Workers[dueSweepWorker]; ok && w.Enabled {
		if budget := cfg.Delivery.DueBatchSize * cfg.Delivery.SendTimeout; budget > w.Timeout {
			errs = append(errs, fmt.Errorf(
				"delivery.due_batch_size x delivery.send_timeout (%dms) exceeds workers.%s.timeout (%dms)",
				budget, dueSweepWorker, w.Timeout))
		}
	}

	return errors.Join(errs...)
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults.
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if w, ok := cfg.Workers[workerName]; ok {
		return w
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled.
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if w, ok := cfg.Workers[workerName]; ok {
		return w.Enabled
	}
	return true
}
