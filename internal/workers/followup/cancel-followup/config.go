package cancelfollowup

import (
	"fmt"
	"time"

	"lead-intake-workers/internal/common/config"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       10 * time.Second,
		MaxRetries:    3,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	return nil
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}
	if workerCfg, exists := appConfig.Workers[TaskType]; exists {
		cfg.Enabled = workerCfg.Enabled
		if workerCfg.MaxJobsActive > 0 {
			cfg.MaxJobsActive = workerCfg.MaxJobsActive
		}
		if workerCfg.Timeout > 0 {
			cfg.Timeout = config.GetDuration(workerCfg.Timeout)
		}
		if workerCfg.MaxRetries > 0 {
			cfg.MaxRetries = workerCfg.MaxRetries
		}
	}
	return cfg
}
