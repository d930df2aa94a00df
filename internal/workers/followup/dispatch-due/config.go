package dispatchdue

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
	// BatchSize is the limit applied when the job carries none.
	BatchSize int `mapstructure:"batch_size"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 1,
		Timeout:       300 * time.Second,
		MaxRetries:    3,
		BatchSize:     20,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
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
	if appConfig.Delivery.DueBatchSize > 0 {
		cfg.BatchSize = appConfig.Delivery.DueBatchSize
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
