// Package camunda wraps the Zeebe gRPC client: connection with retry, health
// checks and job worker lifecycle.
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lead-intake-workers/internal/common/config"
	"lead-intake-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client wraps the Zeebe gRPC client.
type Client struct {
	client  zbc.Client
	config  *ClientConfig
	logger  logger.Logger
	workers *workerSet
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig defines the connect retry behaviour.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 10,
	BaseDelay:  2 * time.Second,
	MaxDelay:   30 * time.Second,
}

// ConfigFrom builds a client config from the camunda section.
func ConfigFrom(cfg config.CamundaConfig) *ClientConfig {
	return &ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: cfg.UsePlaintext,
		ConnectionTimeout:      config.GetDuration(cfg.RequestTimeout),
		RetryConfig:            DefaultRetryConfig,
	}
}

// NewClient dials the gateway and waits until the topology answers, retrying
// transient failures with exponential backoff.
func NewClient(ctx context.Context, cfg *ClientConfig, log logger.Logger) (*Client, error) {
	if cfg.RetryConfig == nil {
		cfg.RetryConfig = DefaultRetryConfig
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = 10 * time.Second
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.GatewayAddress,
		UsePlaintextConnection: cfg.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := &Client{
		client:  zeebeClient,
		config:  cfg,
		logger:  log.WithFields(map[string]interface{}{"component": "zeebe"}),
		workers: newWorkerSet(),
	}

	for attempt := 0; ; attempt++ {
		err = c.HealthCheck(ctx)
		if err == nil {
			return c, nil
		}
		if !isRetryableZeebeError(err) || attempt >= cfg.RetryConfig.MaxRetries {
			_ = zeebeClient.Close()
			return nil, fmt.Errorf("failed to connect to Zeebe gateway at %s after %d attempts: %w", cfg.GatewayAddress, attempt+1, err)
		}

		delay := backoff(cfg.RetryConfig, attempt)
		c.logger.Warn("Zeebe gateway not reachable, retrying", map[string]interface{}{
			"attempt":     attempt + 1,
			"nextRetryIn": delay.String(),
			"error":       err.Error(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			_ = zeebeClient.Close()
			return nil, ctx.Err()
		}
	}
}

// Zeebe returns the raw client.
func (c *Client) Zeebe() zbc.Client {
	return c.client
}

// HealthCheck asks the gateway for its topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

// Close stops every worker and releases the gRPC connection.
func (c *Client) Close() error {
	c.CloseWorkers()
	return c.client.Close()
}

func backoff(rc *RetryConfig, attempt int) time.Duration {
	delay := rc.BaseDelay * time.Duration(1<<min(attempt, 16))
	if delay > rc.MaxDelay {
		delay = rc.MaxDelay
	}
	return delay
}

// isRetryableZeebeError reports whether err looks like a transient transport failure.
func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"unavailable",
		"unreachable",
		"broken pipe",
	} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
