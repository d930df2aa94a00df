package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalConfig = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: leads
    user: intake
workers:
  lead-qualify:
    enabled: true
`

func TestLoadFromFile_Defaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "lead-intake-workers", cfg.App.Name)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, TransportNone, cfg.Delivery.EmailTransport)
	assert.Equal(t, TransportStub, cfg.Delivery.SMSTransport)
	assert.Equal(t, 20, cfg.Delivery.DueBatchSize)
	assert.Equal(t, "(no subject)", cfg.Delivery.DefaultSubject)
	assert.Equal(t, ":8080", cfg.Metrics.Address)

	w := cfg.Workers["lead-qualify"]
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.Equal(t, 3, w.MaxRetries)
}

func TestLoadFromFile_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_ZEEBE_ADDRESS", "zeebe:26500")
	t.Setenv("DB_PASSWORD", "s3cret")

	cfg, err := LoadFromFile(writeConfig(t, `
camunda:
  broker_address: ${TEST_ZEEBE_ADDRESS}
database:
  postgres:
    host: db
    database: leads
    user: intake
`))
	require.NoError(t, err)
	assert.Equal(t, "zeebe:26500", cfg.Camunda.BrokerAddress)
	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing broker",
			body:    "database:\n  postgres:\n    host: db\n    database: leads\n    user: intake\n",
			wantErr: "camunda.broker_address is required",
		},
		{
			name:    "unknown email transport",
			body:    minimalConfig + "delivery:\n  email_transport: pigeon\n",
			wantErr: `unknown transport "pigeon"`,
		},
		{
			name:    "smtp without host",
			body:    minimalConfig + "delivery:\n  email_transport: smtp\n",
			wantErr: "integrations.smtp.host is required",
		},
		{
			name:    "lock ttl shorter than send timeout",
			body:    minimalConfig + "delivery:\n  send_timeout: 30000\n  lock_ttl: 10000\n",
			wantErr: "delivery.lock_ttl must be at least delivery.send_timeout",
		},
		{
			name:    "redis without address",
			body:    "camunda:\n  broker_address: zeebe:26500\ndatabase:\n  postgres:\n    host: db\n    database: leads\n    user: intake\n  redis:\n    enabled: true\n",
			wantErr: "database.redis.address is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadFromFile_DueSweepBudget(t *testing.T) {
	const base = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: leads
    user: intake
delivery:
  send_timeout: 15000
  due_batch_size: 20
workers:
  followup-dispatch-due:
    enabled: %t
    timeout: %d
`

	tests := []struct {
		name    string
		enabled bool
		timeout int
		wantErr string
	}{
		{name: "fits", enabled: true, timeout: 300000},
		{name: "too short", enabled: true, timeout: 60000, wantErr: "exceeds workers.followup-dispatch-due.timeout (60000ms)"},
		{name: "disabled worker is not checked", enabled: false, timeout: 60000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, fmt.Sprintf(base, tt.enabled, tt.timeout)))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{"lead-qualify": {Enabled: false}}}

	assert.False(t, IsWorkerEnabled(cfg, "lead-qualify"))
	assert.True(t, IsWorkerEnabled(cfg, "followup-cancel"))
	assert.Equal(t, 30000, GetWorkerConfig(cfg, "followup-cancel").Timeout)
}
