package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "PAYMENT_DEADLINE", "PAYMENT_PROCESSING_ENABLED", "EVENTS_TABLE", "INBOX_TTL"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, EnvLocal, cfg.AppEnv)
	require.Equal(t, 10*time.Second, cfg.PaymentDeadline)
	require.True(t, cfg.PaymentProcessingEnabled)
	require.Equal(t, "order-events", cfg.EventsTable)
	require.Equal(t, 48*time.Hour, cfg.InboxTTL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "docker")
	t.Setenv("PAYMENT_DEADLINE", "30s")
	t.Setenv("PAYMENT_PROCESSING_ENABLED", "false")
	t.Setenv("ORDERS_COMMANDS_QUEUE_URL", "https://sqs/commands")
	t.Setenv("ORDERS_EVENTS_QUEUE_URL", "https://sqs/events")
	t.Setenv("PRODUCTS_QUEUE_URL", "https://sqs/products")
	t.Setenv("DEADLINES_QUEUE_URL", "https://sqs/deadlines")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, EnvDocker, cfg.AppEnv)
	require.Equal(t, 30*time.Second, cfg.PaymentDeadline)
	require.False(t, cfg.PaymentProcessingEnabled)
}

func TestValidate(t *testing.T) {
	base := Config{AppEnv: EnvLocal, PaymentDeadline: 10 * time.Second, RemoteCallTimeout: time.Second}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown env", func(c *Config) { c.AppEnv = "prod" }},
		{"zero deadline", func(c *Config) { c.PaymentDeadline = 0 }},
		{"deadline beyond sqs delay", func(c *Config) { c.PaymentDeadline = 16 * time.Minute }},
		{"zero remote timeout", func(c *Config) { c.RemoteCallTimeout = 0 }},
		{"missing queues outside local", func(c *Config) { c.AppEnv = EnvLambda }},
		{"fifo deadlines queue", func(c *Config) {
			c.AppEnv = EnvLambda
			c.CommandsQueueURL, c.EventsQueueURL, c.ProductsQueueURL = "c.fifo", "e.fifo", "p"
			c.DeadlinesQueueURL = "d.fifo"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
