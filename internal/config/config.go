package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Environments the service knows how to run in.
const (
	EnvLocal  = "local"
	EnvDocker = "docker"
	EnvLambda = "lambda"
)

// maxDeadline is the longest delay an SQS message can carry.
const maxDeadline = 15 * time.Minute

// Config holds everything the api and worker binaries read from the environment.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"local"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	RunLocal bool   `env:"RUN_LOCAL" envDefault:"false"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	AWSRegion   string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpoint string `env:"AWS_ENDPOINT_OVERRIDE"`

	EventsTable    string        `env:"EVENTS_TABLE" envDefault:"order-events"`
	SagaTable      string        `env:"SAGA_TABLE" envDefault:"order-sagas"`
	OrdersTable    string        `env:"ORDERS_TABLE" envDefault:"orders"`
	InboxTable     string        `env:"INBOX_TABLE" envDefault:"order-inbox"`
	DeadlinesTable string        `env:"DEADLINES_TABLE" envDefault:"order-deadlines"`
	InboxTTL       time.Duration `env:"INBOX_TTL" envDefault:"48h"`

	CommandsQueueURL  string `env:"ORDERS_COMMANDS_QUEUE_URL"`
	EventsQueueURL    string `env:"ORDERS_EVENTS_QUEUE_URL"`
	ProductsQueueURL  string `env:"PRODUCTS_QUEUE_URL"`
	DeadlinesQueueURL string `env:"DEADLINES_QUEUE_URL"`

	PaymentServiceURL string        `env:"PAYMENT_SERVICE_URL" envDefault:"http://localhost:8082"`
	UserServiceURL    string        `env:"USER_SERVICE_URL" envDefault:"http://localhost:8083"`
	RemoteCallTimeout time.Duration `env:"REMOTE_CALL_TIMEOUT" envDefault:"5s"`

	PaymentDeadline          time.Duration `env:"PAYMENT_DEADLINE" envDefault:"10s"`
	PaymentProcessingEnabled bool          `env:"PAYMENT_PROCESSING_ENABLED" envDefault:"true"`

	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"OrderFlow"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c Config) Validate() error {
	switch c.AppEnv {
	case EnvLocal, EnvDocker, EnvLambda:
	default:
		return fmt.Errorf("invalid APP_ENV: %s (must be local, docker or lambda)", c.AppEnv)
	}
	if c.PaymentDeadline <= 0 || c.PaymentDeadline > maxDeadline {
		return fmt.Errorf("invalid PAYMENT_DEADLINE: %s (must be in (0, %s])", c.PaymentDeadline, maxDeadline)
	}
	if c.RemoteCallTimeout <= 0 {
		return fmt.Errorf("invalid REMOTE_CALL_TIMEOUT: %s", c.RemoteCallTimeout)
	}
	if !c.RunLocal && c.AppEnv != EnvLocal {
		if c.CommandsQueueURL == "" || c.EventsQueueURL == "" || c.ProductsQueueURL == "" || c.DeadlinesQueueURL == "" {
			return fmt.Errorf("queue URLs are required outside local mode")
		}
		if strings.HasSuffix(c.DeadlinesQueueURL, ".fifo") {
			return fmt.Errorf("DEADLINES_QUEUE_URL must be a standard queue: FIFO queues reject per-message delays")
		}
	}
	return nil
}
