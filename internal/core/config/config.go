package config

import (
	"time"

	"github.com/vietddude/microgate/internal/core/retry"
	"github.com/vietddude/microgate/internal/infra/broker"
	redisclient "github.com/vietddude/microgate/internal/infra/redis"
	"github.com/vietddude/microgate/internal/infra/storage/postgres"
)

// Event transports for createCustomerBulk.
const (
	TransportNATS  = "nats"
	TransportRedis = "redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Logging   LoggingConfig      `yaml:"logging"`
	Database  postgres.Config    `yaml:"database"`
	Redis     redisclient.Config `yaml:"redis"`
	Broker    broker.Config      `yaml:"broker"`
	Retry     retry.Config       `yaml:"retry"`
	Auth      AuthConfig         `yaml:"auth"`
	Customers CustomersConfig    `yaml:"customers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	GatewayPort int `yaml:"gateway_port"`
	HealthPort  int `yaml:"health_port"` // /health and /metrics
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// AuthConfig holds access token settings.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// CustomersConfig holds settings of the customers microservice.
type CustomersConfig struct {
	BulkOffset     int    `yaml:"bulk_offset"`     // customers per createCustomerBulk event
	EventTransport string `yaml:"event_transport"` // nats or redis
	Consumers      int    `yaml:"consumers"`       // concurrent broker consumers per worker
}
