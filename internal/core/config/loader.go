package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/microgate/internal/core/domain"
	"github.com/vietddude/microgate/internal/core/retry"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.GatewayPort == 0 {
		c.Server.GatewayPort = 3000
	}
	if c.Server.HealthPort == 0 {
		c.Server.HealthPort = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Broker.Subject == "" {
		c.Broker.Subject = domain.SubjectWildcard
	}
	if c.Broker.Durable == "" {
		c.Broker.Durable = domain.MicroserviceName
	}
	c.Broker = c.Broker.WithDefaults()

	if len(c.Redis.Channels) == 0 {
		c.Redis.Channels = []string{domain.PatternCreateCustomerBulk}
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.TTL == 0 {
		c.Retry.TTL = retry.DefaultTTL
	}

	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = time.Hour
	}

	if c.Customers.BulkOffset == 0 {
		c.Customers.BulkOffset = 100
	}
	if c.Customers.EventTransport == "" {
		c.Customers.EventTransport = TransportNATS
	}
	if c.Customers.Consumers == 0 {
		c.Customers.Consumers = 4
	}
}

// ValidateGateway checks the settings the gateway cannot run without.
func (c *AppConfig) ValidateGateway() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Customers.BulkOffset < 1 {
		errs = append(errs, fmt.Errorf("customers.bulk_offset must be at least 1, got %d", c.Customers.BulkOffset))
	}
	if err := c.validateTransport(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateWorker checks the settings the worker cannot run without.
func (c *AppConfig) ValidateWorker() error {
	var errs []error
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Customers.Consumers < 1 {
		errs = append(errs, fmt.Errorf("customers.consumers must be at least 1, got %d", c.Customers.Consumers))
	}
	if err := c.validateTransport(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *AppConfig) validateTransport() error {
	switch c.Customers.EventTransport {
	case TransportNATS:
		return nil
	case TransportRedis:
		if c.Redis.URL == "" {
			return errors.New("redis.url is required when customers.event_transport is redis")
		}
		return nil
	default:
		return fmt.Errorf("customers.event_transport must be %q or %q, got %q",
			TransportNATS, TransportRedis, c.Customers.EventTransport)
	}
}
