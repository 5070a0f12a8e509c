// Package broker carries envelopes between the gateway and the workers over
// NATS JetStream. Requests get their reply on a core NATS inbox; events are
// fire-and-forget and rely on JetStream redelivery when nacked.
package broker

import (
	"time"

	"github.com/nats-io/nats.go"
)

// Config holds broker settings.
type Config struct {
	URL           string         `yaml:"url"`
	Stream        string         `yaml:"stream"`
	Subject       string         `yaml:"subject"` // stream subject filter
	Durable       string         `yaml:"durable"` // shared consumer name of the workers
	AckWait       time.Duration  `yaml:"ack_wait"`
	MaxDeliver    int            `yaml:"max_deliver"` // -1 = unlimited
	ReplyTimeout  time.Duration  `yaml:"reply_timeout"`
	MaxReconnects int            `yaml:"max_reconnects"`
	ReconnectWait time.Duration  `yaml:"reconnect_wait"`
	Embedded      EmbeddedConfig `yaml:"embedded"`
}

// EmbeddedConfig configures the in-process NATS server.
type EmbeddedConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"` // -1 picks a random port
	StoreDir string `yaml:"store_dir"`
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.Stream == "" {
		c.Stream = "CUSTOMERS"
	}
	if c.AckWait <= 0 {
		c.AckWait = 30 * time.Second
	}
	if c.MaxDeliver == 0 {
		c.MaxDeliver = -1
	}
	if c.ReplyTimeout <= 0 {
		c.ReplyTimeout = 10 * time.Second
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = -1
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.Embedded.Host == "" {
		c.Embedded.Host = "127.0.0.1"
	}
	return c
}
