package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"

	"github.com/vietddude/microgate/internal/auth"
	"github.com/vietddude/microgate/internal/core/config"
	"github.com/vietddude/microgate/internal/core/domain"
	"github.com/vietddude/microgate/internal/gateway"
	"github.com/vietddude/microgate/internal/health"
	"github.com/vietddude/microgate/internal/infra/broker"
	redisclient "github.com/vietddude/microgate/internal/infra/redis"
)

// Gateway is the HTTP API gateway process.
type Gateway struct {
	cfg         *config.AppConfig
	stores      *stores
	redisClient *redisclient.Client
	nc          *nats.Conn
	publisher   message.Publisher
	server      *http.Server
	log         *slog.Logger
}

// NewGateway creates a Gateway with all dependencies initialized.
func NewGateway(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (g *Gateway, err error) {
	g = &Gateway{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			_ = g.close()
		}
	}()

	// 1. API users
	if g.stores, err = openStorage(ctx, cfg.Database, log); err != nil {
		return nil, err
	}
	jwt, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	authSvc := auth.NewService(g.stores.users, jwt)

	// 2. Broker
	nc, _, err := openBroker(ctx, cfg.Broker, log)
	if err != nil {
		return nil, err
	}
	g.nc = nc
	if g.publisher, err = broker.NewPublisher(cfg.Broker, log); err != nil {
		return nil, err
	}
	requester := broker.NewRequester(nc, g.publisher, cfg.Broker.ReplyTimeout)

	// 3. Bulk events go over NATS unless Redis pub/sub is configured
	var emitter gateway.Emitter = requester
	if cfg.Redis.URL != "" {
		if g.redisClient, err = redisclient.NewClient(cfg.Redis); err != nil {
			return nil, err
		}
		if cfg.Customers.EventTransport == config.TransportRedis {
			emitter = gateway.NewPubSubEmitter(g.redisClient.Publisher())
		}
	}

	// 4. HTTP
	monitor := health.NewMonitor(domain.MicroserviceName+"-gateway", healthChecks(g.stores, nc, g.redisClient)...)
	handlers := gateway.NewHandlers(authSvc, requester, emitter, cfg.Customers.BulkOffset, log)
	g.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.GatewayPort),
		Handler:           gateway.NewRouter(handlers, health.NewServer(monitor, 0).Handler(), log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

// Start starts serving HTTP. It returns immediately.
func (g *Gateway) Start(ctx context.Context) error {
	if g.stores.db != nil {
		g.stores.db.StartMetricsCollector(ctx)
	}

	go func() {
		if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.log.Error("Gateway server failed", "error", err)
		}
	}()

	g.log.Info("Gateway started",
		"port", g.cfg.Server.GatewayPort,
		"event_transport", g.cfg.Customers.EventTransport,
		"bulk_offset", g.cfg.Customers.BulkOffset,
	)
	return nil
}

// Stop drains HTTP requests and closes connections.
func (g *Gateway) Stop(ctx context.Context) error {
	g.log.Info("Stopping Gateway...")

	var c closer
	if g.server != nil {
		c.add("http server", g.server.Shutdown(ctx))
	}
	c.add("resources", g.close())
	return c.err()
}

func (g *Gateway) close() error {
	var c closer
	if g.publisher != nil {
		c.add("publisher", g.publisher.Close())
	}
	if g.nc != nil {
		c.add("nats", g.nc.Drain())
	}
	if g.redisClient != nil {
		c.add("redis", g.redisClient.Close())
	}
	c.add("database", g.stores.close())
	return c.err()
}
