package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/vietddude/microgate/internal/core/config"
	"github.com/vietddude/microgate/internal/core/domain"
	"github.com/vietddude/microgate/internal/core/filter"
	"github.com/vietddude/microgate/internal/core/retry"
	"github.com/vietddude/microgate/internal/customers"
	"github.com/vietddude/microgate/internal/health"
	"github.com/vietddude/microgate/internal/infra/broker"
	redisclient "github.com/vietddude/microgate/internal/infra/redis"
	"github.com/vietddude/microgate/internal/infra/storage/memory"
	"github.com/vietddude/microgate/internal/worker"
)

// Worker is the customers microservice process.
type Worker struct {
	cfg          *config.AppConfig
	stores       *stores
	redisClient  *redisclient.Client
	embedded     *broker.EmbeddedServer
	nc           *nats.Conn
	consumer     *broker.Consumer
	processor    *worker.Processor
	healthServer *health.Server
	log          *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a Worker with all dependencies initialized.
func NewWorker(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (w *Worker, err error) {
	w = &Worker{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			_ = w.close()
		}
	}()

	// 1. Storage
	if w.stores, err = openStorage(ctx, cfg.Database, log); err != nil {
		return nil, err
	}

	// 2. Retry counter cache
	var cache retry.Cache
	if cfg.Redis.URL != "" {
		if w.redisClient, err = redisclient.NewClient(cfg.Redis); err != nil {
			return nil, err
		}
		cache = w.redisClient.Cache()
		log.Info("Using Redis for retry attempts")
	} else {
		cache = memory.NewCache()
		log.Warn("No Redis configured, retry attempts are counted per process")
	}

	// 3. Broker
	brokerCfg := cfg.Broker
	if brokerCfg.Embedded.Enabled {
		if w.embedded, err = broker.StartEmbedded(brokerCfg.Embedded); err != nil {
			return nil, err
		}
		brokerCfg.URL = w.embedded.ClientURL()
		log.Info("Embedded NATS server started", "url", brokerCfg.URL)
	}
	nc, js, err := openBroker(ctx, brokerCfg, log)
	if err != nil {
		return nil, err
	}
	w.nc = nc
	w.consumer = broker.NewConsumer(js, brokerCfg, log)

	// 4. Message processing
	svc := customers.NewService(w.stores.customers, log)
	w.processor = worker.NewProcessor(
		customers.NewHandler(svc),
		filter.New(log),
		retry.NewCounter(cache, cfg.Retry),
		broker.NewReplier(nc),
		log,
	)

	// 5. Health
	monitor := health.NewMonitor(domain.MicroserviceName+"-worker", healthChecks(w.stores, nc, w.redisClient)...)
	w.healthServer = health.NewServer(monitor, cfg.Server.HealthPort)

	return w, nil
}

// Start starts consuming messages. It returns immediately.
func (w *Worker) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	go func() {
		if err := w.healthServer.Start(); err != nil {
			w.log.Error("Health server failed", "error", err)
		}
	}()

	if w.stores.db != nil {
		w.stores.db.StartMetricsCollector(ctx)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Run(ctx, w.cfg.Customers.Consumers, w.processor.HandleDelivery); err != nil {
			w.log.Error("Broker consumer failed", "error", err)
		}
	}()

	if w.cfg.Customers.EventTransport == config.TransportRedis {
		if w.redisClient == nil {
			return fmt.Errorf("redis event transport requires redis.url")
		}
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.redisClient.Listen(ctx, w.cfg.Redis.Channels, w.processor.HandlePubSub); err != nil {
				w.log.Error("Redis listener failed", "error", err)
			}
		}()
	}

	w.log.Info("Worker started",
		"consumers", w.cfg.Customers.Consumers,
		"event_transport", w.cfg.Customers.EventTransport,
		"max_attempts", w.cfg.Retry.MaxAttempts,
	)
	return nil
}

// Stop stops consuming, waits for in-flight messages and closes connections.
func (w *Worker) Stop(ctx context.Context) error {
	w.log.Info("Stopping Worker...")

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		w.log.Warn("Timed out waiting for in-flight messages")
	}

	var c closer
	c.add("health server", w.healthServer.Stop(ctx))
	c.add("resources", w.close())
	return c.err()
}

func (w *Worker) close() error {
	var c closer
	if w.nc != nil {
		c.add("nats", w.nc.Drain())
	}
	if w.embedded != nil {
		c.add("embedded nats", w.embedded.Shutdown(context.Background()))
	}
	if w.redisClient != nil {
		c.add("redis", w.redisClient.Close())
	}
	c.add("database", w.stores.close())
	return c.err()
}
