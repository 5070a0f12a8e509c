// Package control assembles the gateway and worker processes from their
// configuration and manages their lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/vietddude/microgate/internal/health"
	"github.com/vietddude/microgate/internal/infra/broker"
	redisclient "github.com/vietddude/microgate/internal/infra/redis"
	"github.com/vietddude/microgate/internal/infra/storage"
	"github.com/vietddude/microgate/internal/infra/storage/memory"
	"github.com/vietddude/microgate/internal/infra/storage/postgres"
)

// stores holds the repositories of the configured storage backend.
type stores struct {
	customers storage.CustomerRepository
	users     storage.UserRepository
	db        *postgres.DB // nil in memory mode
}

// openStorage connects to PostgreSQL and applies migrations when a database
// URL is configured, and falls back to process memory otherwise.
func openStorage(ctx context.Context, cfg postgres.Config, log *slog.Logger) (*stores, error) {
	if cfg.URL == "" {
		store := memory.NewMemoryStorage()
		log.Warn("No database configured, using memory storage")
		return &stores{
			customers: memory.NewCustomerRepo(store),
			users:     memory.NewUserRepo(store),
		}, nil
	}

	db, err := postgres.NewDB(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate db: %w", err)
	}
	log.Info("Using PostgreSQL storage", "driver", cfg.Driver)

	return &stores{
		customers: postgres.NewCustomerRepo(db),
		users:     postgres.NewUserRepo(db),
		db:        db,
	}, nil
}

func (s *stores) close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// openBroker connects to NATS and makes sure the work queue stream exists.
func openBroker(ctx context.Context, cfg broker.Config, log *slog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := broker.Connect(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to open jetstream: %w", err)
	}
	if _, err := broker.EnsureStream(ctx, js, cfg); err != nil {
		nc.Close()
		return nil, nil, err
	}
	log.Info("Connected to NATS", "url", nc.ConnectedUrl(), "stream", cfg.Stream)
	return nc, js, nil
}

// healthChecks builds the dependency checks of a process. The database and
// Redis checks are only added when those backends are in use.
func healthChecks(st *stores, nc *nats.Conn, rc *redisclient.Client) []health.Check {
	checks := []health.Check{{
		Name:     "nats",
		Critical: true,
		Run: func(context.Context) error {
			if status := nc.Status(); status != nats.CONNECTED {
				return fmt.Errorf("connection %s", status)
			}
			return nil
		},
	}}
	if st != nil && st.db != nil {
		checks = append(checks, health.Check{Name: "database", Critical: true, Run: st.db.Health})
	}
	if rc != nil {
		checks = append(checks, health.Check{Name: "redis", Run: rc.Health})
	}
	return checks
}

// closer collects shutdown errors in order.
type closer struct {
	errs []error
}

func (c *closer) add(what string, err error) {
	if err != nil {
		c.errs = append(c.errs, fmt.Errorf("close %s: %w", what, err))
	}
}

func (c *closer) err() error {
	return errors.Join(c.errs...)
}
