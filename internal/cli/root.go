package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/microgate/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "microgate",
	Short: "Customers microservices with an HTTP gateway",
	Long: `Microgate runs an HTTP API gateway and a customers worker that talk over NATS
JetStream, with Redis backed retry bookkeeping and PostgreSQL storage.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig reads .env and the config file, then sets up logging.
func loadConfig() (*config.AppConfig, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		return nil, err
	}
	setupLogging(cfg.Logging)
	return cfg, nil
}

func setupLogging(cfg config.LoggingConfig) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if isDebug {
		level = slog.LevelDebug
	}

	if cfg.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return
	}
	stylelog.InitDefault(&tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
}

// service is a long running process started by a command.
type service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// runService starts svc and blocks until SIGINT or SIGTERM, then stops it.
func runService(name string, build func(ctx context.Context, cfg *config.AppConfig) (service, error), validate func(*config.AppConfig) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := validate(cfg); err != nil {
		slog.Error("Invalid configuration", "service", name, "error", err)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	app, err := build(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize", "service", name, "error", err)
		return err
	}

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start", "service", name, "error", err)
		return err
	}

	slog.Info("Service started", "service", name, "config", cfgPath)

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "service", name, "error", err)
		return err
	}
	return nil
}
