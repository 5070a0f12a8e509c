package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vietddude/microgate/internal/control"
	"github.com/vietddude/microgate/internal/core/config"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the HTTP API gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runService("gateway", func(ctx context.Context, cfg *config.AppConfig) (service, error) {
			return control.NewGateway(ctx, cfg, slog.Default())
		}, (*config.AppConfig).ValidateGateway)
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the customers microservice worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runService("worker", func(ctx context.Context, cfg *config.AppConfig) (service, error) {
			return control.NewWorker(ctx, cfg, slog.Default())
		}, (*config.AppConfig).ValidateWorker)
	},
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(workerCmd)
}
