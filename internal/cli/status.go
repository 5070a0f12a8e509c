package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/microgate/internal/infra/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the schema version and stored record counts",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
}

func openDB(ctx context.Context) (*postgres.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is not configured")
	}
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	slog.Info("Database migrated", "version", version)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	customers, err := postgres.NewCustomerRepo(db).Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count customers: %w", err)
	}
	users, err := postgres.NewUserRepo(db).Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SCHEMA\tCUSTOMERS\tAPI USERS")
	_, _ = fmt.Fprintf(w, "%d\t%d\t%d\n", version, customers, users)
	return w.Flush()
}
