package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vietddude/microgate/internal/auth"
	"github.com/vietddude/microgate/internal/core/domain"
	"github.com/vietddude/microgate/internal/infra/storage/postgres"
)

var (
	newUsername string
	newPassword string
)

var createUserCmd = &cobra.Command{
	Use:   "create-api-user",
	Short: "Register a user allowed to log in to the gateway",
	RunE:  runCreateUser,
}

func init() {
	createUserCmd.Flags().StringVar(&newUsername, "username", "", "username (prompted when empty)")
	createUserCmd.Flags().StringVar(&newPassword, "password", "", "password (prompted without echo when empty)")
	rootCmd.AddCommand(createUserCmd)
}

func runCreateUser(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("create-api-user needs database.url, memory storage does not outlive this command")
	}

	creds, err := promptCredentials(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	resp, err := auth.NewService(postgres.NewUserRepo(db), nil).CreateUser(ctx, creds)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
	return nil
}

func promptCredentials(cmd *cobra.Command) (domain.UserCredentials, error) {
	creds := domain.UserCredentials{Username: newUsername, Password: newPassword}
	out := cmd.OutOrStdout()

	if creds.Username == "" {
		_, _ = fmt.Fprint(out, "Username: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return creds, fmt.Errorf("failed to read username: %w", err)
		}
		creds.Username = strings.TrimSpace(line)
	}

	if creds.Password == "" {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return creds, errors.New("password must be passed with --password when stdin is not a terminal")
		}
		_, _ = fmt.Fprint(out, "Password: ")
		pw, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(out)
		if err != nil {
			return creds, fmt.Errorf("failed to read password: %w", err)
		}
		creds.Password = string(pw)
	}
	return creds, nil
}
