package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	commonlog "legalchat/server/common/log"
	"legalchat/server/legalchat/app"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg app.Config
	root := &cobra.Command{
		Use:           "legalchat",
		Short:         "Legal compliance assistant API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
			app.ConfigureLogging(cfg)
			return nil
		},
	}
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}
	root.RunE = serve.RunE
	root.AddCommand(serve, newMigrateCmd(&cfg), newCreateAdminCmd(&cfg))
	return root
}

func runServe(ctx context.Context, cfg app.Config) error {
	server, err := app.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		commonlog.Infof("event=startup action=listen status=ok addr=:%s env=%s", cfg.Port, cfg.Env)
		if err := server.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		_ = server.Shutdown(context.Background())
		return fmt.Errorf("run http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		commonlog.Warnf("event=shutdown action=http status=failed error=%v", err)
	}
	commonlog.Infof("event=shutdown action=stop status=ok")
	return nil
}

func newMigrateCmd(cfg *app.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			local := *cfg
			local.AutoMigrate = false
			pool, err := app.OpenDatabase(cmd.Context(), local)
			if err != nil {
				return err
			}
			defer pool.Close()
			return app.Migrate(pool)
		},
	}
}

func newCreateAdminCmd(cfg *app.Config) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := app.OpenDatabase(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			admin, err := app.NewAdminAccounts(pool).CreateAdmin(cmd.Context(), name, email, password)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s <%s>\n", admin.ID, admin.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "login password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
