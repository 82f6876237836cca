// Package cmd defines and implements the CLI commands for the chansearch executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/chansearch/internal/api"
	"github.com/JakeFAU/chansearch/internal/app"
	"github.com/JakeFAU/chansearch/internal/config"
	"github.com/JakeFAU/chansearch/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "chansearch",
		Short: "Crawls public channel history into a searchable index.",
		Long: `chansearch incrementally crawls message history from public channels into a
durable message store and sweeps that store into a full-text search index.`,
		SilenceUsage: true,

		// Builds the application container and injects it into the command context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := app.NewApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			if err := appInstance.EnsureSchema(cmd.Context()); err != nil {
				appInstance.Close()
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			appInstance, ok := cmd.Context().Value(appKey).(*app.App)
			if !ok || appInstance == nil {
				return
			}
			appInstance.Close()
			_ = appInstance.Logger().Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newChannelCmd())
	return cmd
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "chansearch: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// startOpsServer runs the operator endpoint in the background when it is enabled.
func startOpsServer(ctx context.Context, a *app.App) {
	cfg := a.Config().Server
	if !cfg.Enabled {
		return
	}
	srv := api.NewServer(a.Store(), a.Logger().Named("api"))
	go func() {
		if err := srv.ListenAndServe(ctx, cfg.Port); err != nil {
			a.Logger().Error("ops server failed", zap.Error(err))
		}
	}()
}
