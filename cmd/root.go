// Package cmd defines the gpwatch CLI commands.
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

	"github.com/JakeFAU/gp-agenda-watcher/internal/app"
	"github.com/JakeFAU/gp-agenda-watcher/internal/config"
	"github.com/JakeFAU/gp-agenda-watcher/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so tests can swap it.
var newApp = app.New

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "gpwatch",
		Short: "Watches the Galena Park agenda folder and posts new documents to Discord.",
		Long: `gpwatch polls the City of Galena Park CivicPlus document center, compares the
listed document IDs with the IDs seen on earlier runs and posts newly published
agendas to a Discord webhook. Run "check" from a scheduler, or "watch" to keep
a long-running process with its own cron schedule and HTTP endpoints.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Flags are parsed by now, so subcommand overrides can be folded into the config.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			applyFlagOverrides(cmd, &cfg)

			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")

	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStateCmd())
	return cmd
}

// applyFlagOverrides lets boolean flags switch on options the environment left off.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if on, err := cmd.Flags().GetBool("force-notify"); err == nil && on {
		cfg.Notify.Force = true
	}
	if on, err := cmd.Flags().GetBool("daily"); err == nil && on {
		cfg.Notify.Daily = true
	}
}

// withApp resolves the App built by PersistentPreRunE and closes it once fn
// returns, whether or not fn failed.
func withApp(fn func(cmd *cobra.Command, a *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		appInstance, ok := cmd.Context().Value(appKey).(*app.App)
		if !ok || appInstance == nil {
			return errors.New("application services not initialized")
		}
		defer appInstance.Close()
		return fn(cmd, appInstance)
	}
}

// Execute is the main entry point. It exits with status 1 on any failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gpwatch: %v\n", err)
		os.Exit(1)
	}
}
