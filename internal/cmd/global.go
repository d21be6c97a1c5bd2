// Package cmd implements the kalshi-ingest commands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sschnei8/predictionMarketExploro/internal/api"
	"github.com/sschnei8/predictionMarketExploro/internal/auth"
	"github.com/sschnei8/predictionMarketExploro/internal/config"
)

// Flags shared by every command.
var (
	configPath string
	envFile    string
	verbose    bool
)

// AddGlobalFlags registers the persistent flags on the root command.
func AddGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults and environment when empty)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig loads the dotenv file and the config, and installs the process
// logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, nil, err
	}

	var cfg *config.Config
	if configPath != "" {
		c, err := config.LoadAndValidate(configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = c
	} else {
		cfg = config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("validate config: %w", err)
		}
	}

	if verbose {
		cfg.Logging.Level = "debug"
	}
	logger := cfg.Logging.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// newAPIClient builds the REST client. Requests are signed when a private key
// is configured.
func newAPIClient(cfg *config.Config, logger *slog.Logger) (*api.Client, error) {
	opts := []api.ClientOption{
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.InitialBackoff),
		api.WithMaxBackoff(cfg.API.MaxBackoff),
		api.WithRateLimit(cfg.API.RequestsPerSecond),
	}
	if cfg.API.PrivateKeyPath != "" {
		creds, err := auth.LoadCredentials(cfg.API.APIKey, cfg.API.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load api credentials: %w", err)
		}
		opts = append(opts, api.WithSigner(creds))
	}
	return api.NewClient(cfg.API.RestURL, cfg.API.APIKey, opts...), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// stdout returns where a command prints its results.
func stdout(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stdout
	}
	return cmd.OutOrStdout()
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd == nil || cmd.Context() == nil {
		return context.Background()
	}
	return cmd.Context()
}
