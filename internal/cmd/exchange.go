package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sschnei8/predictionMarketExploro/internal/config"
)

var exchangeCmd = &cobra.Command{
	Use:   "exchange",
	Short: "Check the exchange status and, when signing is configured, the balance",
	Args:  cobra.NoArgs,
	RunE:  runExchange,
}

// ExchangeCommand returns the exchange command.
func ExchangeCommand() *cobra.Command {
	return exchangeCmd
}

func runExchange(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	return printExchange(commandContext(cmd), stdout(cmd), cfg, logger)
}

func printExchange(ctx context.Context, w io.Writer, cfg *config.Config, logger *slog.Logger) error {
	client, err := newAPIClient(cfg, logger)
	if err != nil {
		return err
	}

	status, err := client.GetExchangeStatus(ctx)
	if err != nil {
		return err
	}
	pairs := [][2]string{
		{"API", cfg.API.RestURL},
		{"Exchange active", strconv.FormatBool(status.ExchangeActive)},
		{"Trading active", strconv.FormatBool(status.TradingActive)},
	}
	if status.EstimatedResumeTime != "" {
		pairs = append(pairs, [2]string{"Estimated resume", status.EstimatedResumeTime})
	}

	if cfg.API.PrivateKeyPath != "" {
		bal, err := client.GetBalance(ctx)
		if err != nil {
			return err
		}
		pairs = append(pairs, [2]string{"Balance", fmt.Sprintf("$%d.%02d", bal.Balance/100, bal.Balance%100)})
	}
	return renderPairs(w, pairs)
}
