package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sschnei8/predictionMarketExploro/internal/analysis"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <trades.parquet>",
	Short: "Run summary queries over a trades file",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var (
	analyzeQuery  string
	analyzeCSVDir string
	analyzeExact  bool
)

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeQuery, "query", "q", "all", "comma separated queries: weekly, contracts, bands, fees or all")
	analyzeCmd.Flags().StringVar(&analyzeCSVDir, "csv-dir", "", "also write each result to <dir>/<query>.csv")
	analyzeCmd.Flags().BoolVar(&analyzeExact, "exact-fees", false, "recompute fee revenue in exact decimal arithmetic")
}

// AnalyzeCommand returns the analyze command.
func AnalyzeCommand() *cobra.Command {
	return analyzeCmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	_, logger, err := loadConfig()
	if err != nil {
		return err
	}
	return analyze(commandContext(cmd), stdout(cmd), logger, args[0], analyzeQuery, analyzeCSVDir, analyzeExact)
}

func analyze(ctx context.Context, w io.Writer, logger *slog.Logger, path, spec, csvDir string, exact bool) error {
	queries, err := analysis.Select(spec)
	if err != nil {
		return err
	}

	a, err := analysis.Open(ctx, path, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, q := range queries {
		res, err := a.Run(ctx, q)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\n=== %s ===\n", q.Title)
		if err := renderTable(w, res.Columns, res.Rows); err != nil {
			return err
		}
		if csvDir != "" {
			out, err := a.ExportCSV(ctx, q, csvDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "wrote %s\n", out)
		}
	}

	if exact {
		s, err := analysis.FeeRevenue(ctx, path, 0)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\n=== Fee revenue (exact) ===\n")
		return renderPairs(w, [][2]string{
			{"Trades", fmt.Sprint(s.Trades)},
			{"Contracts", fmt.Sprint(s.Contracts)},
			{"Taker fees", s.Taker.StringFixed(2)},
			{"Maker fees", s.Maker.StringFixed(2)},
			{"Total fees", s.Total().StringFixed(2)},
		})
	}
	return nil
}
