package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sschnei8/predictionMarketExploro/internal/config"
	"github.com/sschnei8/predictionMarketExploro/internal/store"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge a side Parquet file into a base file",
	Long: `Merge appends the rows of --side to --base. With --key, a side row replaces
any base row with the same key. Without --out the base file is replaced
atomically; with --out both inputs are left untouched.`,
	Args: cobra.NoArgs,
	RunE: runMerge,
}

var (
	mergeBase      string
	mergeSide      string
	mergeOut       string
	mergeKey       string
	mergeChunkSize int
)

func init() {
	mergeCmd.Flags().StringVar(&mergeBase, "base", "", "base Parquet file (required)")
	mergeCmd.Flags().StringVar(&mergeSide, "side", "", "Parquet file whose rows win (required)")
	mergeCmd.Flags().StringVar(&mergeOut, "out", "", "write the result here instead of replacing --base")
	mergeCmd.Flags().StringVar(&mergeKey, "key", "", "dedup key column; empty keeps every row")
	mergeCmd.Flags().IntVar(&mergeChunkSize, "chunk-size", config.DefaultMergeChunkSize, "rows per streamed batch")
	mergeCmd.MarkFlagRequired("base")
	mergeCmd.MarkFlagRequired("side")
}

// MergeCommand returns the merge command.
func MergeCommand() *cobra.Command {
	return mergeCmd
}

func runMerge(cmd *cobra.Command, args []string) error {
	_, logger, err := loadConfig()
	if err != nil {
		return err
	}
	res, err := mergeFiles(commandContext(cmd), logger, mergeBase, mergeSide, mergeOut, mergeKey, mergeChunkSize)
	if err != nil {
		return err
	}
	return printMergeResult(stdout(cmd), res)
}

func mergeFiles(ctx context.Context, logger *slog.Logger, base, side, out, key string, chunkSize int) (store.MergeResult, error) {
	if base == "" || side == "" {
		return store.MergeResult{}, errors.New("--base and --side are required")
	}
	if out == "" || out == base {
		return store.Merge(ctx, store.MergeOptions{
			Base:      base,
			Side:      side,
			KeyColumn: key,
			ChunkSize: chunkSize,
			Logger:    logger,
		})
	}
	return store.MergeFiles(ctx, base, side, out, key, chunkSize, logger)
}

func printMergeResult(w io.Writer, res store.MergeResult) error {
	return renderPairs(w, [][2]string{
		{"Base rows", strconv.FormatInt(res.BaseRows, 10)},
		{"Side rows", strconv.FormatInt(res.SideRows, 10)},
		{"Duplicates", strconv.FormatInt(res.Duplicates, 10)},
		{"Rows", strconv.FormatInt(res.Rows, 10)},
	})
}
