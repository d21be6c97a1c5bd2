package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sschnei8/predictionMarketExploro/internal/config"
	"github.com/sschnei8/predictionMarketExploro/internal/database"
	"github.com/sschnei8/predictionMarketExploro/internal/export"
	"github.com/sschnei8/predictionMarketExploro/internal/ingest"
	"github.com/sschnei8/predictionMarketExploro/internal/model"
	"github.com/sschnei8/predictionMarketExploro/internal/writer"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <dataset>",
	Short: "Fetch a Kalshi dataset into its Parquet store",
	Long: `Fetch walks every page of a dataset and appends it to the dataset's Parquet file.

In auto mode an unfinished run is resumed from its checkpoint, a finished one
is followed by an incremental run, and anything else starts fresh.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

var (
	fetchMode      string
	fetchOutput    string
	fetchBatchSize int
	fetchPageSize  int
	fetchNoMirror  bool
	fetchNoExport  bool
)

func init() {
	fetchCmd.Flags().StringVar(&fetchMode, "mode", "", "auto, fresh, resume or incremental (default from config)")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "Parquet output path (default from config)")
	fetchCmd.Flags().IntVar(&fetchBatchSize, "batch-size", 0, "rows per flush (default from config)")
	fetchCmd.Flags().IntVar(&fetchPageSize, "page-size", 0, "items per request, at most 1000 (default from config)")
	fetchCmd.Flags().BoolVar(&fetchNoMirror, "no-mirror", false, "skip the Postgres mirror even when enabled")
	fetchCmd.Flags().BoolVar(&fetchNoExport, "no-export", false, "skip the object store upload even when enabled")
}

// FetchCommand returns the fetch command.
func FetchCommand() *cobra.Command {
	return fetchCmd
}

// fetchOverrides are command line settings that win over the config.
type fetchOverrides struct {
	mode      string
	output    string
	batchSize int
	pageSize  int
	noExport  bool
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(commandContext(cmd), logger)
	defer cancel()

	rt, err := newRuntime(ctx, cfg, logger, !fetchNoMirror)
	if err != nil {
		return err
	}
	defer rt.Close()
	stop := rt.serve()
	defer stop()

	res, err := rt.fetch(ctx, args[0], fetchOverrides{
		mode:      fetchMode,
		output:    fetchOutput,
		batchSize: fetchBatchSize,
		pageSize:  fetchPageSize,
		noExport:  fetchNoExport,
	})
	if res.RunID != "" {
		if perr := printFetchResult(stdout(cmd), res); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}

// fetch performs one run of a dataset with everything the config enables
// around it.
func (rt *runtime) fetch(ctx context.Context, name string, o fetchOverrides) (ingest.Result, error) {
	cfg, logger := rt.cfg, rt.logger

	ds, err := model.LookupDataset(name)
	if err != nil {
		return ingest.Result{}, err
	}

	settings := cfg.Dataset(name)
	if o.output != "" {
		settings.Output = o.output
	}
	if o.batchSize > 0 {
		settings.BatchSize = o.batchSize
	}
	if o.pageSize > 0 {
		settings.PageSize = o.pageSize
	}
	modeName := cfg.Run.Mode
	if o.mode != "" {
		modeName = o.mode
	}
	mode, err := ingest.ParseMode(modeName)
	if err != nil {
		return ingest.Result{}, err
	}

	for _, p := range []string{settings.Output, settings.Checkpoint, settings.Metadata} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return ingest.Result{}, fmt.Errorf("create data dir: %w", err)
		}
	}

	var mirror writer.Sink
	if rt.pool != nil {
		m := database.NewMirrorSink(rt.pool, settings.Table, ds, logger)
		if err := m.EnsureTable(ctx); err != nil {
			return ingest.Result{}, err
		}
		mirror = m
	}

	state := rt.state(settings)
	rt.status.set(name, "fetching")
	runner := ingest.NewRunner(rt.client, ingest.Options{
		Dataset:     ds,
		Output:      settings.Output,
		Mode:        mode,
		PageSize:    settings.PageSize,
		BatchSize:   settings.BatchSize,
		ChunkSize:   cfg.Run.MergeChunkSize,
		Checkpoints: state.checkpoints,
		Metadata:    state.metadata,
		Mirror:      mirror,
		Logger:      logger,
	})
	res, err := runner.Run(ctx)
	if err != nil {
		rt.status.set(name, "failed")
		return res, err
	}

	if cfg.Export.Enabled && !o.noExport && res.OutputRows > 0 {
		rt.status.set(name, "exporting")
		if err := exportOutput(ctx, cfg.Export, settings.Output, name, res, logger); err != nil {
			rt.status.set(name, "failed")
			return res, err
		}
	}
	rt.status.set(name, "done")
	return res, nil
}

// exportOutput uploads the finished store.
func exportOutput(ctx context.Context, cfg config.ExportConfig, path, dataset string, res ingest.Result, logger *slog.Logger) error {
	u, err := export.NewUploader(cfg, logger)
	if err != nil {
		return err
	}
	if err := u.EnsureBucket(ctx); err != nil {
		return err
	}
	_, err = u.Upload(ctx, path, map[string]string{
		"run-id":  res.RunID,
		"dataset": dataset,
		"rows":    strconv.FormatInt(res.OutputRows, 10),
	})
	return err
}

func printFetchResult(w io.Writer, res ingest.Result) error {
	pairs := [][2]string{
		{"Run", res.RunID},
		{"State", res.State.String()},
		{"Pages", strconv.Itoa(res.Pages)},
		{"Records", strconv.FormatInt(res.Records, 10)},
		{"Flushes", fmt.Sprint(res.FlushSizes)},
	}
	if res.Recovered {
		pairs = append(pairs, [2]string{"Recovered", fmt.Sprintf("%d rows from an earlier run", res.Recovery.SideRows)})
	}
	if res.Merged {
		pairs = append(pairs,
			[2]string{"Merged", fmt.Sprintf("%d + %d rows", res.Merge.BaseRows, res.Merge.SideRows)},
			[2]string{"Duplicates", strconv.FormatInt(res.Merge.Duplicates, 10)},
		)
	}
	pairs = append(pairs,
		[2]string{"Output rows", strconv.FormatInt(res.OutputRows, 10)},
		[2]string{"Duration", res.Duration.Round(time.Millisecond).String()},
	)
	return renderPairs(w, pairs)
}
