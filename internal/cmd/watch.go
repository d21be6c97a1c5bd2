package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/sschnei8/predictionMarketExploro/internal/ingest"
	"github.com/sschnei8/predictionMarketExploro/internal/model"
	"github.com/sschnei8/predictionMarketExploro/internal/poller"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dataset>...",
	Short: "Keep datasets current by fetching them on an interval",
	Long: `Watch fetches each dataset once, then again every --every. After the first
run each fetch is incremental, or resumes if the previous one failed. All
datasets share one rate limit.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

var (
	watchEvery       time.Duration
	watchConcurrency int
	watchTimeout     time.Duration
)

func init() {
	watchCmd.Flags().DurationVar(&watchEvery, "every", poller.DefaultConfig().Interval, "time between fetch cycles")
	watchCmd.Flags().IntVar(&watchConcurrency, "concurrency", 1, "datasets fetched at once")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 0, "limit on a single fetch; 0 means none")
}

// WatchCommand returns the watch command.
func WatchCommand() *cobra.Command {
	return watchCmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(commandContext(cmd), logger)
	defer cancel()

	rt, err := newRuntime(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer rt.Close()
	stop := rt.serve()
	defer stop()

	p, err := newWatchPoller(rt, args, poller.Config{
		Interval:    watchEvery,
		Concurrency: watchConcurrency,
		Timeout:     watchTimeout,
	})
	if err != nil {
		return err
	}
	if err := p.Start(ctx); err != nil {
		return err
	}
	p.Wait()
	logger.Info("watch stopped", "cycles", p.Cycles())
	return nil
}

// newWatchPoller registers one auto-mode fetch job per dataset.
func newWatchPoller(rt *runtime, datasets []string, cfg poller.Config) (*poller.Poller, error) {
	p := poller.New(cfg, rt.logger)
	for _, name := range datasets {
		if _, err := model.LookupDataset(name); err != nil {
			return nil, err
		}
		p.Add(name, func(ctx context.Context) error {
			_, err := rt.fetch(ctx, name, fetchOverrides{mode: string(ingest.ModeAuto)})
			return err
		})
	}
	return p, nil
}
