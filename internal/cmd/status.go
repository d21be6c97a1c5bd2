package cmd

import (
	"context"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sschnei8/predictionMarketExploro/internal/ingest"
	"github.com/sschnei8/predictionMarketExploro/internal/model"
	"github.com/sschnei8/predictionMarketExploro/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status <dataset>",
	Short: "Show how the next fetch of a dataset would start",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

// StatusCommand returns the status command.
func StatusCommand() *cobra.Command {
	return statusCmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	rt, err := newRuntime(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer rt.Close()
	return printStatus(ctx, stdout(cmd), rt, args[0])
}

func printStatus(ctx context.Context, w io.Writer, rt *runtime, name string) error {
	if _, err := model.LookupDataset(name); err != nil {
		return err
	}
	settings := rt.cfg.Dataset(name)
	state := rt.state(settings)

	det, err := ingest.DetectState(ctx, state.checkpoints, state.metadata, settings.Output)
	if err != nil {
		return err
	}

	pairs := [][2]string{
		{"Dataset", name},
		{"Next run", det.State.String()},
		{"Output", settings.Output},
		{"State", state.location},
	}
	if det.OutputExists {
		if n, err := store.CountRows(settings.Output); err == nil {
			pairs = append(pairs, [2]string{"Output rows", strconv.FormatInt(n, 10)})
		}
	} else {
		pairs = append(pairs, [2]string{"Output rows", "missing"})
	}
	if det.HasCheckpoint {
		pairs = append(pairs,
			[2]string{"Checkpoint cursor", det.Checkpoint.Cursor},
			[2]string{"Checkpoint saved", det.Checkpoint.Timestamp},
		)
	}
	if det.HasMetadata {
		pairs = append(pairs,
			[2]string{"Last run", det.Metadata.LastRunTimestamp},
			[2]string{"Next min_ts", strconv.FormatInt(det.Metadata.LastRunUnix, 10)},
		)
	}
	return renderPairs(w, pairs)
}
