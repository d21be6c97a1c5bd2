package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sschnei8/predictionMarketExploro/internal/checkpoint"
	"github.com/sschnei8/predictionMarketExploro/internal/metrics"
	"github.com/sschnei8/predictionMarketExploro/internal/model"
	"github.com/sschnei8/predictionMarketExploro/internal/pagination"
	"github.com/sschnei8/predictionMarketExploro/internal/store"
	"github.com/sschnei8/predictionMarketExploro/internal/writer"
)

// ErrPersistence marks a failure to write output, checkpoint or run metadata.
var ErrPersistence = errors.New("persistence failed")

// SideSuffix is appended to the output path to name the side file that
// isolates resumed or incremental rows until they are merged.
const SideSuffix = ".side.parquet"

// Options configures a Runner.
type Options struct {
	Dataset   model.Dataset
	Output    string
	SidePath  string // defaults to Output + SideSuffix
	Mode      Mode
	PageSize  int
	BatchSize int
	ChunkSize int // merge read chunk

	Checkpoints checkpoint.Store
	Metadata    checkpoint.MetadataStore

	// Mirror receives every flushed batch after the Parquet file.
	Mirror writer.Sink

	Logger *slog.Logger
	Now    func() time.Time
}

// Result summarizes a run.
type Result struct {
	RunID      string
	State      RunState
	Pages      int
	Records    int64
	FlushSizes []int
	Merged     bool
	Merge      store.MergeResult
	OutputRows int64
	Duration   time.Duration

	// Recovered is set when a side file left by a failed run was merged
	// before fetching.
	Recovered bool
	Recovery  store.MergeResult
}

// plan is what a RunState means for one run.
type plan struct {
	state       RunState
	startCursor string
	minTS       int64
	writeTo     string
}

// Runner executes runs of one dataset.
type Runner struct {
	src    pagination.PageSource
	opts   Options
	logger *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(src pagination.PageSource, opts Options) *Runner {
	if opts.SidePath == "" {
		opts.SidePath = opts.Output + SideSuffix
	}
	if opts.Mode == "" {
		opts.Mode = ModeAuto
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{src: src, opts: opts, logger: logger}
}

// Run performs one run. On failure after the first request the last cursor
// stays checkpointed and everything fetched so far is flushed, so a later
// run resumes where this one stopped.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	ds := r.opts.Dataset
	logger := r.logger.With("run_id", res.RunID, "dataset", ds.Name)
	started := r.opts.Now()

	det, err := DetectState(ctx, r.opts.Checkpoints, r.opts.Metadata, r.opts.Output)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	p, err := r.prepare(ctx, logger, det, &res)
	if err != nil {
		metrics.RunsTotal.WithLabelValues(ds.Name, "error").Inc()
		return res, err
	}
	res.State = p.state

	logger.Info("run starting",
		"state", p.state,
		"mode", r.opts.Mode,
		"output", r.opts.Output,
		"write_to", p.writeTo,
		"start_cursor", p.startCursor,
		"min_ts", p.minTS,
	)

	err = r.execute(ctx, logger, p, &res)
	res.Duration = r.opts.Now().Sub(started)
	if err != nil {
		metrics.RunsTotal.WithLabelValues(ds.Name, "error").Inc()
		logger.Error("run failed", "pages", res.Pages, "records", res.Records, "error", err)
		return res, err
	}

	metrics.RunsTotal.WithLabelValues(ds.Name, "success").Inc()
	logger.Info("run complete",
		"state", p.state,
		"pages", res.Pages,
		"records", res.Records,
		"output_rows", res.OutputRows,
		"duration", res.Duration,
	)
	return res, nil
}

// prepare resolves the run state and clears whatever state it invalidates.
func (r *Runner) prepare(ctx context.Context, logger *slog.Logger, det Detection, res *Result) (plan, error) {
	p := plan{state: det.Resolve(r.opts.Mode), writeTo: r.opts.Output}
	outputExists := det.OutputExists

	if p.state != FreshStart {
		recovered, err := r.recoverSide(ctx, logger, res)
		if err != nil {
			return p, err
		}
		outputExists = outputExists || recovered
	}

	switch p.state {
	case FreshStart:
		if removed, err := removeIfExists(r.opts.SidePath); err != nil {
			return p, fmt.Errorf("%w: remove side file: %w", ErrPersistence, err)
		} else if removed {
			logger.Info("removed leftover side file", "path", r.opts.SidePath)
		}
		if removed, err := removeIfExists(r.opts.Output); err != nil {
			return p, fmt.Errorf("%w: remove output: %w", ErrPersistence, err)
		} else if removed {
			logger.Info("removed existing output", "path", r.opts.Output)
		}
		if err := r.opts.Checkpoints.Delete(ctx); err != nil {
			return p, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		// The metadata describes the file just removed.
		if err := r.opts.Metadata.Delete(ctx); err != nil {
			return p, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		if rs, ok := r.opts.Mirror.(writer.Resetter); ok {
			if err := rs.Reset(ctx); err != nil {
				return p, fmt.Errorf("%w: reset %s: %w", ErrPersistence, r.opts.Mirror.Name(), err)
			}
		}

	case ResumePending:
		p.startCursor = det.Checkpoint.Cursor
		if det.HasMetadata {
			// The interrupted run was incremental; keep its filter so the
			// cursor is replayed against the same query.
			p.minTS = det.Metadata.LastRunUnix
		}
		if outputExists {
			p.writeTo = r.opts.SidePath
		}
		logger.Info("resuming from checkpoint",
			"cursor", p.startCursor,
			"saved_at", det.Checkpoint.Timestamp,
		)

	case IncrementalPending:
		p.minTS = det.Metadata.LastRunUnix
		if outputExists {
			p.writeTo = r.opts.SidePath
		} else {
			logger.Warn("output missing, incremental rows go straight to it", "path", r.opts.Output)
		}
		logger.Info("incremental run",
			"since", det.Metadata.LastRunTimestamp,
			"min_ts", p.minTS,
		)
	}
	return p, nil
}

// recoverSide merges a side file left by a failed run into the output. The
// checkpoint of that run was saved after the rows in it, so they would not
// be fetched again. It reports whether the output exists afterwards.
func (r *Runner) recoverSide(ctx context.Context, logger *slog.Logger, res *Result) (bool, error) {
	ok, err := fileExists(r.opts.SidePath)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if !ok {
		return false, nil
	}

	logger.Info("merging side file left by an earlier run", "path", r.opts.SidePath)
	mres, err := store.Merge(ctx, store.MergeOptions{
		Base:      r.opts.Output,
		Side:      r.opts.SidePath,
		KeyColumn: r.opts.Dataset.KeyColumn,
		ChunkSize: r.opts.ChunkSize,
		Logger:    logger,
	})
	if err != nil {
		return false, fmt.Errorf("recover side file %s: %w", r.opts.SidePath, err)
	}
	if _, err := removeIfExists(r.opts.SidePath); err != nil {
		return false, fmt.Errorf("%w: remove side file: %w", ErrPersistence, err)
	}
	res.Recovered = true
	res.Recovery = mres
	return true, nil
}

func (r *Runner) execute(ctx context.Context, logger *slog.Logger, p plan, res *Result) error {
	ds := r.opts.Dataset
	// The next incremental run starts where this one started; rows created
	// while it ran are refetched and deduplicated by the merge.
	started := r.opts.Now()

	parquet := writer.NewParquetSink(p.writeTo, ds.Schema)
	sink := writer.Sink(parquet)
	if r.opts.Mirror != nil {
		sink = writer.NewMultiSink(parquet, r.opts.Mirror)
	}
	bw := writer.NewBatchWriter(writer.Config{BatchSize: r.opts.BatchSize}, sink, logger)
	if err := bw.Start(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	f := pagination.New(r.src, pagination.Options{
		Dataset:     ds,
		PageSize:    r.opts.PageSize,
		StartCursor: p.startCursor,
		MinTS:       p.minTS,
		Logger:      logger,
	})

	prog := &progress{cursor: p.startCursor}
	loopErr := r.fetchAll(ctx, f, bw, prog)
	res.Pages = f.PageCount()
	res.Records = f.RecordCount()

	// Close runs on both paths so every fetched row reaches disk. It must
	// not inherit a cancelled run context.
	closeErr := bw.Close(context.WithoutCancel(ctx))
	res.FlushSizes = bw.FlushSizes()

	if loopErr != nil || closeErr != nil {
		prog.advance(bw.Stats().Records)
		r.saveOnFailure(ctx, logger, prog.cursor)
		if closeErr != nil {
			closeErr = fmt.Errorf("%w: close writer: %w", ErrPersistence, closeErr)
		}
		return errors.Join(loopErr, closeErr)
	}

	if p.writeTo == r.opts.SidePath && parquet.Opened() {
		mres, err := store.Merge(ctx, store.MergeOptions{
			Base:      r.opts.Output,
			Side:      r.opts.SidePath,
			KeyColumn: ds.KeyColumn,
			ChunkSize: r.opts.ChunkSize,
			Logger:    logger,
		})
		if err != nil {
			// The checkpoint and the side file are left in place; the next
			// run merges the side file before resuming.
			return err
		}
		res.Merged = true
		res.Merge = mres
		if _, err := removeIfExists(r.opts.SidePath); err != nil {
			// The next run merges it again, which only replaces rows with
			// themselves.
			logger.Warn("failed to remove merged side file", "path", r.opts.SidePath, "error", err)
		}
	}

	if err := r.opts.Metadata.Save(ctx, started); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := r.opts.Checkpoints.Delete(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if ok, _ := fileExists(r.opts.Output); ok {
		n, err := store.CountRows(r.opts.Output)
		if err != nil {
			return fmt.Errorf("count output rows: %w", err)
		}
		res.OutputRows = n
	}
	return nil
}

// fetchAll walks every page into the writer, checkpointing each cursor.
func (r *Runner) fetchAll(ctx context.Context, f *pagination.Fetcher, bw *writer.BatchWriter, prog *progress) error {
	var added int64
	for page, err := range f.Pages(ctx) {
		if err != nil {
			return fmt.Errorf("fetch page %d: %w", f.PageCount()+1, err)
		}
		if err := bw.Add(ctx, page.Records...); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		added += int64(len(page.Records))
		prog.add(added, page.Cursor)
		prog.advance(bw.Stats().Records)

		if page.Cursor != "" {
			if err := r.opts.Checkpoints.Save(ctx, page.Cursor); err != nil {
				return fmt.Errorf("%w: %w", ErrPersistence, err)
			}
		}
	}
	return nil
}

// progress tracks which page cursors are safe to resume from. A cursor is
// safe once every row of the pages before it has reached the sink.
type progress struct {
	cursor  string     // last safe cursor; the start cursor until a page is flushed
	pending []pageMark // pages whose rows may still be buffered
}

// pageMark is the cursor after a page and the run's row count including it.
type pageMark struct {
	rows   int64
	cursor string
}

func (p *progress) add(rows int64, cursor string) {
	p.pending = append(p.pending, pageMark{rows: rows, cursor: cursor})
}

// advance marks every page within the first flushed rows as safe.
func (p *progress) advance(flushed int64) {
	i := 0
	for ; i < len(p.pending) && p.pending[i].rows <= flushed; i++ {
		p.cursor = p.pending[i].cursor
	}
	p.pending = p.pending[i:]
}

// saveOnFailure checkpoints the last safe cursor so a resume refetches every
// row that did not reach the sink. An empty cursor means nothing is safe to
// skip, so the checkpoint is removed. Failures here are logged; the run error
// is what the caller sees.
func (r *Runner) saveOnFailure(ctx context.Context, logger *slog.Logger, cursor string) {
	ctx = context.WithoutCancel(ctx)
	if cursor == "" {
		if err := r.opts.Checkpoints.Delete(ctx); err != nil {
			logger.Error("failed to clear checkpoint after error", "error", err)
		}
		return
	}
	if err := r.opts.Checkpoints.Save(ctx, cursor); err != nil {
		logger.Error("failed to save checkpoint after error", "cursor", cursor, "error", err)
		return
	}
	logger.Warn("checkpoint saved after error; rerun to resume", "cursor", cursor)
}
