package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sschnei8/predictionMarketExploro/internal/metrics"
	"github.com/sschnei8/predictionMarketExploro/internal/model"
)

// DefaultBatchSize matches the trades backfill, which buffers 100k rows per flush.
const DefaultBatchSize = 100_000

// ErrClosed is returned when records are added after Close.
var ErrClosed = errors.New("batch writer closed")

// Config holds batch writer settings.
type Config struct {
	BatchSize int
}

// DefaultConfig returns the default writer config.
func DefaultConfig() Config {
	return Config{BatchSize: DefaultBatchSize}
}

// WriterMetrics holds writer counters.
type WriterMetrics struct {
	Records int64 // rows handed to the sink successfully
	Flushes int64
	Errors  int64
}

// flushJob is one batch handed to the worker. done receives exactly one value.
type flushJob struct {
	records []model.Record
	done    chan error
}

// BatchWriter buffers records and hands full batches to a single background
// worker that owns the sink. At most one flush is outstanding: submitting a
// batch first waits for the previous one, so rows reach the sink in the order
// they were added and memory stays bounded to two batches.
type BatchWriter struct {
	cfg    Config
	sink   Sink
	logger *slog.Logger

	batch   []model.Record
	pending <-chan error

	jobs chan flushJob
	g    *errgroup.Group
	gctx context.Context

	mu         sync.Mutex
	metrics    WriterMetrics
	flushSizes []int

	started bool
	closed  bool
}

// NewBatchWriter creates a BatchWriter. Call Start before adding records.
func NewBatchWriter(cfg Config, sink Sink, logger *slog.Logger) *BatchWriter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchWriter{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		batch:  make([]model.Record, 0, cfg.BatchSize),
	}
}

// Start launches the flush worker. Flushes keep running when ctx is cancelled
// so a shutdown can still persist what was fetched.
func (w *BatchWriter) Start(ctx context.Context) error {
	if w.started {
		return errors.New("batch writer already started")
	}
	w.started = true

	w.jobs = make(chan flushJob)
	w.g, w.gctx = errgroup.WithContext(context.WithoutCancel(ctx))
	w.g.Go(w.worker)

	w.logger.Debug("batch writer started",
		"sink", w.sink.Name(),
		"batch_size", w.cfg.BatchSize,
	)
	return nil
}

// Add appends records, submitting a flush each time the batch reaches
// BatchSize. Batches are cut at exactly BatchSize rows.
func (w *BatchWriter) Add(ctx context.Context, records ...model.Record) error {
	if w.closed {
		return ErrClosed
	}
	for _, rec := range records {
		w.batch = append(w.batch, rec)
		if len(w.batch) >= w.cfg.BatchSize {
			if _, err := w.submitBatch(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Buffered returns the number of records not yet submitted.
func (w *BatchWriter) Buffered() int {
	return len(w.batch)
}

// Flush submits whatever is buffered and waits until the sink has it.
func (w *BatchWriter) Flush(ctx context.Context) error {
	if len(w.batch) > 0 {
		if _, err := w.submitBatch(ctx); err != nil {
			return err
		}
	}
	return w.wait(ctx)
}

// submitBatch hands the current batch to the worker and starts a new one.
func (w *BatchWriter) submitBatch(ctx context.Context) (<-chan error, error) {
	batch := w.batch
	w.batch = make([]model.Record, 0, w.cfg.BatchSize)
	return w.Submit(ctx, batch)
}

// Submit hands records to the worker as one flush and returns its future.
// It blocks until the previously submitted flush has finished; an error from
// that flush is returned here and the new batch is not submitted.
func (w *BatchWriter) Submit(ctx context.Context, records []model.Record) (<-chan error, error) {
	if !w.started {
		return nil, errors.New("batch writer not started")
	}
	if err := w.wait(ctx); err != nil {
		return nil, err
	}

	job := flushJob{records: records, done: make(chan error, 1)}
	select {
	case w.jobs <- job:
	case <-w.gctx.Done():
		return nil, fmt.Errorf("flush worker stopped: %w", context.Cause(w.gctx))
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	w.pending = job.done
	return job.done, nil
}

// wait blocks on the outstanding flush, if any.
func (w *BatchWriter) wait(ctx context.Context) error {
	if w.pending == nil {
		return nil
	}
	select {
	case err := <-w.pending:
		w.pending = nil
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker is the only goroutine that touches the sink. It stops at the first
// failed flush; later submissions then fail fast.
func (w *BatchWriter) worker() error {
	for job := range w.jobs {
		err := w.flush(w.gctx, job.records)
		job.done <- err
		close(job.done)
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *BatchWriter) flush(ctx context.Context, records []model.Record) error {
	start := time.Now()
	err := w.sink.Write(ctx, records)

	w.mu.Lock()
	if err != nil {
		w.metrics.Errors++
	} else {
		w.metrics.Records += int64(len(records))
		w.metrics.Flushes++
		w.flushSizes = append(w.flushSizes, len(records))
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("batch flush failed", "sink", w.sink.Name(), "count", len(records), "error", err)
		return fmt.Errorf("flush %d records to %s: %w", len(records), w.sink.Name(), err)
	}

	metrics.FlushesTotal.WithLabelValues(w.sink.Name()).Inc()
	metrics.FlushDuration.WithLabelValues(w.sink.Name()).Observe(time.Since(start).Seconds())

	w.logger.Info("flushed batch",
		"sink", w.sink.Name(),
		"count", len(records),
		"duration", time.Since(start),
	)
	return nil
}

// Close flushes the remaining records, stops the worker and closes the sink.
// It must be called on both success and failure paths; the sink is closed even
// when the final flush fails.
func (w *BatchWriter) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if w.started {
		if err := w.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
		close(w.jobs)
		if err := w.g.Wait(); err != nil && len(errs) == 0 {
			errs = append(errs, err)
		}
	}

	if err := w.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s: %w", w.sink.Name(), err))
	}
	return errors.Join(errs...)
}

// Stats returns current metrics.
func (w *BatchWriter) Stats() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// FlushSizes returns the size of every successful flush, in order.
func (w *BatchWriter) FlushSizes() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]int, len(w.flushSizes))
	copy(out, w.flushSizes)
	return out
}
