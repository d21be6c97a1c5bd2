package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sschnei8/predictionMarketExploro/internal/model"
	"github.com/sschnei8/predictionMarketExploro/internal/store"
)

// Sink persists batches of rows. Write is only ever called from the batch
// writer's worker goroutine.
type Sink interface {
	Name() string
	Write(ctx context.Context, records []model.Record) error
	Close() error
}

// Resetter is implemented by sinks that keep rows across runs. A fresh run
// calls Reset before its first write.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ParquetSink writes batches as row groups of one Parquet file. The file is
// created on the first non-empty batch.
type ParquetSink struct {
	w *store.Writer
}

// NewParquetSink creates a sink for path. Nothing touches disk until the
// first write.
func NewParquetSink(path string, schema model.Schema, opts ...store.WriterOption) *ParquetSink {
	return &ParquetSink{w: store.NewWriter(path, schema, opts...)}
}

// Name implements Sink.
func (s *ParquetSink) Name() string { return "parquet" }

// Path returns the output file path.
func (s *ParquetSink) Path() string { return s.w.Path() }

// Rows returns the number of rows written.
func (s *ParquetSink) Rows() int64 { return s.w.Rows() }

// Opened reports whether the file has been created, before or after Close.
func (s *ParquetSink) Opened() bool { return s.w.Opened() }

// Write implements Sink.
func (s *ParquetSink) Write(_ context.Context, records []model.Record) error {
	return s.w.Write(records)
}

// Close implements Sink.
func (s *ParquetSink) Close() error {
	return s.w.Close()
}

// MultiSink writes each batch to every sink in order. A failing sink stops
// the batch; the sinks after it do not see it.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks. With a single sink it returns that sink.
func NewMultiSink(sinks ...Sink) Sink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return &MultiSink{sinks: sinks}
}

// Name implements Sink.
func (m *MultiSink) Name() string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

// Write implements Sink.
func (m *MultiSink) Write(ctx context.Context, records []model.Record) error {
	for _, s := range m.sinks {
		if err := s.Write(ctx, records); err != nil {
			return fmt.Errorf("%s: %w", s.Name(), err)
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
