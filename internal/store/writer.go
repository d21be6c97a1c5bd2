package store

import (
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/sschnei8/predictionMarketExploro/internal/model"
)

// Writer appends rows to a single Parquet file. It is not safe for concurrent
// use; the batch writer's flush worker is its only caller.
type Writer struct {
	path        string
	schema      model.Schema
	arrowSchema *arrow.Schema
	mem         memory.Allocator
	compression compress.Compression

	file    *os.File
	fw      *pqarrow.FileWriter
	rows    int64
	created bool
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithCompression sets the column compression codec. Default is snappy.
func WithCompression(c compress.Compression) WriterOption {
	return func(w *Writer) {
		w.compression = c
	}
}

// WithAllocator sets the arrow allocator.
func WithAllocator(mem memory.Allocator) WriterOption {
	return func(w *Writer) {
		w.mem = mem
	}
}

// NewWriter returns a Writer for path. Nothing touches the disk until the
// first Write or an explicit Open.
func NewWriter(path string, schema model.Schema, opts ...WriterOption) *Writer {
	w := &Writer{
		path:        path,
		schema:      schema,
		arrowSchema: ArrowSchema(schema),
		mem:         memory.DefaultAllocator,
		compression: compress.Codecs.Snappy,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the target file path.
func (w *Writer) Path() string { return w.path }

// Schema returns the row schema.
func (w *Writer) Schema() model.Schema { return w.schema }

// Rows returns the number of rows written so far.
func (w *Writer) Rows() int64 { return w.rows }

// Opened reports whether the file has been created. It stays true after
// Close.
func (w *Writer) Opened() bool { return w.created }

// Open creates (or truncates) the file and writes the Parquet header.
// Calling Open on an open writer is a no-op.
func (w *Writer) Open() error {
	if w.fw != nil {
		return nil
	}

	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("create %s: %w", w.path, err)
	}

	props := parquet.NewWriterProperties(parquet.WithCompression(w.compression))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	// pqarrow closes sinks that implement io.Closer; the file is closed here
	// after it has been synced.
	fw, err := pqarrow.NewFileWriter(w.arrowSchema, writeOnly{f}, props, arrowProps)
	if err != nil {
		f.Close()
		os.Remove(w.path)
		return fmt.Errorf("open parquet writer: %w", err)
	}

	w.file = f
	w.fw = fw
	w.created = true
	return nil
}

// Write appends rows as one row group, opening the file if needed.
func (w *Writer) Write(rows []model.Record) error {
	if len(rows) == 0 {
		return nil
	}
	if err := w.Open(); err != nil {
		return err
	}

	b := array.NewRecordBuilder(w.mem, w.arrowSchema)
	defer b.Release()

	if err := appendRecords(b, w.schema, rows); err != nil {
		return err
	}

	rec := b.NewRecord()
	defer rec.Release()

	if err := w.fw.Write(rec); err != nil {
		return fmt.Errorf("write row group: %w", err)
	}
	w.rows += int64(len(rows))
	return nil
}

// Close writes the footer, syncs and closes the file. Closing a writer that
// never opened is a no-op.
func (w *Writer) Close() error {
	if w.fw == nil {
		return nil
	}

	fw, f := w.fw, w.file
	w.fw, w.file = nil, nil

	if err := fw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", w.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", w.path, err)
	}
	return nil
}

// writeOnly hides the file's Close method from pqarrow.
type writeOnly struct {
	w io.Writer
}

func (o writeOnly) Write(p []byte) (int, error) {
	return o.w.Write(p)
}
