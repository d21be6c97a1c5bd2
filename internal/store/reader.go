package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/sschnei8/predictionMarketExploro/internal/model"
)

// DefaultChunkSize is the number of rows read per batch when streaming.
const DefaultChunkSize = 100_000

// Reader streams rows out of a Parquet file.
type Reader struct {
	path      string
	pf        *file.Reader
	fr        *pqarrow.FileReader
	schema    model.Schema
	chunkSize int
}

// OpenReader opens path for streaming reads of at most chunkSize rows per batch.
func OpenReader(path string, chunkSize int) (*Reader, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: int64(chunkSize)}, memory.DefaultAllocator)
	if err != nil {
		pf.Close()
		return nil, fmt.Errorf("arrow reader for %s: %w", path, err)
	}

	as, err := fr.Schema()
	if err != nil {
		pf.Close()
		return nil, fmt.Errorf("read schema of %s: %w", path, err)
	}

	schema, err := modelSchema(as)
	if err != nil {
		pf.Close()
		return nil, fmt.Errorf("schema of %s: %w", path, err)
	}

	return &Reader{
		path:      path,
		pf:        pf,
		fr:        fr,
		schema:    schema,
		chunkSize: chunkSize,
	}, nil
}

// Schema returns the file's schema.
func (r *Reader) Schema() model.Schema { return r.schema }

// NumRows returns the row count recorded in the file footer.
func (r *Reader) NumRows() int64 { return r.pf.NumRows() }

// Batches yields the file's rows in order, one chunk at a time.
func (r *Reader) Batches(ctx context.Context) iter.Seq2[[]model.Record, error] {
	return func(yield func([]model.Record, error) bool) {
		rr, err := r.fr.GetRecordReader(ctx, nil, nil)
		if err != nil {
			yield(nil, fmt.Errorf("record reader for %s: %w", r.path, err))
			return
		}
		defer rr.Release()

		for rr.Next() {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			rows, err := toRecords(rr.Record())
			if err != nil {
				yield(nil, fmt.Errorf("read %s: %w", r.path, err))
				return
			}
			if !yield(rows, nil) {
				return
			}
		}
		if err := rr.Err(); err != nil && !errors.Is(err, io.EOF) {
			yield(nil, fmt.Errorf("read %s: %w", r.path, err))
		}
	}
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.pf.Close()
}

// ReadAll loads every row of path into memory.
func ReadAll(ctx context.Context, path string) (model.Schema, []model.Record, error) {
	r, err := OpenReader(path, 0)
	if err != nil {
		return model.Schema{}, nil, err
	}
	defer r.Close()

	var all []model.Record
	for rows, err := range r.Batches(ctx) {
		if err != nil {
			return model.Schema{}, nil, err
		}
		all = append(all, rows...)
	}
	return r.Schema(), all, nil
}

// CountRows returns the number of rows in path without reading any data pages.
func CountRows(path string) (int64, error) {
	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer pf.Close()
	return pf.NumRows(), nil
}
