package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// ErrMerge marks any failure while reconciling a side file into a base file.
// The base file is untouched when an error carrying ErrMerge is returned.
var ErrMerge = errors.New("merge failed")

// MergeOptions configures Merge.
type MergeOptions struct {
	Base      string // authoritative file, replaced on success
	Side      string // newly fetched rows
	KeyColumn string // dedup key; empty concatenates without dedup
	ChunkSize int    // rows per streamed batch
	Logger    *slog.Logger
}

// MergeResult summarizes a merge.
type MergeResult struct {
	BaseRows   int64
	SideRows   int64
	Rows       int64 // rows in the merged file
	Duplicates int64 // rows dropped because a later row had the same key
}

// TempPath returns the temporary file a merge into base writes to.
func TempPath(base string) string {
	return base + ".merge_tmp"
}

// Merge folds Side into Base. Rows are read in the order base then side; when
// KeyColumn is set only the last row seen for each key survives, so a side row
// replaces the base row it collides with. Rows with a null key are always kept.
//
// Neither file is loaded whole: the key pass keeps one position per distinct
// key, the copy pass holds one chunk at a time.
func Merge(ctx context.Context, opts MergeOptions) (MergeResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := os.Stat(opts.Side); errors.Is(err, os.ErrNotExist) {
		logger.Info("no side file, nothing to merge", "side", opts.Side)
		n, err := CountRows(opts.Base)
		if err != nil {
			return MergeResult{}, fmt.Errorf("%w: %w", ErrMerge, err)
		}
		return MergeResult{BaseRows: n, Rows: n}, nil
	}

	if _, err := os.Stat(opts.Base); errors.Is(err, os.ErrNotExist) {
		if err := os.Rename(opts.Side, opts.Base); err != nil {
			return MergeResult{}, fmt.Errorf("%w: promote side file: %w", ErrMerge, err)
		}
		n, err := CountRows(opts.Base)
		if err != nil {
			return MergeResult{}, fmt.Errorf("%w: %w", ErrMerge, err)
		}
		logger.Info("base missing, promoted side file", "base", opts.Base, "rows", n)
		return MergeResult{SideRows: n, Rows: n}, nil
	}

	tmp := TempPath(opts.Base)
	res, err := merge(ctx, opts, tmp)
	if err != nil {
		os.Remove(tmp)
		return MergeResult{}, fmt.Errorf("%w: %w", ErrMerge, err)
	}

	if err := os.Rename(tmp, opts.Base); err != nil {
		os.Remove(tmp)
		return MergeResult{}, fmt.Errorf("%w: replace base: %w", ErrMerge, err)
	}

	logger.Info("merge complete",
		"base", opts.Base,
		"base_rows", res.BaseRows,
		"side_rows", res.SideRows,
		"rows", res.Rows,
		"duplicates", res.Duplicates,
	)
	return res, nil
}

func merge(ctx context.Context, opts MergeOptions, tmp string) (MergeResult, error) {
	base, err := OpenReader(opts.Base, opts.ChunkSize)
	if err != nil {
		return MergeResult{}, err
	}
	defer base.Close()

	side, err := OpenReader(opts.Side, opts.ChunkSize)
	if err != nil {
		return MergeResult{}, err
	}
	defer side.Close()

	schema := base.Schema()
	if !schema.Equal(side.Schema()) {
		return MergeResult{}, fmt.Errorf("schema mismatch: base %v, side %v", schema.Names(), side.Schema().Names())
	}

	res := MergeResult{BaseRows: base.NumRows(), SideRows: side.NumRows()}
	inputs := []*Reader{base, side}

	keyIdx := -1
	var last map[string]int64
	if opts.KeyColumn != "" {
		keyIdx = schema.Index(opts.KeyColumn)
		if keyIdx < 0 {
			return MergeResult{}, fmt.Errorf("key column %q not in schema", opts.KeyColumn)
		}
		last, err = lastPositions(ctx, inputs, keyIdx)
		if err != nil {
			return MergeResult{}, err
		}
	}

	w := NewWriter(tmp, schema)
	if err := w.Open(); err != nil {
		return MergeResult{}, err
	}

	var pos int64
	for _, in := range inputs {
		for rows, err := range in.Batches(ctx) {
			if err != nil {
				w.Close()
				return MergeResult{}, err
			}
			kept := rows
			if keyIdx >= 0 {
				kept = rows[:0:0]
				for _, row := range rows {
					key, ok := keyString(row[keyIdx])
					if !ok || last[key] == pos {
						kept = append(kept, row)
					} else {
						res.Duplicates++
					}
					pos++
				}
			}
			if err := w.Write(kept); err != nil {
				w.Close()
				return MergeResult{}, err
			}
		}
	}

	res.Rows = w.Rows()
	if err := w.Close(); err != nil {
		return MergeResult{}, err
	}
	return res, nil
}

// lastPositions maps each key to the global position of its final occurrence.
func lastPositions(ctx context.Context, inputs []*Reader, keyIdx int) (map[string]int64, error) {
	last := make(map[string]int64)
	var pos int64
	for _, in := range inputs {
		for rows, err := range in.Batches(ctx) {
			if err != nil {
				return nil, err
			}
			for _, row := range rows {
				if key, ok := keyString(row[keyIdx]); ok {
					last[key] = pos
				}
				pos++
			}
		}
	}
	return last, nil
}

func keyString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	default:
		return fmt.Sprint(x), true
	}
}

// MergeFiles writes the merge of base and side to out, leaving both inputs in
// place. It is the building block for one-off merges from the command line.
func MergeFiles(ctx context.Context, base, side, out, key string, chunkSize int, logger *slog.Logger) (MergeResult, error) {
	if out == base {
		return Merge(ctx, MergeOptions{Base: base, Side: side, KeyColumn: key, ChunkSize: chunkSize, Logger: logger})
	}

	if err := copyFile(base, out); err != nil {
		return MergeResult{}, fmt.Errorf("%w: %w", ErrMerge, err)
	}
	res, err := Merge(ctx, MergeOptions{Base: out, Side: side, KeyColumn: key, ChunkSize: chunkSize, Logger: logger})
	if err != nil {
		os.Remove(out)
	}
	return res, err
}

func copyFile(src, dst string) error {
	r, err := OpenReader(src, 0)
	if err != nil {
		return err
	}
	defer r.Close()

	w := NewWriter(dst, r.Schema())
	if err := w.Open(); err != nil {
		return err
	}
	for rows, err := range r.Batches(context.Background()) {
		if err != nil {
			w.Close()
			os.Remove(dst)
			return err
		}
		if err := w.Write(rows); err != nil {
			w.Close()
			os.Remove(dst)
			return err
		}
	}
	return w.Close()
}
