// Package pagination walks a cursor-paginated Kalshi collection one page at a time.
package pagination

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/sschnei8/predictionMarketExploro/internal/api"
	"github.com/sschnei8/predictionMarketExploro/internal/metrics"
	"github.com/sschnei8/predictionMarketExploro/internal/model"
)

// DefaultPageSize is the largest page Kalshi serves.
const DefaultPageSize = 1000

// PageSource fetches one raw page. *api.Client implements it.
type PageSource interface {
	GetPage(ctx context.Context, path, itemsField string, q api.PageQuery) (*api.RawPage, error)
}

// Page is one fetched page turned into rows.
type Page struct {
	Number        int // 1-based within this run
	RequestCursor string
	Records       []model.Record
	// Cursor continues the walk; empty marks the final page.
	Cursor string
}

// Options configures a Fetcher.
type Options struct {
	Dataset     model.Dataset
	PageSize    int
	StartCursor string // resume point; empty starts from the beginning
	MinTS       int64  // incremental lower bound in unix seconds; 0 disables it
	Logger      *slog.Logger
}

// Fetcher produces the pages of one dataset. Cursors are passed back to the
// API verbatim and never inspected.
type Fetcher struct {
	src    PageSource
	opts   Options
	logger *slog.Logger

	cursor  string
	pages   int
	records int64
}

// New creates a Fetcher.
func New(src PageSource, opts Options) *Fetcher {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		src:    src,
		opts:   opts,
		logger: logger,
		cursor: opts.StartCursor,
	}
}

// Cursor returns the most recent continuation cursor: the start cursor before
// the first page, then the cursor returned by the last page fetched.
func (f *Fetcher) Cursor() string { return f.cursor }

// PageCount returns the number of pages fetched so far.
func (f *Fetcher) PageCount() int { return f.pages }

// RecordCount returns the number of records fetched so far.
func (f *Fetcher) RecordCount() int64 { return f.records }

// Pages lazily fetches pages until one comes back without a cursor. On error
// the sequence yields (nil, err) once and ends; Cursor still holds the last
// good cursor so the walk can be resumed.
func (f *Fetcher) Pages(ctx context.Context) iter.Seq2[*Page, error] {
	return func(yield func(*Page, error) bool) {
		ds := f.opts.Dataset
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			reqCursor := f.cursor
			raw, err := f.src.GetPage(ctx, ds.Path, ds.ItemsField, api.PageQuery{
				Limit:      f.opts.PageSize,
				Cursor:     reqCursor,
				MinTSParam: ds.MinTSParam,
				MinTS:      f.opts.MinTS,
				Extra:      ds.Extra,
			})
			if err != nil {
				yield(nil, err)
				return
			}

			records := make([]model.Record, 0, len(raw.Items))
			for i, item := range raw.Items {
				rec, err := ds.Schema.Extract(item)
				if err != nil {
					yield(nil, fmt.Errorf("page %d item %d: %w", f.pages+1, i, err))
					return
				}
				records = append(records, rec)
			}

			f.pages++
			f.records += int64(len(records))
			f.cursor = raw.Cursor
			metrics.PagesTotal.WithLabelValues(ds.Name).Inc()
			metrics.RecordsTotal.WithLabelValues(ds.Name).Add(float64(len(records)))

			if f.pages%100 == 0 || len(records) == 0 {
				f.logger.Info("pagination progress",
					"dataset", ds.Name,
					"pages", f.pages,
					"records", f.records,
				)
			}

			page := &Page{
				Number:        f.pages,
				RequestCursor: reqCursor,
				Records:       records,
				Cursor:        raw.Cursor,
			}
			if !yield(page, nil) {
				return
			}
			if raw.Cursor == "" {
				return
			}
		}
	}
}
