package analysis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/sschnei8/predictionMarketExploro/internal/fees"
	"github.com/sschnei8/predictionMarketExploro/internal/store"
)

// ErrMissingColumn is returned when a trades file lacks a column the fee
// calculation reads.
var ErrMissingColumn = errors.New("missing column")

// FeeSummary totals the fees collected over a set of trades.
type FeeSummary struct {
	Trades    int64
	Contracts int64
	Taker     decimal.Decimal
	Maker     decimal.Decimal
}

// Total returns taker plus maker fees.
func (s FeeSummary) Total() decimal.Decimal {
	return s.Taker.Add(s.Maker)
}

// Fees runs the fee query in DuckDB and returns its totals.
func (a *Analyzer) Fees(ctx context.Context) (FeeSummary, error) {
	q, err := LookupQuery("fees")
	if err != nil {
		return FeeSummary{}, err
	}
	res, err := a.Run(ctx, q)
	if err != nil {
		return FeeSummary{}, err
	}
	if len(res.Rows) != 1 {
		return FeeSummary{}, fmt.Errorf("fee query returned %d rows, want 1", len(res.Rows))
	}
	row := res.Rows[0]

	var s FeeSummary
	if s.Trades, err = strconv.ParseInt(row[0], 10, 64); err != nil {
		return s, fmt.Errorf("parse trade_count: %w", err)
	}
	if s.Contracts, err = strconv.ParseInt(row[1], 10, 64); err != nil {
		return s, fmt.Errorf("parse total_contracts: %w", err)
	}
	if s.Taker, err = decimal.NewFromString(row[2]); err != nil {
		return s, fmt.Errorf("parse taker_fees: %w", err)
	}
	if s.Maker, err = decimal.NewFromString(row[3]); err != nil {
		return s, fmt.Errorf("parse maker_fees: %w", err)
	}
	return s, nil
}

// FeeRevenue streams a trades file and sums the fee of every trade in exact
// decimal arithmetic. Trades with a null count or price are skipped.
func FeeRevenue(ctx context.Context, path string, chunkSize int) (FeeSummary, error) {
	r, err := store.OpenReader(path, chunkSize)
	if err != nil {
		return FeeSummary{}, err
	}
	defer r.Close()

	countIdx := r.Schema().Index("count")
	priceIdx := r.Schema().Index("yes_price_dollars")
	if countIdx < 0 {
		return FeeSummary{}, fmt.Errorf("%w: count", ErrMissingColumn)
	}
	if priceIdx < 0 {
		return FeeSummary{}, fmt.Errorf("%w: yes_price_dollars", ErrMissingColumn)
	}

	s := FeeSummary{Taker: decimal.Zero, Maker: decimal.Zero}
	for batch, err := range r.Batches(ctx) {
		if err != nil {
			return s, err
		}
		for _, rec := range batch {
			count, ok := rec[countIdx].(int64)
			if !ok {
				continue
			}
			raw, ok := rec[priceIdx].(string)
			if !ok {
				continue
			}
			price, err := fees.ParsePrice(raw)
			if err != nil {
				return s, fmt.Errorf("trade %d: %w", s.Trades+1, err)
			}
			f, err := fees.ForTrade(count, price)
			if err != nil {
				return s, fmt.Errorf("trade %d: %w", s.Trades+1, err)
			}
			s.Trades++
			s.Contracts += count
			s.Taker = s.Taker.Add(f.Taker)
			s.Maker = s.Maker.Add(f.Maker)
		}
	}
	return s, nil
}
