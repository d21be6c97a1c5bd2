package model

import (
	"fmt"
	"sort"
)

// Dataset describes one paginated Kalshi collection and how its items map to rows.
type Dataset struct {
	Name       string
	Path       string            // e.g. "/markets/trades"
	ItemsField string            // JSON array holding the page items
	KeyColumn  string            // dedup key for merges; empty means append-only
	MinTSParam string            // query parameter carrying the incremental lower bound
	Extra      map[string]string // fixed query parameters
	Schema     Schema
}

// TradeSchema holds the trade fields kept from /markets/trades.
var TradeSchema = NewSchema(
	Column{Name: "trade_id", Type: String},
	Column{Name: "ticker", Type: String},
	Column{Name: "count", Type: Int64},
	Column{Name: "yes_price_dollars", Type: String},
	Column{Name: "taker_side", Type: String},
	Column{Name: "created_time", Type: String},
)

// MarketSchema holds the market fields kept from /markets.
var MarketSchema = NewSchema(
	Column{Name: "ticker", Type: String},
	Column{Name: "event_ticker", Type: String},
	Column{Name: "result", Type: String},
	Column{Name: "status", Type: String},
	Column{Name: "volume", Type: Int64},
	Column{Name: "open_time", Type: String},
	Column{Name: "close_time", Type: String},
	Column{Name: "liquidity", Type: Int64},
	Column{Name: "market_type", Type: String},
)

// EventSchema holds the event fields kept from /events.
var EventSchema = NewSchema(
	Column{Name: "event_ticker", Type: String},
	Column{Name: "series_ticker", Type: String},
	Column{Name: "title", Type: String},
	Column{Name: "category", Type: String},
	Column{Name: "status", Type: String},
)

var builtin = map[string]Dataset{
	"trades": {
		Name:       "trades",
		Path:       "/markets/trades",
		ItemsField: "trades",
		KeyColumn:  "trade_id",
		MinTSParam: "min_ts",
		Schema:     TradeSchema,
	},
	"markets": {
		Name:       "markets",
		Path:       "/markets",
		ItemsField: "markets",
		KeyColumn:  "ticker",
		MinTSParam: "min_created_ts",
		Schema:     MarketSchema,
	},
	"combo_markets": {
		Name:       "combo_markets",
		Path:       "/markets",
		ItemsField: "markets",
		KeyColumn:  "ticker",
		MinTSParam: "min_created_ts",
		Extra:      map[string]string{"mve_filter": "only"},
		Schema:     MarketSchema,
	},
	"events": {
		Name:       "events",
		Path:       "/events",
		ItemsField: "events",
		KeyColumn:  "event_ticker",
		MinTSParam: "min_close_ts",
		Schema:     EventSchema,
	},
}

// LookupDataset returns a copy of the named built-in dataset.
func LookupDataset(name string) (Dataset, error) {
	ds, ok := builtin[name]
	if !ok {
		return Dataset{}, fmt.Errorf("unknown dataset %q (known: %v)", name, DatasetNames())
	}
	if ds.Extra != nil {
		extra := make(map[string]string, len(ds.Extra))
		for k, v := range ds.Extra {
			extra[k] = v
		}
		ds.Extra = extra
	}
	return ds, nil
}

// DatasetNames lists the built-in datasets in sorted order.
func DatasetNames() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
