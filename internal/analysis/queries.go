package analysis

import (
	"fmt"
	"strings"
)

// Query is a named, fixed SQL statement over the trades view.
type Query struct {
	Name  string
	Title string
	SQL   string
}

const weeklySQL = `
SELECT
    date_trunc('week', created_time::TIMESTAMP)::DATE::VARCHAR AS week,
    COUNT(*) AS trade_count,
    SUM(count)::BIGINT AS total_contracts,
    SUM(yes_price_dollars::DOUBLE * count) / SUM(count) AS avg_yes_price,
    SUM(count)::DOUBLE / COUNT(*) AS contracts_per_trade
FROM trades
GROUP BY week
ORDER BY week`

const contractsSQL = `
SELECT
    date_trunc('month', created_time::TIMESTAMP)::DATE::VARCHAR AS month,
    SUM(count)::DOUBLE / COUNT(*) AS contracts_per_trade,
    MEDIAN(count)::DOUBLE AS median_contracts_per_trade
FROM trades
GROUP BY month
ORDER BY month`

// Prices are folded into five bands so the monthly mix of long shots and
// coin flips is visible.
const bandsSQL = `
WITH priced AS (
    SELECT
        date_trunc('month', created_time::TIMESTAMP)::DATE AS month,
        yes_price_dollars::DOUBLE AS p,
        count
    FROM trades
), banded AS (
    SELECT
        month,
        CASE
            WHEN p < 0.20 THEN 'a. 0-20%'
            WHEN p < 0.40 THEN 'b. 20-40%'
            WHEN p < 0.60 THEN 'c. 40-60%'
            WHEN p < 0.80 THEN 'd. 60-80%'
            ELSE 'e. 80-100%'
        END AS band,
        SUM(count)::BIGINT AS total_contracts
    FROM priced
    GROUP BY 1, 2
)
SELECT
    month::VARCHAR AS month,
    band,
    total_contracts,
    ROUND(total_contracts * 100.0 / SUM(total_contracts) OVER (PARTITION BY month), 2)::DOUBLE AS band_pct
FROM banded
ORDER BY month, band`

// Each side of a trade is rounded up to the cent on its own, as the
// exchange bills it.
const feesSQL = `
WITH priced AS (
    SELECT count, yes_price_dollars::DOUBLE AS p
    FROM trades
), fee AS (
    SELECT
        count,
        CAST(CEIL(0.07 * count * p * (1 - p) * 100) / 100 AS DECIMAL(18, 2)) AS taker_fee,
        CAST(CEIL(0.0175 * count * p * (1 - p) * 100) / 100 AS DECIMAL(18, 2)) AS maker_fee,
        0.0875 * count * p * (1 - p) AS raw_fee
    FROM priced
)
SELECT
    COUNT(*) AS trade_count,
    COALESCE(SUM(count), 0)::BIGINT AS total_contracts,
    COALESCE(SUM(taker_fee), 0)::VARCHAR AS taker_fees,
    COALESCE(SUM(maker_fee), 0)::VARCHAR AS maker_fees,
    COALESCE(SUM(taker_fee + maker_fee), 0)::VARCHAR AS total_fees,
    ROUND(COALESCE(SUM(raw_fee), 0), 2)::DOUBLE AS unrounded_fees
FROM fee`

var queries = []Query{
	{Name: "weekly", Title: "Weekly volume", SQL: weeklySQL},
	{Name: "contracts", Title: "Contracts per trade by month", SQL: contractsSQL},
	{Name: "bands", Title: "Implied probability bands by month", SQL: bandsSQL},
	{Name: "fees", Title: "Fee revenue", SQL: feesSQL},
}

// Queries returns every built-in query in display order.
func Queries() []Query {
	out := make([]Query, len(queries))
	copy(out, queries)
	return out
}

// QueryNames lists the built-in query names.
func QueryNames() []string {
	names := make([]string, len(queries))
	for i, q := range queries {
		names[i] = q.Name
	}
	return names
}

// LookupQuery returns the named query.
func LookupQuery(name string) (Query, error) {
	for _, q := range queries {
		if q.Name == name {
			return q, nil
		}
	}
	return Query{}, fmt.Errorf("unknown query %q (known: %s)", name, strings.Join(QueryNames(), ", "))
}

// Select resolves a comma separated list of names; "all" or an empty string
// selects every query.
func Select(spec string) ([]Query, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || spec == "all" {
		return Queries(), nil
	}
	var out []Query
	for _, name := range strings.Split(spec, ",") {
		q, err := LookupQuery(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}
