package analysis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sschnei8/predictionMarketExploro/internal/model"
	"github.com/sschnei8/predictionMarketExploro/internal/store"
)

func writeTrades(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kalshi_trades.parquet")
	w := store.NewWriter(path, model.TradeSchema)
	rows := []model.Record{
		{"t1", "KX-A", int64(10), "0.5", "yes", "2024-01-01T10:00:00Z"},
		{"t2", "KX-A", int64(3), "0.37", "no", "2024-01-03T12:00:00Z"},
		{"t3", "KX-B", int64(7), "0.85", "yes", "2024-02-05T09:30:00Z"},
	}
	if err := w.Write(rows); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return path
}

func open(t *testing.T) *Analyzer {
	t.Helper()
	a, err := Open(context.Background(), writeTrades(t), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func run(t *testing.T, a *Analyzer, name string) *Result {
	t.Helper()
	q, err := LookupQuery(name)
	if err != nil {
		t.Fatal(err)
	}
	res, err := a.Run(context.Background(), q)
	if err != nil {
		t.Fatalf("Run(%s) error = %v", name, err)
	}
	return res
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "nope.parquet"), nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open() error = %v, want not exist", err)
	}
}

func TestWeekly(t *testing.T) {
	res := run(t, open(t), "weekly")

	wantCols := []string{"week", "trade_count", "total_contracts", "avg_yes_price", "contracts_per_trade"}
	if !reflect.DeepEqual(res.Columns, wantCols) {
		t.Errorf("Columns = %v, want %v", res.Columns, wantCols)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(res.Rows))
	}
	first := res.Rows[0]
	if first[0] != "2024-01-01" || first[1] != "2" || first[2] != "13" || first[4] != "6.5" {
		t.Errorf("first week = %v, want [2024-01-01 2 13 _ 6.5]", first)
	}
	if res.Rows[1][0] != "2024-02-05" || res.Rows[1][2] != "7" {
		t.Errorf("second week = %v, want 2024-02-05 with 7 contracts", res.Rows[1])
	}
}

func TestContracts(t *testing.T) {
	res := run(t, open(t), "contracts")
	want := [][]string{
		{"2024-01-01", "6.5", "6.5"},
		{"2024-02-01", "7", "7"},
	}
	if !reflect.DeepEqual(res.Rows, want) {
		t.Errorf("Rows = %v, want %v", res.Rows, want)
	}
}

func TestBands(t *testing.T) {
	res := run(t, open(t), "bands")
	want := [][]string{
		{"2024-01-01", "b. 20-40%", "3", "23.08"},
		{"2024-01-01", "c. 40-60%", "10", "76.92"},
		{"2024-02-01", "e. 80-100%", "7", "100"},
	}
	if !reflect.DeepEqual(res.Rows, want) {
		t.Errorf("Rows = %v, want %v", res.Rows, want)
	}
}

func TestFees_MatchesGoCalculation(t *testing.T) {
	a := open(t)
	ctx := context.Background()

	sql, err := a.Fees(ctx)
	if err != nil {
		t.Fatalf("Fees() error = %v", err)
	}
	if sql.Trades != 3 || sql.Contracts != 20 {
		t.Errorf("Fees() trades=%d contracts=%d, want 3 and 20", sql.Trades, sql.Contracts)
	}
	if !sql.Taker.Equal(decimal.RequireFromString("0.30")) {
		t.Errorf("taker = %s, want 0.30", sql.Taker)
	}
	if !sql.Maker.Equal(decimal.RequireFromString("0.09")) {
		t.Errorf("maker = %s, want 0.09", sql.Maker)
	}

	exact, err := FeeRevenue(ctx, a.Path(), 2)
	if err != nil {
		t.Fatalf("FeeRevenue() error = %v", err)
	}
	if !exact.Total().Equal(sql.Total()) {
		t.Errorf("FeeRevenue() total = %s, want %s", exact.Total(), sql.Total())
	}
	if exact.Trades != 3 || exact.Contracts != 20 {
		t.Errorf("FeeRevenue() trades=%d contracts=%d, want 3 and 20", exact.Trades, exact.Contracts)
	}
}

func TestFeeRevenue_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counts.parquet")
	w := store.NewWriter(path, model.NewSchema(model.Column{Name: "count", Type: model.Int64}))
	if err := w.Write([]model.Record{{int64(1)}}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := FeeRevenue(context.Background(), path, 0); !errors.Is(err, ErrMissingColumn) {
		t.Errorf("FeeRevenue() error = %v, want ErrMissingColumn", err)
	}
}

func TestExportCSV(t *testing.T) {
	a := open(t)
	q, _ := LookupQuery("weekly")
	dir := filepath.Join(t.TempDir(), "csv")

	path, err := a.ExportCSV(context.Background(), q, dir)
	if err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}
	if path != filepath.Join(dir, "weekly.csv") {
		t.Errorf("path = %q, want weekly.csv in %s", path, dir)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "week,trade_count,total_contracts,avg_yes_price,contracts_per_trade" {
		t.Errorf("header = %q", lines[0])
	}
	if len(lines) != 3 {
		t.Errorf("lines = %d, want 3", len(lines))
	}
}

func TestSelect(t *testing.T) {
	all, err := Select("all")
	if err != nil || len(all) != len(QueryNames()) {
		t.Errorf("Select(all) = %d queries, %v", len(all), err)
	}
	if got, _ := Select(""); len(got) != len(all) {
		t.Errorf("Select(\"\") = %d queries, want %d", len(got), len(all))
	}

	got, err := Select("fees, weekly")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if got[0].Name != "fees" || got[1].Name != "weekly" {
		t.Errorf("Select() = %s,%s, want fees,weekly", got[0].Name, got[1].Name)
	}

	if _, err := Select("weekly,nope"); err == nil {
		t.Error("Select(nope) error = nil")
	}
}

func TestLiteral(t *testing.T) {
	if got := literal("it's.parquet"); got != "'it''s.parquet'" {
		t.Errorf("literal() = %s", got)
	}
}
