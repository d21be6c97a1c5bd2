package fees

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTakerFee(t *testing.T) {
	tests := []struct {
		name      string
		contracts int64
		price     string
		want      string
	}{
		{"max at half", 100, "0.5", "1.75"},
		{"single contract rounds up", 1, "0.5", "0.02"},
		{"low price", 10, "0.3", "0.15"},
		{"mirror price", 10, "0.7", "0.15"},
		{"large fill", 1_000_000, "0.5", "17500"},
		{"zero contracts", 0, "0.5", "0"},
		{"price zero", 100, "0", "0"},
		{"price one", 100, "1", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TakerFee(tt.contracts, d(tt.price))
			if err != nil {
				t.Fatalf("TakerFee() error = %v", err)
			}
			if !got.Equal(d(tt.want)) {
				t.Errorf("TakerFee(%d, %s) = %s, want %s", tt.contracts, tt.price, got, tt.want)
			}
		})
	}
}

func TestMakerFee(t *testing.T) {
	got, err := MakerFee(100, d("0.5"))
	if err != nil {
		t.Fatalf("MakerFee() error = %v", err)
	}
	// 0.0175 * 100 * 0.25 = 0.4375
	if !got.Equal(d("0.44")) {
		t.Errorf("MakerFee() = %s, want 0.44", got)
	}
}

func TestFee_Invalid(t *testing.T) {
	if _, err := TakerFee(10, d("1.5")); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("price 1.5 error = %v, want ErrInvalidPrice", err)
	}
	if _, err := TakerFee(10, d("-0.1")); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("price -0.1 error = %v, want ErrInvalidPrice", err)
	}
	if _, err := MakerFee(-1, d("0.5")); !errors.Is(err, ErrInvalidContracts) {
		t.Errorf("contracts -1 error = %v, want ErrInvalidContracts", err)
	}
}

func TestForTrade(t *testing.T) {
	f, err := ForTrade(1_000_000, d("0.5"))
	if err != nil {
		t.Fatalf("ForTrade() error = %v", err)
	}
	if !f.Taker.Equal(d("17500")) || !f.Maker.Equal(d("4375")) {
		t.Errorf("ForTrade() = taker %s maker %s, want 17500 and 4375", f.Taker, f.Maker)
	}
	if !f.Total().Equal(d("21875")) {
		t.Errorf("Total() = %s, want 21875", f.Total())
	}
}

func TestRoundUpCents(t *testing.T) {
	tests := map[string]string{
		"0":      "0",
		"0.01":   "0.01",
		"0.0001": "0.01",
		"1.75":   "1.75",
		"1.7501": "1.76",
		"2.999":  "3",
	}
	for in, want := range tests {
		if got := RoundUpCents(d(in)); !got.Equal(d(want)) {
			t.Errorf("RoundUpCents(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestVolumeRevenue(t *testing.T) {
	// Each side trades 500; 500 * 0.25 = 125; 125 * (0.0175 + 0.07) = 10.9375.
	got := VolumeRevenue(d("1000"), d("0.5"))
	if !got.Equal(d("10.9375")) {
		t.Errorf("VolumeRevenue() = %s, want 10.9375", got)
	}
	if got := VolumeRevenue(d("1000"), d("1")); !got.IsZero() {
		t.Errorf("VolumeRevenue(price 1) = %s, want 0", got)
	}
}

func TestTable_Defaults(t *testing.T) {
	rows, err := Table(nil, nil)
	if err != nil {
		t.Fatalf("Table() error = %v", err)
	}
	if want := len(DefaultPrices) * len(DefaultContracts); len(rows) != want {
		t.Fatalf("rows = %d, want %d", len(rows), want)
	}

	first := rows[0]
	if !first.Price.Equal(d("0.1")) || !first.Mirror.Equal(d("0.9")) || first.Contracts != 1 {
		t.Errorf("first row = %+v, want price 0.1 mirror 0.9 contracts 1", first)
	}
	// 0.07 * 1 * 0.09 = 0.0063
	if !first.Taker.Equal(d("0.01")) {
		t.Errorf("first taker = %s, want 0.01", first.Taker)
	}

	last := rows[len(rows)-1]
	if !last.Price.Equal(d("0.5")) || last.Contracts != 10_000 || !last.Taker.Equal(d("175")) {
		t.Errorf("last row = %+v, want price 0.5 contracts 10000 taker 175", last)
	}
}

func TestTable_InvalidPrice(t *testing.T) {
	if _, err := Table([]decimal.Decimal{d("2")}, []int64{1}); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("Table() error = %v, want ErrInvalidPrice", err)
	}
}

func TestParsePrice(t *testing.T) {
	p, err := ParsePrice("0.35")
	if err != nil || !p.Equal(d("0.35")) {
		t.Errorf("ParsePrice(0.35) = %s, %v", p, err)
	}
	if _, err := ParsePrice("abc"); err == nil {
		t.Error("ParsePrice(abc) error = nil")
	}
	if _, err := ParsePrice("1.01"); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("ParsePrice(1.01) error = %v, want ErrInvalidPrice", err)
	}
}
