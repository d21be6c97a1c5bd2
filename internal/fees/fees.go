package fees

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// TakerRate is the fee coefficient charged to the taking side.
	TakerRate = decimal.RequireFromString("0.07")
	// MakerRate is the fee coefficient charged to resting orders.
	MakerRate = decimal.RequireFromString("0.0175")

	one  = decimal.NewFromInt(1)
	half = decimal.RequireFromString("0.5")
)

// ErrInvalidPrice is returned for prices outside [0, 1].
var ErrInvalidPrice = errors.New("price must be between 0 and 1")

// ErrInvalidContracts is returned for negative contract counts.
var ErrInvalidContracts = errors.New("contracts must not be negative")

// DefaultPrices are the price pairs used by the fee table. P and 1-P produce
// the same fee, so only the lower half is needed.
var DefaultPrices = []decimal.Decimal{
	decimal.RequireFromString("0.1"),
	decimal.RequireFromString("0.2"),
	decimal.RequireFromString("0.3"),
	decimal.RequireFromString("0.4"),
	decimal.RequireFromString("0.5"),
}

// DefaultContracts are the contract counts used by the fee table.
var DefaultContracts = []int64{1, 10, 100, 1_000, 10_000}

// ParsePrice parses a dollar price such as "0.35" and checks its range.
func ParsePrice(s string) (decimal.Decimal, error) {
	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", s, err)
	}
	if err := checkPrice(p); err != nil {
		return decimal.Zero, err
	}
	return p, nil
}

func checkPrice(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(one) {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, p)
	}
	return nil
}

// Raw returns rate × C × P × (1 − P) without rounding.
func Raw(rate decimal.Decimal, contracts int64, price decimal.Decimal) decimal.Decimal {
	return rate.
		Mul(decimal.NewFromInt(contracts)).
		Mul(price).
		Mul(one.Sub(price))
}

// RoundUpCents rounds d up to the next whole cent.
func RoundUpCents(d decimal.Decimal) decimal.Decimal {
	return d.Shift(2).Ceil().Shift(-2)
}

// Fee returns the fee for one fill at the given rate, rounded up to the cent.
func Fee(rate decimal.Decimal, contracts int64, price decimal.Decimal) (decimal.Decimal, error) {
	if contracts < 0 {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrInvalidContracts, contracts)
	}
	if err := checkPrice(price); err != nil {
		return decimal.Zero, err
	}
	return RoundUpCents(Raw(rate, contracts, price)), nil
}

// TakerFee returns the taker fee for one fill.
func TakerFee(contracts int64, price decimal.Decimal) (decimal.Decimal, error) {
	return Fee(TakerRate, contracts, price)
}

// MakerFee returns the maker fee for one fill.
func MakerFee(contracts int64, price decimal.Decimal) (decimal.Decimal, error) {
	return Fee(MakerRate, contracts, price)
}

// TradeFee is what the exchange collects on one trade: both sides rounded
// separately, then summed.
type TradeFee struct {
	Contracts int64
	Price     decimal.Decimal
	Taker     decimal.Decimal
	Maker     decimal.Decimal
}

// Total returns the combined fee.
func (f TradeFee) Total() decimal.Decimal {
	return f.Taker.Add(f.Maker)
}

// ForTrade computes both sides of one trade.
func ForTrade(contracts int64, price decimal.Decimal) (TradeFee, error) {
	taker, err := TakerFee(contracts, price)
	if err != nil {
		return TradeFee{}, err
	}
	maker, err := MakerFee(contracts, price)
	if err != nil {
		return TradeFee{}, err
	}
	return TradeFee{Contracts: contracts, Price: price, Taker: taker, Maker: maker}, nil
}

// VolumeRevenue estimates fee revenue for a traded volume at an aggregate
// price. Volume counts both sides, so each side is charged on half of it.
// No rounding is applied; the estimate is for aggregates, not fills.
func VolumeRevenue(volume, price decimal.Decimal) decimal.Decimal {
	side := volume.Mul(half)
	spread := price.Mul(one.Sub(price))
	return MakerRate.Mul(side).Mul(spread).
		Add(TakerRate.Mul(side).Mul(spread))
}

// Row is one line of a fee table.
type Row struct {
	Price     decimal.Decimal
	Mirror    decimal.Decimal // 1 - Price, which pays the same fee
	Contracts int64
	Taker     decimal.Decimal
	Maker     decimal.Decimal
}

// Table computes taker and maker fees for every price and contract count.
// Rows are ordered by price, then contracts.
func Table(prices []decimal.Decimal, contracts []int64) ([]Row, error) {
	if len(prices) == 0 {
		prices = DefaultPrices
	}
	if len(contracts) == 0 {
		contracts = DefaultContracts
	}

	rows := make([]Row, 0, len(prices)*len(contracts))
	for _, p := range prices {
		for _, c := range contracts {
			fee, err := ForTrade(c, p)
			if err != nil {
				return nil, err
			}
			rows = append(rows, Row{
				Price:     p,
				Mirror:    one.Sub(p),
				Contracts: c,
				Taker:     fee.Taker,
				Maker:     fee.Maker,
			})
		}
	}
	return rows, nil
}
