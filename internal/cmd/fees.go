package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/sschnei8/predictionMarketExploro/internal/fees"
)

var feesCmd = &cobra.Command{
	Use:   "fees",
	Short: "Print Kalshi taker and maker fees",
	Long: `Fees prints round_up(rate × C × P × (1 − P)) for each price and contract count.

With --volume it instead estimates the fee revenue of that traded volume at
each price, charging half the volume to each side.`,
	Args: cobra.NoArgs,
	RunE: runFees,
}

var (
	feesPrices    []string
	feesContracts []int64
	feesVolume    string
)

func init() {
	feesCmd.Flags().StringSliceVarP(&feesPrices, "price", "p", nil, "prices in dollars, e.g. 0.1,0.35 (default 0.1 to 0.5)")
	feesCmd.Flags().Int64SliceVarP(&feesContracts, "contracts", "n", nil, "contract counts (default 1,10,100,1000,10000)")
	feesCmd.Flags().StringVar(&feesVolume, "volume", "", "estimate revenue for this many contracts traded")
}

// FeesCommand returns the fees command.
func FeesCommand() *cobra.Command {
	return feesCmd
}

func runFees(cmd *cobra.Command, args []string) error {
	prices := make([]decimal.Decimal, 0, len(feesPrices))
	for _, s := range feesPrices {
		p, err := fees.ParsePrice(s)
		if err != nil {
			return err
		}
		prices = append(prices, p)
	}

	if feesVolume != "" {
		vol, err := decimal.NewFromString(feesVolume)
		if err != nil {
			return fmt.Errorf("parse volume %q: %w", feesVolume, err)
		}
		return printRevenue(stdout(cmd), vol, prices)
	}
	return printFeeTable(stdout(cmd), prices, feesContracts)
}

func printFeeTable(w io.Writer, prices []decimal.Decimal, contracts []int64) error {
	rows, err := fees.Table(prices, contracts)
	if err != nil {
		return err
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{
			r.Price.String() + " / " + r.Mirror.String(),
			strconv.FormatInt(r.Contracts, 10),
			r.Taker.StringFixed(2),
			r.Maker.StringFixed(2),
			r.Taker.Add(r.Maker).StringFixed(2),
		}
	}
	return renderTable(w, []string{"Price (P / 1-P)", "Contracts", "Taker", "Maker", "Total"}, out)
}

func printRevenue(w io.Writer, volume decimal.Decimal, prices []decimal.Decimal) error {
	if len(prices) == 0 {
		prices = fees.DefaultPrices
	}
	out := make([][]string, len(prices))
	for i, p := range prices {
		out[i] = []string{p.String(), volume.String(), fees.VolumeRevenue(volume, p).StringFixed(2)}
	}
	return renderTable(w, []string{"Price", "Volume", "Estimated revenue"}, out)
}
