package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bitfsorg/pledgesplit-go/notify"
	"github.com/bitfsorg/pledgesplit-go/split"
)

var (
	calcPledges  []int64
	calcShares   []string
	calcFeeBps   uint32
	calcCurrency string
)

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Preview a reward split",
	Long: `Calculates the allocation table for a set of pledges and shares.

Example:
  pledgesplit calc --pledge 1000 --share alice:400 --share bob`,
	RunE: runCalc,
}

func init() {
	calcCmd.Flags().Int64SliceVar(&calcPledges, "pledge", nil, "Pledge amount in minor units (repeatable)")
	calcCmd.Flags().StringArrayVar(&calcShares, "share", nil, "Recipient share: name, name:thousandths or name:pct% (repeatable)")
	calcCmd.Flags().Uint32Var(&calcFeeBps, "fee-bps", split.DefaultFeePolicy.BasisPoints, "Platform fee in basis points")
	calcCmd.Flags().StringVar(&calcCurrency, "currency", split.DefaultCurrency, "Pledge currency")
}

func runCalc(cmd *cobra.Command, args []string) error {
	shares, err := split.ParseShares(calcShares)
	if err != nil {
		return err
	}
	if calcFeeBps > 10000 {
		return fmt.Errorf("fee-bps must be at most 10000, got %d", calcFeeBps)
	}

	pledges := make([]split.Pledge, len(calcPledges))
	for i, amt := range calcPledges {
		pledges[i] = split.Pledge{Amount: amt, Currency: calcCurrency}
	}

	res := split.Calculate(pledges, shares, split.FeePolicy{BasisPoints: calcFeeBps})
	logger.Debug("calculated split",
		zap.Int64("pledge_sum", res.PledgeSum),
		zap.Int64("pool", res.Pool),
		zap.Int("recipients", len(res.Allocations)),
	)

	printResult(cmd.OutOrStdout(), res)

	var warnings []string
	if err := split.ValidatePledges(pledges); err != nil {
		warnings = append(warnings, err.Error())
	}
	if err := split.Validate(shares); err != nil {
		warnings = append(warnings, err.Error())
	}
	for _, w := range warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	return nil
}

// printResult writes the allocation table followed by the totals.
func printResult(w io.Writer, res split.Result) {
	cur := res.Currency
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECIPIENT\tSHARE\tAMOUNT\tFIXED")
	for _, a := range res.Allocations {
		fixed := ""
		if a.IsFixed {
			fixed = "yes"
		}
		fmt.Fprintf(tw, "@%s\t%.1f%%\t%s\t%s\n", a.Username, a.Percent, notify.FormatAmount(a.EstAmount, cur), fixed)
	}
	_ = tw.Flush()

	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "Pledged: %s\n", notify.FormatAmount(res.PledgeSum, cur))
	fmt.Fprintf(w, "Fee:     %s\n", notify.FormatAmount(res.Fee, cur))
	fmt.Fprintf(w, "Pool:    %s\n", notify.FormatAmount(res.Pool, cur))
	if res.Residual > 0 {
		fmt.Fprintf(w, "Unallocated: %.1f%%\n", float64(res.Residual)/10)
	}
}
