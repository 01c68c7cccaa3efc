package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"portfolio-rebalancer/internal/portfolio"
)

var hundred = decimal.NewFromInt(100)

func newHoldingsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "holdings",
		Short: "Print current holdings valued at market",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags, true)
			if err != nil {
				return err
			}
			defer a.Close()

			position, err := a.broker.GetPosition(ctx)
			if err != nil {
				return fmt.Errorf("fetch position: %w", err)
			}
			if len(position) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no holdings")
				return nil
			}

			ids := make([]string, 0, len(position))
			for id := range position {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			quotes, err := a.broker.GetQuote(ctx, ids)
			if err != nil {
				return fmt.Errorf("fetch quotes: %w", err)
			}

			v := portfolio.Value(position, quotes, a.cfg.Trading.LotSize)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STOCK\tLOTS\tPRICE\tVALUE\tWEIGHT")
			for _, line := range v.Lines {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s%%\n",
					line.StockID, line.Quantity.String(), line.Price.String(),
					line.MarketValue.StringFixed(0),
					line.Weight.Mul(hundred).StringFixed(2))
			}
			fmt.Fprintf(w, "TOTAL\t\t\t%s\t\n", v.Total.StringFixed(0))
			if err := w.Flush(); err != nil {
				return err
			}
			for _, id := range v.Unpriced {
				fmt.Fprintf(cmd.OutOrStdout(), "no quote for %s, excluded from total\n", id)
			}
			return nil
		},
	}
}
