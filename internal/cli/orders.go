package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"portfolio-rebalancer/internal/tradingday"
)

func newOrdersCmd(flags *rootFlags) *cobra.Command {
	var (
		day   string
		month string
	)

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Query the order audit log",
		Long: `Query the order audit log.

With --date, prints every audited order of that day. With --month,
lists the days of that month that have audited orders.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if month != "" {
				days, err := a.store.DistinctDays(ctx, a.cfg.AccountID, month)
				if err != nil {
					return err
				}
				if len(days) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "no audited orders in %s\n", month)
					return nil
				}
				for _, d := range days {
					fmt.Fprintln(cmd.OutOrStdout(), d)
				}
				return nil
			}

			if day == "" {
				day = tradingday.DayKey(time.Now())
			}
			if _, err := tradingday.ParseDay(day); err != nil {
				return fmt.Errorf("bad --date %q: %w", day, err)
			}

			records, err := a.store.OrdersOn(ctx, a.cfg.AccountID, day)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no audited orders on %s\n", day)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tACTION\tSTOCK\tQTY\tPRICE\tCONDITION")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.OrderTS.In(tradingday.TST).Format("15:04:05"),
					r.Action, r.StockID, r.Qty.String(), r.Price, r.Condition)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&day, "date", "", "day to list, YYYY-MM-DD (defaults to today)")
	cmd.Flags().StringVar(&month, "month", "", "list days with orders in this month, YYYY-MM")
	cmd.MarkFlagsMutuallyExclusive("date", "month")
	return cmd
}
