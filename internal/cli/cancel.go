package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCancelCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-all",
		Short: "Cancel every open order on the configured account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.broker.CancelAllOpenOrders(ctx); err != nil {
				return fmt.Errorf("cancel all open orders: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all open orders cancelled")
			return nil
		},
	}
}
