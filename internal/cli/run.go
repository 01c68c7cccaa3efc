package cli

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"portfolio-rebalancer/internal/logger"
	"portfolio-rebalancer/internal/metrics"
	"portfolio-rebalancer/internal/model"
	"portfolio-rebalancer/internal/orchestrator"
	"portfolio-rebalancer/internal/portfolio"
	"portfolio-rebalancer/internal/pricing"
	"portfolio-rebalancer/internal/tradingday"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	var (
		strategyID string
		viewOnly   bool
		extraBid   string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one rebalance run against the configured account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := logger.WithRunID(cmd.Context(), logger.NewRunID())

			a, err := newApp(ctx, flags, true)
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.serveMetrics(ctx)()

			log := a.log.With("run_id", logger.RunID(ctx))

			if !tradingday.IsTradingDay(a.cfg.Trading.Holidays, time.Now()) {
				if !force {
					return fmt.Errorf("today is not a trading day (use --force to run anyway)")
				}
				log.Warn("running on a non-trading day")
			}

			if strategyID == "" {
				strategyID = a.cfg.Strategy.ID
			}
			engine, err := a.registry.Resolve(strategyID)
			if err != nil {
				return err
			}

			extraBidPct, err := a.cfg.ExtraBidPct()
			if err != nil {
				return err
			}
			if extraBid != "" {
				extraBidPct, err = decimal.NewFromString(extraBid)
				if err != nil {
					return fmt.Errorf("bad --extra-bid %q: %w", extraBid, err)
				}
			}

			m := metrics.New()
			orch, err := orchestrator.New(orchestrator.Options{
				AccountID:   a.cfg.AccountID,
				Engine:      engine,
				Broker:      a.broker,
				Cache:       a.cache,
				Auditor:     a.store,
				Notifier:    a.notifier,
				Metrics:     m,
				Log:         log,
				LotSize:     a.cfg.Trading.LotSize,
				OddLotBook:  a.cfg.Trading.OddLotBook,
				Epsilon:     a.cfg.Epsilon(),
				ExtraBidPct: extraBidPct,
				Style:       pricing.ExecutionStyle(a.cfg.Trading.ExecutionStyle),
				Condition:   model.OrderCondition(a.cfg.Trading.OrderCondition),
				ViewOnly:    viewOnly,
			})
			if err != nil {
				return err
			}

			res, err := orch.Run(ctx)
			if err != nil {
				return err
			}
			summary := portfolio.Summarize(res.Planned)
			fmt.Fprintf(cmd.OutOrStdout(),
				"run %s: state=%s fresh_plan=%t deltas=%d submitted=%d skipped=%d turnover=%s\n",
				logger.RunID(ctx), res.State, res.PlanFresh, res.Deltas,
				len(res.Submitted), len(res.Skipped), summary.Turnover().StringFixed(0))
			for _, s := range res.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "  skipped %s (%s): %s\n", s.StockID, s.Reason, s.Detail)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&strategyID, "strategy", "", "strategy id (defaults to the configured one)")
	cmd.Flags().BoolVar(&viewOnly, "view-only", false, "compute and log orders without submitting")
	cmd.Flags().StringVar(&extraBid, "extra-bid", "", "override extra bid fraction, e.g. 0.02")
	cmd.Flags().BoolVar(&force, "force", false, "run even on weekends and holidays")
	return cmd
}
