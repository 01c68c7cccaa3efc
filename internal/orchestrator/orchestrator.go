// Package orchestrator composes the rebalance pipeline into one end-to-end
// run: load plan → diff → price → split → submit → log.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"portfolio-rebalancer/internal/diff"
	"portfolio-rebalancer/internal/metrics"
	"portfolio-rebalancer/internal/model"
	"portfolio-rebalancer/internal/notification"
	"portfolio-rebalancer/internal/pricing"
	"portfolio-rebalancer/internal/report"
)

// State is the phase a run has reached. Failed is terminal and reachable
// from any state.
type State string

const (
	StateIdle       State = "Idle"
	StatePlanLoaded State = "PlanLoaded"
	StateDiffed     State = "Diffed"
	StatePriced     State = "Priced"
	StateSubmitted  State = "Submitted"
	StateLogged     State = "Logged"
	StateDone       State = "Done"
	StateFailed     State = "Failed"
)

// Skip reasons recorded for deltas that never reach the broker, and for
// orders the broker refused.
const (
	SkipNoQuote  = "no_quote"
	SkipRejected = "rejected"
)

// SkippedOrder records one delta or intent that was not executed.
type SkippedOrder struct {
	StockID string
	Reason  string
	Detail  string
}

// Options wires one orchestrator. All collaborators are required except
// Metrics (nil disables instrumentation) and Notifier (defaults to the
// structured log).
type Options struct {
	AccountID string
	Engine    model.StrategyEngine
	Broker    model.BrokerGateway
	Cache     *report.DailyCache
	Auditor   model.OrderAuditor
	Notifier  notification.Notifier
	Metrics   *metrics.Metrics
	Log       *slog.Logger

	LotSize     int
	OddLotBook  bool
	Epsilon     decimal.Decimal
	ExtraBidPct decimal.Decimal
	Style       pricing.ExecutionStyle
	Condition   model.OrderCondition
	ViewOnly    bool

	Now func() time.Time // defaults to time.Now
}

// RunResult summarizes one run for the caller and the exit code.
type RunResult struct {
	State     State
	PlanFresh bool
	Deltas    int
	Planned   []model.OrderIntent // priced intents, including view-only runs
	Submitted []model.OrderIntent
	Skipped   []SkippedOrder
}

// Orchestrator executes one synchronous rebalance run at a time.
type Orchestrator struct {
	opts   Options
	differ *diff.Engine
}

// New validates the options and builds an orchestrator. Configuration
// errors (extra-bid range, style conflict) are rejected here, before any
// network call is possible.
func New(opts Options) (*Orchestrator, error) {
	if opts.ExtraBidPct.Abs().Cmp(decimal.RequireFromString("0.1")) > 0 {
		return nil, fmt.Errorf("orchestrator: %w: %s", pricing.ErrExtraBidRange, opts.ExtraBidPct)
	}
	if opts.Style != pricing.StyleLimit && !opts.ExtraBidPct.IsZero() {
		return nil, fmt.Errorf("orchestrator: %w: style=%s extra_bid=%s", pricing.ErrStyleConflict, opts.Style, opts.ExtraBidPct)
	}
	if opts.LotSize <= 0 {
		return nil, fmt.Errorf("orchestrator: lot size must be positive, got %d", opts.LotSize)
	}
	if opts.Notifier == nil {
		opts.Notifier = notification.NewLogNotifier(opts.Log)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		opts:   opts,
		differ: diff.New(opts.Epsilon),
	}, nil
}

// Run executes the full pipeline once. Any unrecoverable error before
// submission aborts with no orders placed; per-stock issues are skipped
// with a warning and the run continues.
func (o *Orchestrator) Run(ctx context.Context) (RunResult, error) {
	start := o.opts.Now()
	res := RunResult{State: StateIdle}

	// Idle → PlanLoaded
	target, fresh, err := o.opts.Cache.GetOrCompute(ctx, o.opts.Engine, start)
	if err != nil {
		return o.fail(ctx, start, res, "load target portfolio", err)
	}
	res.State, res.PlanFresh = StatePlanLoaded, fresh
	o.countCache(fresh)
	o.opts.Log.Info("plan loaded", "strategy", o.opts.Engine.Name(), "stocks", len(target), "fresh", fresh)

	// PlanLoaded → Diffed
	current, err := o.fetchPosition(ctx)
	if err != nil {
		return o.fail(ctx, start, res, "fetch current position", err)
	}
	deltas := o.differ.Diff(current, target)
	res.State, res.Deltas = StateDiffed, len(deltas)
	if o.opts.Metrics != nil {
		o.opts.Metrics.DeltasTotal.Add(float64(len(deltas)))
	}
	o.opts.Log.Info("portfolio diffed", "held", len(current), "deltas", len(deltas))

	// Diffed → Priced
	intents, skipped, err := o.price(ctx, deltas)
	if err != nil {
		return o.fail(ctx, start, res, "price orders", err)
	}
	res.State = StatePriced
	res.Planned = intents
	res.Skipped = append(res.Skipped, skipped...)

	if o.opts.ViewOnly {
		for _, in := range intents {
			o.opts.Log.Info("view-only order",
				"stock", in.StockID, "action", string(in.Action), "qty", in.Qty.String(),
				"price", in.PriceLabel, "odd_lot", in.OddLot)
		}
		res.State = StateDone
		o.countRun("view_only", start)
		return res, nil
	}

	// Priced → Submitted
	submitted, rejected := o.submit(ctx, intents)
	res.State = StateSubmitted
	res.Submitted = submitted
	res.Skipped = append(res.Skipped, rejected...)

	// Submitted → Logged
	if err := o.audit(ctx, start, submitted); err != nil {
		// Orders are already live at the broker; surface loudly, never unwind.
		return o.fail(ctx, start, res, fmt.Sprintf("audit write after %d submitted orders (reconciliation gap)", len(submitted)), err)
	}
	res.State = StateLogged

	res.State = StateDone
	o.countRun("done", start)
	o.opts.Log.Info("rebalance complete",
		"submitted", len(submitted), "skipped", len(res.Skipped), "duration", o.opts.Now().Sub(start).String())
	return res, nil
}

func (o *Orchestrator) fetchPosition(ctx context.Context) (model.CurrentPosition, error) {
	start := o.opts.Now()
	current, err := o.opts.Broker.GetPosition(ctx)
	o.observeBroker("get_position", start)
	return current, err
}

// price resolves quotes and converts each delta into one or two intents.
// Deltas without a resolvable quote are skipped with a warning; pricing
// configuration errors abort the run.
func (o *Orchestrator) price(ctx context.Context, deltas []model.OrderDelta) ([]model.OrderIntent, []SkippedOrder, error) {
	if len(deltas) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, len(deltas))
	for i, d := range deltas {
		ids[i] = d.StockID
	}

	start := o.opts.Now()
	quotes, err := o.opts.Broker.GetQuote(ctx, ids)
	o.observeBroker("get_quote", start)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch quotes: %w", err)
	}

	start = o.opts.Now()
	limits, err := o.opts.Broker.GetPriceLimits(ctx, ids)
	o.observeBroker("get_price_limits", start)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch price limits: %w", err)
	}

	var intents []model.OrderIntent
	var skipped []SkippedOrder
	for _, delta := range deltas {
		quote, ok := quotes[delta.StockID]
		if !ok {
			skipped = append(skipped, o.skip(delta.StockID, SkipNoQuote, "no quote returned"))
			continue
		}
		if lim, ok := limits[delta.StockID]; ok && !quote.HasBand() {
			quote.LimitUp = decimal.NullDecimal{Decimal: lim.Up, Valid: true}
			quote.LimitDown = decimal.NullDecimal{Decimal: lim.Down, Valid: true}
		}

		action := model.ActionBuy
		if delta.Qty.IsNegative() {
			action = model.ActionSell
		}
		priced, err := pricing.Price(action, quote, o.opts.Style, o.opts.ExtraBidPct)
		switch {
		case err == nil:
		case isSkippable(err):
			skipped = append(skipped, o.skip(delta.StockID, SkipNoQuote, err.Error()))
			continue
		default:
			return nil, nil, fmt.Errorf("price %s: %w", delta.StockID, err)
		}

		intents = append(intents, pricing.BuildIntents(
			delta, priced, o.opts.LotSize, o.opts.OddLotBook, o.opts.Condition, o.opts.ExtraBidPct)...)
	}
	return intents, skipped, nil
}

// submit places intents sequentially in diff order. A rejection or a
// transport failure on one order is recorded and skipped; the rest of the
// batch continues.
func (o *Orchestrator) submit(ctx context.Context, intents []model.OrderIntent) ([]model.OrderIntent, []SkippedOrder) {
	var submitted []model.OrderIntent
	var skipped []SkippedOrder
	for _, in := range intents {
		start := o.opts.Now()
		result, err := o.opts.Broker.SubmitOrder(ctx, in)
		o.observeBroker("submit_order", start)

		switch {
		case err != nil:
			skipped = append(skipped, o.skip(in.StockID, SkipRejected, err.Error()))
			if o.opts.Metrics != nil {
				o.opts.Metrics.OrdersRejected.Inc()
			}
		case !result.Accepted:
			skipped = append(skipped, o.skip(in.StockID, SkipRejected, result.Message))
			if o.opts.Metrics != nil {
				o.opts.Metrics.OrdersRejected.Inc()
			}
		default:
			submitted = append(submitted, in)
			if o.opts.Metrics != nil {
				o.opts.Metrics.OrdersSubmitted.Inc()
			}
			o.opts.Log.Info("order submitted",
				"stock", in.StockID, "action", string(in.Action), "qty", in.Qty.String(),
				"price", in.PriceLabel, "odd_lot", in.OddLot, "broker_order_id", result.BrokerOrderID)
		}
	}
	return submitted, skipped
}

func (o *Orchestrator) audit(ctx context.Context, orderTS time.Time, submitted []model.OrderIntent) error {
	if len(submitted) == 0 {
		return nil
	}
	start := o.opts.Now()
	err := o.opts.Auditor.AppendOrders(ctx, o.opts.AccountID, orderTS, submitted)
	if o.opts.Metrics != nil {
		o.opts.Metrics.AuditCommitDur.Observe(o.opts.Now().Sub(start).Seconds())
	}
	return err
}

func (o *Orchestrator) skip(stockID, reason, detail string) SkippedOrder {
	o.opts.Log.Warn("order skipped", "stock", stockID, "reason", reason, "detail", detail)
	if o.opts.Metrics != nil {
		o.opts.Metrics.OrdersSkipped.WithLabelValues(reason).Inc()
	}
	return SkippedOrder{StockID: stockID, Reason: reason, Detail: detail}
}

func (o *Orchestrator) fail(ctx context.Context, start time.Time, res RunResult, stage string, err error) (RunResult, error) {
	failedFrom := res.State
	res.State = StateFailed
	o.countRun("failed", start)

	o.opts.Log.Error("rebalance failed", "stage", stage, "from_state", string(failedFrom), "err", err)
	alert := notification.Alert{
		Level:   notification.AlertCritical,
		Title:   "rebalance run failed",
		Message: fmt.Sprintf("%s: %v", stage, err),
		Fields: map[string]string{
			"account":    o.opts.AccountID,
			"strategy":   o.opts.Engine.Name(),
			"from_state": string(failedFrom),
		},
	}
	if nerr := o.opts.Notifier.Send(ctx, alert); nerr != nil {
		o.opts.Log.Warn("fatal alert delivery failed", "err", nerr)
	}
	return res, fmt.Errorf("%s: %w", stage, err)
}

func (o *Orchestrator) countCache(fresh bool) {
	if o.opts.Metrics == nil {
		return
	}
	if fresh {
		o.opts.Metrics.PlanCacheMisses.Inc()
	} else {
		o.opts.Metrics.PlanCacheHits.Inc()
	}
}

func (o *Orchestrator) countRun(outcome string, start time.Time) {
	if o.opts.Metrics == nil {
		return
	}
	o.opts.Metrics.RunsTotal.WithLabelValues(outcome).Inc()
	o.opts.Metrics.RunDuration.Observe(o.opts.Now().Sub(start).Seconds())
}

func (o *Orchestrator) observeBroker(call string, start time.Time) {
	if o.opts.Metrics == nil {
		return
	}
	o.opts.Metrics.BrokerCallDur.WithLabelValues(call).Observe(o.opts.Now().Sub(start).Seconds())
}

func isSkippable(err error) bool {
	return errors.Is(err, pricing.ErrNoQuote)
}
