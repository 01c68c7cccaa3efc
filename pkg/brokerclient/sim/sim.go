// Package sim provides an in-memory broker gateway for dry runs and
// tests. Accepted orders immediately adjust the simulated position, so a
// rebalance run against the sim converges the same way a filled run
// against a real broker would.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"portfolio-rebalancer/internal/model"
)

// Broker is a scriptable in-memory model.BrokerGateway.
type Broker struct {
	mu        sync.Mutex
	lotSize   int
	positions model.CurrentPosition
	quotes    map[string]model.PriceQuote
	limits    map[string]model.PriceLimit
	rejects   map[string]string
	nextID    int
	open      []model.OrderIntent
	log       *slog.Logger
}

// Option configures the simulated broker.
type Option func(*Broker)

// WithPositions seeds the starting holdings in round-lot units.
func WithPositions(p model.CurrentPosition) Option {
	return func(b *Broker) {
		for id, qty := range p {
			b.positions[id] = qty
		}
	}
}

// WithQuote sets the quote returned for one stock.
func WithQuote(q model.PriceQuote) Option {
	return func(b *Broker) { b.quotes[q.StockID] = q }
}

// WithLimits sets the price band for one stock.
func WithLimits(stockID string, up, down decimal.Decimal) Option {
	return func(b *Broker) { b.limits[stockID] = model.PriceLimit{Up: up, Down: down} }
}

// WithRejection makes every order for stockID come back rejected.
func WithRejection(stockID, message string) Option {
	return func(b *Broker) { b.rejects[stockID] = message }
}

// WithLogger sets the logger; defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(b *Broker) { b.log = log }
}

// New builds a simulated broker. lotSize converts order shares back to
// round-lot units when applying fills.
func New(lotSize int, opts ...Option) *Broker {
	b := &Broker{
		lotSize:   lotSize,
		positions: model.CurrentPosition{},
		quotes:    map[string]model.PriceQuote{},
		limits:    map[string]model.PriceLimit{},
		rejects:   map[string]string{},
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Broker) GetPosition(context.Context) (model.CurrentPosition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(model.CurrentPosition, len(b.positions))
	for id, qty := range b.positions {
		out[id] = qty
	}
	return out, nil
}

func (b *Broker) GetQuote(_ context.Context, stockIDs []string) (map[string]model.PriceQuote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]model.PriceQuote, len(stockIDs))
	for _, id := range stockIDs {
		if q, ok := b.quotes[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func (b *Broker) GetPriceLimits(_ context.Context, stockIDs []string) (map[string]model.PriceLimit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]model.PriceLimit, len(stockIDs))
	for _, id := range stockIDs {
		if l, ok := b.limits[id]; ok {
			out[id] = l
		}
	}
	return out, nil
}

// SubmitOrder accepts or rejects per the scripted rejections. Accepted
// orders fill instantly against the simulated position.
func (b *Broker) SubmitOrder(_ context.Context, intent model.OrderIntent) (model.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg, ok := b.rejects[intent.StockID]; ok {
		return model.OrderResult{Accepted: false, Message: msg}, nil
	}

	lots := intent.Qty.Div(decimal.NewFromInt(int64(b.lotSize)))
	if intent.Action == model.ActionSell {
		lots = lots.Neg()
	}
	after := b.positions.Quantity(intent.StockID).Add(lots)
	if after.IsZero() {
		delete(b.positions, intent.StockID)
	} else {
		b.positions[intent.StockID] = after
	}

	b.nextID++
	id := fmt.Sprintf("sim-%06d", b.nextID)
	b.open = append(b.open, intent)
	b.log.Info("simulated fill",
		"order_id", id, "stock", intent.StockID, "action", string(intent.Action),
		"qty", intent.Qty.String(), "odd_lot", intent.OddLot)
	return model.OrderResult{Accepted: true, BrokerOrderID: id, Message: "filled"}, nil
}

func (b *Broker) CancelAllOpenOrders(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.open)
	b.open = nil
	b.log.Info("cancelled all open orders", "count", n)
	return nil
}

// Submitted returns every accepted order in submission order.
func (b *Broker) Submitted() []model.OrderIntent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.OrderIntent, len(b.open))
	copy(out, b.open)
	return out
}
