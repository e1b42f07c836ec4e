// Package execution sizes and submits market orders for extracted trade intents.
package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/stockpick-trader/internal/broker"
	"github.com/Rajchodisetti/stockpick-trader/internal/observ"
	"github.com/Rajchodisetti/stockpick-trader/internal/signals"
)

// Brokerage is the slice of the brokerage client a pipeline run needs.
type Brokerage interface {
	FirstActiveAccount(ctx context.Context) (broker.Account, error)
	Instrument(ctx context.Context, symbol string) (broker.Instrument, error)
	Quote(ctx context.Context, symbol string) (broker.Quote, error)
	PositionFor(ctx context.Context, account broker.Account, instrument broker.Instrument) (*broker.Position, error)
	PlaceOrder(ctx context.Context, p broker.Params) (broker.Order, error)
}

const (
	EventPreSubmit  = "order.pre_submit"
	EventPostSubmit = "order.post_submit"
)

// Observer is notified around every submission. Payload is the OrderConfig before
// submission and the OrderResult after.
type Observer interface {
	Observe(ctx context.Context, event string, payload any) error
}

type ObserverFunc func(ctx context.Context, event string, payload any) error

func (f ObserverFunc) Observe(ctx context.Context, event string, payload any) error {
	return f(ctx, event, payload)
}

// HookPolicy decides whether an observer error fails the run.
type HookPolicy string

const (
	HookIgnore HookPolicy = "ignore"
	HookFail   HookPolicy = "fail"
)

// ErrHook wraps observer failures under HookFail.
var ErrHook = errors.New("order hook failed")

// OrderResult is what the brokerage accepted.
type OrderResult struct {
	Config OrderConfig  `json:"config"`
	Order  broker.Order `json:"order"`
}

type Options struct {
	PurchaseTarget decimal.Decimal
	Observer       Observer
	HookPolicy     HookPolicy
}

type Pipeline struct {
	broker   Brokerage
	target   decimal.Decimal
	observer Observer
	policy   HookPolicy
}

func NewPipeline(b Brokerage, opts Options) *Pipeline {
	if opts.HookPolicy == "" {
		opts.HookPolicy = HookIgnore
	}
	return &Pipeline{
		broker:   b,
		target:   opts.PurchaseTarget,
		observer: opts.Observer,
		policy:   opts.HookPolicy,
	}
}

// Execute runs one intent to completion.
func (p *Pipeline) Execute(ctx context.Context, intent signals.TradeIntent) (OrderResult, error) {
	switch intent.Direction {
	case signals.Buy:
		return p.BuyAtMarketByTarget(ctx, intent.Symbol)
	case signals.Sell:
		return p.SellAllAtMarket(ctx, intent.Symbol)
	default:
		return OrderResult{}, fmt.Errorf("unknown direction %v", intent.Direction)
	}
}

// BuyAtMarketByTarget buys the share count whose notional is closest to the purchase
// target, at least one share.
func (p *Pipeline) BuyAtMarketByTarget(ctx context.Context, symbol string) (OrderResult, error) {
	account, instrument, err := p.resolve(ctx, symbol)
	if err != nil {
		return p.fail(symbol, SideBuy, err)
	}
	quote, err := p.broker.Quote(ctx, instrument.Symbol)
	if err != nil {
		return p.fail(symbol, SideBuy, fmt.Errorf("quote %s: %w", symbol, err))
	}
	qty := BuyQuantity(p.target, MarketPrice(quote, SideBuy))
	return p.submit(ctx, account, instrument, quote, qty, SideBuy)
}

// SellAllAtMarket sells the whole-share part of the current position.
func (p *Pipeline) SellAllAtMarket(ctx context.Context, symbol string) (OrderResult, error) {
	account, instrument, err := p.resolve(ctx, symbol)
	if err != nil {
		return p.fail(symbol, SideSell, err)
	}
	pos, err := p.broker.PositionFor(ctx, account, instrument)
	if err != nil {
		return p.fail(symbol, SideSell, fmt.Errorf("position %s: %w", symbol, err))
	}
	quote, err := p.broker.Quote(ctx, instrument.Symbol)
	if err != nil {
		return p.fail(symbol, SideSell, fmt.Errorf("quote %s: %w", symbol, err))
	}
	return p.submit(ctx, account, instrument, quote, SellQuantity(pos), SideSell)
}

func (p *Pipeline) resolve(ctx context.Context, symbol string) (broker.Account, broker.Instrument, error) {
	account, err := p.broker.FirstActiveAccount(ctx)
	if err != nil {
		return broker.Account{}, broker.Instrument{}, err
	}
	instrument, err := p.broker.Instrument(ctx, symbol)
	if err != nil {
		return broker.Account{}, broker.Instrument{}, err
	}
	return account, instrument, nil
}

func (p *Pipeline) submit(ctx context.Context, account broker.Account, instrument broker.Instrument, quote broker.Quote, qty int64, side Side) (OrderResult, error) {
	symbol := instrument.Symbol
	if side == SideSell {
		qty = -abs(qty)
	}
	cfg, err := NewOrderConfig(account, instrument, quote, qty)
	if err != nil {
		return p.fail(symbol, side, fmt.Errorf("%s %s: %w", side, symbol, err))
	}

	observ.Log("order_sized", map[string]any{
		"symbol":    cfg.Symbol,
		"side":      string(cfg.Side),
		"quantity":  cfg.Quantity,
		"price":     cfg.Price.String(),
		"client_id": cfg.ClientID,
	})

	if err := p.notify(ctx, EventPreSubmit, cfg); err != nil {
		return p.fail(symbol, side, err)
	}

	start := time.Now()
	order, err := p.broker.PlaceOrder(ctx, cfg.Params())
	if err != nil {
		return p.fail(symbol, side, fmt.Errorf("place order %s: %w", symbol, err))
	}
	result := OrderResult{Config: cfg, Order: order}

	observ.IncOrderSubmitted(string(cfg.Side))
	observ.Log("order_submitted", map[string]any{
		"symbol":     cfg.Symbol,
		"side":       string(cfg.Side),
		"quantity":   cfg.Quantity,
		"order_id":   order.ID,
		"state":      order.State,
		"latency_ms": time.Since(start).Milliseconds(),
	})

	if err := p.notify(ctx, EventPostSubmit, result); err != nil {
		return result, p.failErr(symbol, side, err)
	}
	return result, nil
}

func (p *Pipeline) notify(ctx context.Context, event string, payload any) error {
	if p.observer == nil {
		return nil
	}
	err := p.observer.Observe(ctx, event, payload)
	if err == nil {
		return nil
	}
	observ.IncHookError(event)
	observ.Log("order_hook_error", map[string]any{"event": event, "policy": string(p.policy), "error": err})
	if p.policy == HookFail {
		return fmt.Errorf("%w: %s: %w", ErrHook, event, err)
	}
	return nil
}

func (p *Pipeline) fail(symbol string, side Side, err error) (OrderResult, error) {
	return OrderResult{}, p.failErr(symbol, side, err)
}

func (p *Pipeline) failErr(symbol string, side Side, err error) error {
	reason := FailureReason(err)
	observ.IncPipelineFailure(reason)
	observ.Log("order_failed", map[string]any{
		"symbol": symbol,
		"side":   string(side),
		"reason": reason,
		"error":  err,
	})
	return err
}

// FailureReason buckets a run error for metrics.
func FailureReason(err error) string {
	var notFound *broker.SymbolNotFoundError
	var upstream *broker.UpstreamError
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, broker.ErrAccountNotFound):
		return "account_not_found"
	case errors.As(err, &notFound):
		return "symbol_not_found"
	case errors.Is(err, broker.ErrAuthenticationFailed):
		return "authentication_failed"
	case errors.Is(err, ErrHook):
		return "hook"
	case errors.As(err, &upstream):
		return "upstream"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// Result is the outcome of one intent in a batch.
type Result struct {
	Intent signals.TradeIntent
	Order  OrderResult
	Err    error
}

// Batch holds the results of ExecuteAll in intent order.
type Batch struct {
	Results []Result
}

// Err is nil when every run succeeded, otherwise the joined causes.
func (b Batch) Err() error {
	var errs []error
	for _, r := range b.Results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Intent, r.Err))
		}
	}
	return errors.Join(errs...)
}

func (b Batch) Failed() []Result {
	var out []Result
	for _, r := range b.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// ExecuteAll runs every intent concurrently and waits for all of them. A failure in
// one run never cancels the others.
func (p *Pipeline) ExecuteAll(ctx context.Context, intents []signals.TradeIntent) Batch {
	results := make([]Result, len(intents))
	var wg sync.WaitGroup
	for i, intent := range intents {
		wg.Add(1)
		go func(i int, intent signals.TradeIntent) {
			defer wg.Done()
			order, err := p.Execute(ctx, intent)
			results[i] = Result{Intent: intent, Order: order, Err: err}
		}(i, intent)
	}
	wg.Wait()
	return Batch{Results: results}
}
