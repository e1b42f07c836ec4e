package execution

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/stockpick-trader/internal/broker"
	"github.com/Rajchodisetti/stockpick-trader/internal/signals"
	"github.com/Rajchodisetti/stockpick-trader/internal/stubs"
)

type recorder struct {
	mu     sync.Mutex
	events []string
	loads  []any
	err    error
}

func (r *recorder) Observe(_ context.Context, event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.loads = append(r.loads, payload)
	return r.err
}

func newPipeline(t *testing.T, opts Options) (*Pipeline, *stubs.BrokerageServer) {
	t.Helper()
	fx := stubs.DefaultFixtures()
	stub := stubs.NewBrokerageServer(fx)
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	client, err := broker.NewClient(broker.Config{BaseURL: srv.URL, Username: fx.Username, Password: fx.Password})
	require.NoError(t, err)
	if opts.PurchaseTarget.IsZero() {
		opts.PurchaseTarget = decimal.NewFromInt(500)
	}
	return NewPipeline(client, opts), stub
}

func TestBuyAtMarketByTarget(t *testing.T) {
	rec := &recorder{}
	p, stub := newPipeline(t, Options{Observer: rec})

	res, err := p.BuyAtMarketByTarget(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Config.Quantity)
	assert.True(t, res.Config.Price.Equal(decimal.NewFromInt(101)))
	assert.Equal(t, "queued", res.Order.State)

	orders := stub.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "5", orders[0]["quantity"])
	assert.Equal(t, "101.00", orders[0]["price"])
	assert.Equal(t, "buy", orders[0]["side"])
	assert.Equal(t, "market", orders[0]["type"])
	assert.Equal(t, "gfd", orders[0]["time_in_force"])
	assert.Equal(t, "immediate", orders[0]["trigger"])
	assert.Contains(t, orders[0]["account"], "/accounts/5QR24642/")

	assert.Equal(t, []string{EventPreSubmit, EventPostSubmit}, rec.events)
	assert.IsType(t, OrderConfig{}, rec.loads[0])
	assert.IsType(t, OrderResult{}, rec.loads[1])
}

func TestBuyMinimumOneShare(t *testing.T) {
	p, stub := newPipeline(t, Options{PurchaseTarget: decimal.NewFromInt(100)})

	res, err := p.BuyAtMarketByTarget(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Config.Quantity)
	assert.Len(t, stub.Orders(), 1)
}

func TestBuyZeroPriceSubmitsNothing(t *testing.T) {
	rec := &recorder{}
	p, stub := newPipeline(t, Options{Observer: rec})

	_, err := p.BuyAtMarketByTarget(context.Background(), "ZERO")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Empty(t, stub.Orders())
	assert.Empty(t, rec.events)
}

func TestBuySubPennyQuoteSizesOnQuotedPrice(t *testing.T) {
	p, stub := newPipeline(t, Options{})
	stub.SetQuote(stubs.QuoteFixture{Symbol: "ZERO", Ask: "0.004", Bid: "0.003", Last: "0.0035"})

	res, err := p.BuyAtMarketByTarget(context.Background(), "ZERO")
	require.NoError(t, err)
	assert.Equal(t, int64(125000), res.Config.Quantity)

	orders := stub.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "125000", orders[0]["quantity"])
	assert.Equal(t, "0.0040", orders[0]["price"])
}

func TestSellAllAtMarket(t *testing.T) {
	p, stub := newPipeline(t, Options{})

	res, err := p.SellAllAtMarket(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, SideSell, res.Config.Side)
	assert.Equal(t, int64(12), res.Config.Quantity)

	orders := stub.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "sell", orders[0]["side"])
	assert.Equal(t, "12", orders[0]["quantity"])
	assert.Equal(t, "250.10", orders[0]["price"])
}

func TestSellWithoutPositionSubmitsNothing(t *testing.T) {
	p, stub := newPipeline(t, Options{})

	_, err := p.SellAllAtMarket(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Empty(t, stub.Orders())
}

func TestUnknownSymbolFails(t *testing.T) {
	p, stub := newPipeline(t, Options{})

	_, err := p.Execute(context.Background(), signals.TradeIntent{Symbol: "AAP", Direction: signals.Buy})
	var notFound *broker.SymbolNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "symbol_not_found", FailureReason(err))
	assert.Empty(t, stub.Orders())
}

func TestHookPolicy(t *testing.T) {
	tests := []struct {
		name    string
		policy  HookPolicy
		wantErr bool
		orders  int
	}{
		{"ignore keeps going", HookIgnore, false, 1},
		{"fail stops before submit", HookFail, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{err: errors.New("smtp down")}
			p, stub := newPipeline(t, Options{Observer: rec, HookPolicy: tt.policy})

			_, err := p.BuyAtMarketByTarget(context.Background(), "AAPL")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrHook)
				assert.Equal(t, "hook", FailureReason(err))
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, stub.Orders(), tt.orders)
		})
	}
}

func TestUpstreamRejectionFailsRun(t *testing.T) {
	rec := &recorder{}
	p, stub := newPipeline(t, Options{Observer: rec})
	stub.FailOrders(http.StatusBadRequest, `{"detail": "Not enough buying power."}`)

	_, err := p.BuyAtMarketByTarget(context.Background(), "AAPL")
	var upstream *broker.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusBadRequest, upstream.Status)
	assert.Equal(t, []string{EventPreSubmit}, rec.events)
}

func TestExecuteAllAggregates(t *testing.T) {
	p, stub := newPipeline(t, Options{})

	batch := p.ExecuteAll(context.Background(), []signals.TradeIntent{
		{Symbol: "AAPL", Direction: signals.Buy},
		{Symbol: "AAPL", Direction: signals.Sell},
		{Symbol: "TSLA", Direction: signals.Sell},
		{Symbol: "NOPE", Direction: signals.Buy},
	})

	require.Len(t, batch.Results, 4)
	assert.NoError(t, batch.Results[0].Err)
	assert.ErrorIs(t, batch.Results[1].Err, ErrInvalidQuantity)
	assert.NoError(t, batch.Results[2].Err)
	assert.Error(t, batch.Results[3].Err)
	assert.Len(t, batch.Failed(), 2)
	assert.Len(t, stub.Orders(), 2)

	err := batch.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	var notFound *broker.SymbolNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestExecuteAllEmpty(t *testing.T) {
	p, _ := newPipeline(t, Options{})

	batch := p.ExecuteAll(context.Background(), nil)
	assert.Empty(t, batch.Results)
	assert.NoError(t, batch.Err())
}
