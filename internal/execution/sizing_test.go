package execution

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/stockpick-trader/internal/broker"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMarketPrice(t *testing.T) {
	tests := []struct {
		name  string
		quote broker.Quote
		side  Side
		want  string
	}{
		{"buy takes ask above last", broker.Quote{AskPrice: d("101"), LastTradePrice: d("100.5")}, SideBuy, "101"},
		{"buy takes last above ask", broker.Quote{AskPrice: d("99"), LastTradePrice: d("100.5")}, SideBuy, "100.5"},
		{"sell takes bid below last", broker.Quote{BidPrice: d("100.4"), LastTradePrice: d("100.5")}, SideSell, "100.4"},
		{"sell takes last below bid", broker.Quote{BidPrice: d("100.4"), LastTradePrice: d("100.1")}, SideSell, "100.1"},
		{"keeps sub-cent digits", broker.Quote{AskPrice: d("100.004"), LastTradePrice: d("100")}, SideBuy, "100.004"},
		{"keeps sub-penny quote", broker.Quote{AskPrice: d("0.004"), LastTradePrice: d("0.003")}, SideBuy, "0.004"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MarketPrice(tt.quote, tt.side)
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestBuyQuantity(t *testing.T) {
	tests := []struct {
		name   string
		target string
		price  string
		want   int64
	}{
		{"rounds to nearest", "500", "101", 5},
		{"rounds down", "500", "120", 4},
		{"minimum one share", "100", "251.2", 1},
		{"zero price", "500", "0", 0},
		{"negative price", "500", "-1", 0},
		{"zero target still buys one", "0", "10", 1},
		{"sub-penny price", "500", "0.004", 125000},
		{"sub-dollar price", "500", "0.0449", 11136},
		{"sub-cent digits not rounded away", "250", "100.004", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuyQuantity(d(tt.target), d(tt.price)))
		})
	}
}

func TestTickPrice(t *testing.T) {
	tests := []struct {
		name  string
		price string
		want  string
	}{
		{"cents at a dollar and above", "10.005", "10.01"},
		{"rounds down to cents", "10.0049", "10"},
		{"four places below a dollar", "0.04494", "0.0449"},
		{"positive never rounds to zero", "0.00004", "0.0001"},
		{"zero stays zero", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TickPrice(d(tt.price))
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestSellQuantity(t *testing.T) {
	assert.Equal(t, int64(0), SellQuantity(nil))
	assert.Equal(t, int64(-12), SellQuantity(&broker.Position{Quantity: d("12.0000")}))
	assert.Equal(t, int64(-3), SellQuantity(&broker.Position{Quantity: d("3.75")}))
	assert.Equal(t, int64(0), SellQuantity(&broker.Position{Quantity: d("0.4")}))
}

func TestNewOrderConfig(t *testing.T) {
	account := broker.Account{URL: "https://api.example.com/accounts/1/"}
	instrument := broker.Instrument{URL: "https://api.example.com/instruments/a/", Symbol: "AAPL"}
	quote := broker.Quote{AskPrice: d("101"), BidPrice: d("100.4"), LastTradePrice: d("100.5")}

	buy, err := NewOrderConfig(account, instrument, quote, 5)
	require.NoError(t, err)
	assert.Equal(t, SideBuy, buy.Side)
	assert.Equal(t, int64(5), buy.Quantity)
	assert.Equal(t, "market", buy.Type)
	assert.Equal(t, "gfd", buy.TimeInForce)
	assert.Equal(t, "immediate", buy.Trigger)
	assert.NotEmpty(t, buy.ClientID)

	params := buy.Params()
	assert.Equal(t, "101.00", params["price"])
	assert.Equal(t, "5", params["quantity"])
	assert.Equal(t, "buy", params["side"])
	assert.Equal(t, account.URL, params["account"])
	assert.Equal(t, instrument.URL, params["instrument"])

	sell, err := NewOrderConfig(account, instrument, quote, -7)
	require.NoError(t, err)
	assert.Equal(t, SideSell, sell.Side)
	assert.Equal(t, int64(7), sell.Quantity)
	assert.Equal(t, "100.40", sell.Params()["price"])
	assert.NotEqual(t, buy.ClientID, sell.ClientID)
}

func TestNewOrderConfigSubDollarQuotes(t *testing.T) {
	tests := []struct {
		name      string
		quote     broker.Quote
		wantQty   int64
		wantPrice string
	}{
		{"sub-penny ask", broker.Quote{AskPrice: d("0.004"), LastTradePrice: d("0.0035")}, 125000, "0.0040"},
		{"sub-dollar ask", broker.Quote{AskPrice: d("0.0449"), LastTradePrice: d("0.044")}, 11136, "0.0449"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qty := BuyQuantity(d("500"), MarketPrice(tt.quote, SideBuy))
			require.Equal(t, tt.wantQty, qty)

			cfg, err := NewOrderConfig(broker.Account{}, broker.Instrument{Symbol: "PENNY"}, tt.quote, qty)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrice, cfg.Params()["price"])
		})
	}
}

func TestNewOrderConfigRejectsEmptyOrders(t *testing.T) {
	quote := broker.Quote{AskPrice: d("101"), BidPrice: d("100.4"), LastTradePrice: d("100.5")}

	_, err := NewOrderConfig(broker.Account{}, broker.Instrument{}, quote, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = NewOrderConfig(broker.Account{}, broker.Instrument{}, broker.Quote{}, 3)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}
