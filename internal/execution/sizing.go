package execution

import (
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/stockpick-trader/internal/broker"
)

// ErrInvalidQuantity means sizing produced zero shares or no usable price.
var ErrInvalidQuantity = errors.New("invalid quantity")

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// MarketPrice is the reference price for a market order: the worse of ask and last
// for buys, the worse of bid and last for sells. It is not rounded; sizing uses it
// as quoted and only the submitted price field is rounded to a tick.
func MarketPrice(q broker.Quote, side Side) decimal.Decimal {
	if side == SideBuy {
		return decimal.Max(q.AskPrice, q.LastTradePrice)
	}
	return decimal.Min(q.BidPrice, q.LastTradePrice)
}

var subPennyTick = decimal.New(1, -4)

// TickPrice rounds a price to the brokerage tick: cents at or above one dollar,
// hundredths of a cent below. A positive price never rounds to zero.
func TickPrice(p decimal.Decimal) decimal.Decimal {
	if p.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return p.Round(2)
	}
	r := p.Round(4)
	if p.IsPositive() && !r.IsPositive() {
		return subPennyTick
	}
	return r
}

func formatTick(p decimal.Decimal) string {
	t := TickPrice(p)
	if t.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return t.StringFixed(2)
	}
	return t.StringFixed(4)
}

// BuyQuantity sizes a buy so its notional is closest to target. It returns at least
// one share whenever price is positive, and zero otherwise.
func BuyQuantity(target, price decimal.Decimal) int64 {
	if !price.IsPositive() {
		return 0
	}
	n := target.Div(price).Round(0).IntPart()
	if n < 1 {
		return 1
	}
	return n
}

// SellQuantity is the whole-share part of a held position, negated. No position
// sells nothing.
func SellQuantity(pos *broker.Position) int64 {
	if pos == nil {
		return 0
	}
	return -pos.Quantity.Truncate(0).IntPart()
}

// OrderConfig is a fully sized market order, ready to submit. Price is the
// unrounded reference price; PriceString is what goes on the wire.
type OrderConfig struct {
	Account     string          `json:"account"`
	Instrument  string          `json:"instrument"`
	Symbol      string          `json:"symbol"`
	Type        string          `json:"type"`
	TimeInForce string          `json:"time_in_force"`
	Trigger     string          `json:"trigger"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	Side        Side            `json:"side"`
	ClientID    string          `json:"client_id"`
}

// NewOrderConfig builds a market order from a signed quantity: positive buys,
// negative sells. Zero quantity or a non-positive price fails with ErrInvalidQuantity.
func NewOrderConfig(account broker.Account, instrument broker.Instrument, quote broker.Quote, quantity int64) (OrderConfig, error) {
	if quantity == 0 {
		return OrderConfig{}, ErrInvalidQuantity
	}
	side := SideBuy
	if quantity < 0 {
		side = SideSell
		quantity = -quantity
	}
	price := MarketPrice(quote, side)
	if !price.IsPositive() {
		return OrderConfig{}, ErrInvalidQuantity
	}
	return OrderConfig{
		Account:     account.URL,
		Instrument:  instrument.URL,
		Symbol:      instrument.Symbol,
		Type:        "market",
		TimeInForce: "gfd",
		Trigger:     "immediate",
		Price:       price,
		Quantity:    quantity,
		Side:        side,
		ClientID:    uuid.NewString(),
	}, nil
}

// PriceString is Price rounded to the brokerage tick.
func (o OrderConfig) PriceString() string { return formatTick(o.Price) }

// Params renders the order as brokerage form fields.
func (o OrderConfig) Params() broker.Params {
	return broker.Params{
		"account":       o.Account,
		"instrument":    o.Instrument,
		"symbol":        o.Symbol,
		"type":          o.Type,
		"time_in_force": o.TimeInForce,
		"trigger":       o.Trigger,
		"price":         o.PriceString(),
		"quantity":      strconv.FormatInt(o.Quantity, 10),
		"side":          string(o.Side),
		"client_id":     o.ClientID,
	}
}
