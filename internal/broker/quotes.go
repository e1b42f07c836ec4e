package broker

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Quote is the brokerage's top-of-book snapshot. Missing prices decode as zero.
type Quote struct {
	Symbol                      string          `json:"symbol"`
	AskPrice                    decimal.Decimal `json:"ask_price"`
	AskSize                     int64           `json:"ask_size"`
	BidPrice                    decimal.Decimal `json:"bid_price"`
	BidSize                     int64           `json:"bid_size"`
	LastTradePrice              decimal.Decimal `json:"last_trade_price"`
	LastExtendedHoursTradePrice decimal.Decimal `json:"last_extended_hours_trade_price"`
	PreviousClose               decimal.Decimal `json:"previous_close"`
	TradingHalted               bool            `json:"trading_halted"`
	Instrument                  string          `json:"instrument"`
	UpdatedAt                   string          `json:"updated_at"`
}

func (c *Client) Quote(ctx context.Context, symbol string) (Quote, error) {
	resp, err := c.Call(ctx, resGetQuote, Params{"symbol": symbol})
	if err != nil {
		return Quote{}, err
	}
	q, err := decodeAs[Quote](resp)
	if err != nil {
		return Quote{}, fmt.Errorf("decode quote %s: %w", symbol, err)
	}
	return q, nil
}

func (c *Client) Quotes(ctx context.Context, symbols []string) ([]Quote, error) {
	resp, err := c.Call(ctx, resGetQuotes, Params{"symbols": strings.Join(symbols, ",")})
	if err != nil {
		return nil, err
	}
	p, err := decodeAs[page[Quote]](resp)
	if err != nil {
		return nil, fmt.Errorf("decode quotes: %w", err)
	}
	return p.Results, nil
}
