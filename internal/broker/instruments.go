package broker

import (
	"context"
	"fmt"
)

type Instrument struct {
	URL       string `json:"url"`
	ID        string `json:"id"`
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Quote     string `json:"quote"`
	Market    string `json:"market"`
	State     string `json:"state"`
	Tradeable bool   `json:"tradeable"`
}

func (i Instrument) QuoteLink() Link  { return Link{URL: i.Quote} }
func (i Instrument) MarketLink() Link { return Link{URL: i.Market} }

// ListingMarket fetches the market an instrument trades on.
func (c *Client) ListingMarket(ctx context.Context, in Instrument) (Market, error) {
	resp, err := c.Follow(ctx, in.MarketLink(), "")
	if err != nil {
		return Market{}, fmt.Errorf("market of %s: %w", in.Symbol, err)
	}
	return decodeAs[Market](resp)
}

func (c *Client) AllInstruments(ctx context.Context) ([]Instrument, error) {
	resp, err := c.Call(ctx, resGetAllInstruments, nil)
	if err != nil {
		return nil, err
	}
	p, err := decodeAs[page[Instrument]](resp)
	if err != nil {
		return nil, fmt.Errorf("decode instruments: %w", err)
	}
	return p.Results, nil
}

func (c *Client) SearchInstruments(ctx context.Context, query string) ([]Instrument, error) {
	resp, err := c.Call(ctx, resSearchInstruments, Params{"query": query})
	if err != nil {
		return nil, err
	}
	p, err := decodeAs[page[Instrument]](resp)
	if err != nil {
		return nil, fmt.Errorf("decode instrument search: %w", err)
	}
	return p.Results, nil
}

// Instrument searches by symbol and returns the result whose symbol matches exactly.
func (c *Client) Instrument(ctx context.Context, symbol string) (Instrument, error) {
	results, err := c.SearchInstruments(ctx, symbol)
	if err != nil {
		return Instrument{}, err
	}
	for _, in := range results {
		if in.Symbol == symbol {
			return in, nil
		}
	}
	return Instrument{}, &SymbolNotFoundError{Symbol: symbol}
}
