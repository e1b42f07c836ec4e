package broker

import (
	"context"
	"fmt"
)

type Market struct {
	URL         string `json:"url"`
	MIC         string `json:"mic"`
	Acronym     string `json:"acronym"`
	Name        string `json:"name"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Timezone    string `json:"timezone"`
	Website     string `json:"website"`
	TodaysHours string `json:"todays_hours"`
}

type MarketHours struct {
	Date              string `json:"date"`
	IsOpen            bool   `json:"is_open"`
	OpensAt           string `json:"opens_at"`
	ClosesAt          string `json:"closes_at"`
	ExtendedOpensAt   string `json:"extended_opens_at"`
	ExtendedClosesAt  string `json:"extended_closes_at"`
	NextOpenHours     string `json:"next_open_hours"`
	PreviousOpenHours string `json:"previous_open_hours"`
}

func (c *Client) Markets(ctx context.Context) ([]Market, error) {
	resp, err := c.Call(ctx, resGetMarkets, nil)
	if err != nil {
		return nil, err
	}
	p, err := decodeAs[page[Market]](resp)
	if err != nil {
		return nil, fmt.Errorf("decode markets: %w", err)
	}
	return p.Results, nil
}

func (c *Client) Market(ctx context.Context, mic string) (Market, error) {
	resp, err := c.Call(ctx, resGetMarket, Params{"mic": mic})
	if err != nil {
		return Market{}, err
	}
	return decodeAs[Market](resp)
}

// MarketHours returns the trading hours of market mic on date (YYYY-MM-DD).
func (c *Client) MarketHours(ctx context.Context, mic, date string) (MarketHours, error) {
	resp, err := c.Call(ctx, resGetMarketHours, Params{"mic": mic, "date": date})
	if err != nil {
		return MarketHours{}, err
	}
	return decodeAs[MarketHours](resp)
}
