package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// Order is the brokerage's view of a submitted order. Raw keeps the full response.
type Order struct {
	ID          string          `json:"id"`
	URL         string          `json:"url"`
	Account     string          `json:"account"`
	Instrument  string          `json:"instrument"`
	Symbol      string          `json:"symbol"`
	Side        string          `json:"side"`
	Type        string          `json:"type"`
	TimeInForce string          `json:"time_in_force"`
	Trigger     string          `json:"trigger"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	State       string          `json:"state"`
	Cancel      string          `json:"cancel"`
	CreatedAt   string          `json:"created_at"`

	Raw json.RawMessage `json:"-"`
}

// ErrNotCancellable means the order no longer carries a cancel link.
var ErrNotCancellable = errors.New("order is not cancellable")

// CancelLink is empty once the order can no longer be cancelled.
func (o Order) CancelLink() Link { return Link{URL: o.Cancel, RequiresAuth: true} }

func (c *Client) Order(ctx context.Context, id string) (Order, error) {
	resp, err := c.Call(ctx, resGetOrder, Params{"order_id": id})
	if err != nil {
		return Order{}, err
	}
	return decodeOrder(resp)
}

func (c *Client) Orders(ctx context.Context) ([]Order, error) {
	resp, err := c.Call(ctx, resGetOrders, nil)
	if err != nil {
		return nil, err
	}
	p, err := decodeAs[page[Order]](resp)
	if err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return p.Results, nil
}

func (c *Client) CancelOrder(ctx context.Context, id string) error {
	_, err := c.Call(ctx, resCancelOrder, Params{"order_id": id})
	return err
}

// Cancel follows the order's own cancel link.
func (c *Client) Cancel(ctx context.Context, o Order) error {
	if o.Cancel == "" {
		return fmt.Errorf("order %s: %w", o.ID, ErrNotCancellable)
	}
	_, err := c.Follow(ctx, o.CancelLink(), http.MethodPost)
	return err
}

// PlaceOrder submits an order. Only the brokerage's order fields are sent.
func (c *Client) PlaceOrder(ctx context.Context, p Params) (Order, error) {
	resp, err := c.Call(ctx, resPlaceOrder, p)
	if err != nil {
		return Order{}, err
	}
	return decodeOrder(resp)
}

func decodeOrder(resp *Response) (Order, error) {
	o, err := decodeAs[Order](resp)
	if err != nil {
		return Order{}, fmt.Errorf("decode order: %w", err)
	}
	o.Raw = resp.Body
	return o, nil
}
