package broker

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

type User struct {
	URL       string `json:"url"`
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type Account struct {
	URL           string          `json:"url"`
	AccountNumber string          `json:"account_number"`
	Type          string          `json:"type"`
	Deactivated   bool            `json:"deactivated"`
	BuyingPower   decimal.Decimal `json:"buying_power"`
	Cash          decimal.Decimal `json:"cash"`
	Positions     string          `json:"positions"`
	User          string          `json:"user"`
}

// PositionsLink points at the account's positions collection.
func (a Account) PositionsLink() Link {
	return Link{URL: a.Positions, RequiresAuth: true}
}

type Position struct {
	URL             string          `json:"url"`
	Account         string          `json:"account"`
	Instrument      string          `json:"instrument"`
	Quantity        decimal.Decimal `json:"quantity"`
	AverageBuyPrice decimal.Decimal `json:"average_buy_price"`
}

func (c *Client) User(ctx context.Context) (User, error) {
	resp, err := c.Call(ctx, resGetUser, nil)
	if err != nil {
		return User{}, err
	}
	return decodeAs[User](resp)
}

func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	resp, err := c.Call(ctx, resGetAccounts, nil)
	if err != nil {
		return nil, err
	}
	p, err := decodeAs[page[Account]](resp)
	if err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	return p.Results, nil
}

// FirstActiveAccount returns the first account not flagged deactivated.
func (c *Client) FirstActiveAccount(ctx context.Context) (Account, error) {
	accounts, err := c.Accounts(ctx)
	if err != nil {
		return Account{}, err
	}
	for _, a := range accounts {
		if !a.Deactivated {
			return a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

// Positions follows the account's positions link.
func (c *Client) Positions(ctx context.Context, account Account) ([]Position, error) {
	link := account.PositionsLink()
	if link.IsZero() {
		return nil, fmt.Errorf("account %s has no positions link", account.AccountNumber)
	}
	resp, err := c.Follow(ctx, link, "")
	if err != nil {
		return nil, err
	}
	p, err := decodeAs[page[Position]](resp)
	if err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	return p.Results, nil
}

// PositionFor returns the account's position in instrument, or nil when none is held.
func (c *Client) PositionFor(ctx context.Context, account Account, instrument Instrument) (*Position, error) {
	positions, err := c.Positions(ctx, account)
	if err != nil {
		return nil, err
	}
	for i := range positions {
		if positions[i].Instrument == instrument.URL {
			return &positions[i], nil
		}
	}
	return nil, nil
}
