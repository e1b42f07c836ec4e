package stubs

import (
	"encoding/json"
	"fmt"
	"os"
)

// Fixtures seed the fake brokerage. Prices and quantities are strings, as on the wire.
type Fixtures struct {
	Username    string              `json:"username"`
	Password    string              `json:"password"`
	Token       string              `json:"token"`
	Accounts    []AccountFixture    `json:"accounts"`
	Instruments []InstrumentFixture `json:"instruments"`
	Quotes      []QuoteFixture      `json:"quotes"`
	Positions   []PositionFixture   `json:"positions"`
	Markets     []MarketFixture     `json:"markets"`
}

type AccountFixture struct {
	Number      string `json:"account_number"`
	Deactivated bool   `json:"deactivated"`
	BuyingPower string `json:"buying_power"`
	Cash        string `json:"cash"`
}

type InstrumentFixture struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	MIC    string `json:"mic"`
}

type QuoteFixture struct {
	Symbol string `json:"symbol"`
	Ask    string `json:"ask_price"`
	Bid    string `json:"bid_price"`
	Last   string `json:"last_trade_price"`
}

type PositionFixture struct {
	Account  string `json:"account_number"`
	Symbol   string `json:"symbol"`
	Quantity string `json:"quantity"`
}

type MarketFixture struct {
	MIC      string `json:"mic"`
	Acronym  string `json:"acronym"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// DefaultFixtures is a small, deterministic brokerage used by tests and cmd/stubs.
func DefaultFixtures() Fixtures {
	return Fixtures{
		Username: "trader",
		Password: "hunter2",
		Token:    "stub-token-1",
		Accounts: []AccountFixture{
			{Number: "5QR00001", Deactivated: true, BuyingPower: "0.0000", Cash: "0.0000"},
			{Number: "5QR24642", BuyingPower: "2500.0000", Cash: "2500.0000"},
		},
		Instruments: []InstrumentFixture{
			{ID: "450dfc6d-5510-4d40-abfb-f633b7d9be3e", Symbol: "AAPL", Name: "Apple Inc.", MIC: "XNAS"},
			{ID: "1a4c6ab4-4ab0-4a3e-9e3f-5c6f8b3b2e11", Symbol: "AAPLW", Name: "Apple Warrant", MIC: "XNAS"},
			{ID: "e39ed23a-7bd1-4587-b060-71988d9ef483", Symbol: "TSLA", Name: "Tesla, Inc.", MIC: "XNAS"},
			{ID: "3a47ca97-d5a2-4a55-9045-053a588894de", Symbol: "ZERO", Name: "Zero Quote Corp", MIC: "XNYS"},
		},
		Quotes: []QuoteFixture{
			{Symbol: "AAPL", Ask: "101.000000", Bid: "100.400000", Last: "100.500000"},
			{Symbol: "TSLA", Ask: "251.200000", Bid: "250.100000", Last: "250.750000"},
			{Symbol: "ZERO", Ask: "0.000000", Bid: "0.000000", Last: "0.000000"},
		},
		Positions: []PositionFixture{
			{Account: "5QR24642", Symbol: "TSLA", Quantity: "12.0000"},
		},
		Markets: []MarketFixture{
			{MIC: "XNAS", Acronym: "NASDAQ", Name: "NASDAQ - All Markets", Timezone: "US/Eastern"},
			{MIC: "XNYS", Acronym: "NYSE", Name: "New York Stock Exchange", Timezone: "US/Eastern"},
		},
	}
}

// LoadFixtures reads fixtures from a JSON file.
func LoadFixtures(path string) (Fixtures, error) {
	var f Fixtures
	b, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}
