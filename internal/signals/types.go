// Package signals turns newsletter emails into trade intents. A marker cell anchors
// each pick; the cell after it holds a free-text message that ordered phrase rules
// classify as a buy or a sell of a symbol.
package signals

import (
	"fmt"
	"strings"
)

type Direction int

const (
	Buy Direction = iota
	Sell
)

func (d Direction) String() string {
	switch d {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection accepts "buy" or "sell", case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// TradeIntent is one extracted pick. Symbol is upper-cased and never empty.
type TradeIntent struct {
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
}

func (t TradeIntent) String() string { return t.Direction.String() + " " + t.Symbol }

// SymbolStrategy says where the ticker sits relative to the trigger phrase.
type SymbolStrategy int

const (
	// After takes the first token following the trigger.
	After SymbolStrategy = iota
	// Before takes the last token preceding the trigger.
	Before
)

func ParseSymbolStrategy(s string) (SymbolStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "after", "phrase-after":
		return After, nil
	case "before", "phrase-before":
		return Before, nil
	default:
		return 0, fmt.Errorf("unknown symbol strategy %q", s)
	}
}

type PhraseRule struct {
	Trigger   string
	Direction Direction
	Strategy  SymbolStrategy
}

// RuleSet is evaluated in order; the first rule whose trigger occurs wins.
type RuleSet []PhraseRule
