package signals

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MarkerSelector finds the cells that introduce a pick.
const MarkerSelector = "td:contains('Stock Picks')"

const symbolPunct = ".,;:!?"

// Match classifies one message. The boolean is false when no rule triggers or the
// winning rule yields no symbol.
func Match(message string, rules RuleSet) (TradeIntent, bool) {
	msg := strings.ToLower(message)
	for _, r := range rules {
		trigger := strings.ToLower(r.Trigger)
		if trigger == "" {
			continue
		}
		idx := strings.Index(msg, trigger)
		if idx < 0 {
			continue
		}
		symbol := symbolFor(msg, idx, trigger, r.Strategy)
		if symbol == "" {
			return TradeIntent{}, false
		}
		return TradeIntent{Symbol: symbol, Direction: r.Direction}, true
	}
	return TradeIntent{}, false
}

func symbolFor(msg string, idx int, trigger string, strategy SymbolStrategy) string {
	var token string
	switch strategy {
	case Before:
		if f := strings.Fields(msg[:idx]); len(f) > 0 {
			token = f[len(f)-1]
		}
	default:
		if f := strings.Fields(msg[idx+len(trigger):]); len(f) > 0 {
			token = f[0]
		}
	}
	return strings.ToUpper(strings.TrimRight(token, symbolPunct))
}

// Extract returns one intent per marker that matches, in document order.
func Extract(doc *goquery.Document, rules RuleSet) []TradeIntent {
	var intents []TradeIntent
	doc.Find(MarkerSelector).Each(func(_ int, marker *goquery.Selection) {
		message := strings.ToLower(marker.Next().Text())
		if intent, ok := Match(message, rules); ok {
			intents = append(intents, intent)
		}
	})
	return intents
}

func ParseHTML(r io.Reader) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(r)
}

// ExtractHTML parses html and extracts from it.
func ExtractHTML(html string, rules RuleSet) ([]TradeIntent, error) {
	doc, err := ParseHTML(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return Extract(doc, rules), nil
}
