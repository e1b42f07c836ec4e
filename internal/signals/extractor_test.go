package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/stockpick-trader/internal/config"
)

func pick(message string) string {
	return `<table><tr><td>Stock Picks</td><td>` + message + `</td></tr></table>`
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    TradeIntent
		ok      bool
	}{
		{"purchase", "Today we purchased the stock XYZ at open", TradeIntent{Symbol: "XYZ", Direction: Buy}, true},
		{"doubled down", "we doubled down on the stock abc again", TradeIntent{Symbol: "ABC", Direction: Buy}, true},
		{"sell", "we sold the stock def", TradeIntent{Symbol: "DEF", Direction: Sell}, true},
		{"before strategy", "Sadly ghi has spoiled and we sold it", TradeIntent{Symbol: "GHI", Direction: Sell}, true},
		{"trailing punctuation", "we sold the stock tsla.", TradeIntent{Symbol: "TSLA", Direction: Sell}, true},
		{"extra whitespace", "we purchased the stock \n  msft  now", TradeIntent{Symbol: "MSFT", Direction: Buy}, true},
		{"no rule", "nothing to see here", TradeIntent{}, false},
		{"trigger at end", "we purchased the stock", TradeIntent{}, false},
		{"trigger at end with punctuation", "we purchased the stock .", TradeIntent{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Match(tt.message, MarketVulture)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchFirstRuleWins(t *testing.T) {
	got, ok := Match("we purchased the stock AAA and we sold the stock BBB", MarketVulture)
	require.True(t, ok)
	assert.Equal(t, TradeIntent{Symbol: "AAA", Direction: Buy}, got)

	// Rule order, not position in the message, decides.
	got, ok = Match("we sold the stock BBB; we purchased the stock AAA", MarketVulture)
	require.True(t, ok)
	assert.Equal(t, TradeIntent{Symbol: "AAA", Direction: Buy}, got)
}

func TestExtractSingleBuy(t *testing.T) {
	intents, err := ExtractHTML(pick("Today we purchased the stock XYZ at open"), MarketVulture)
	require.NoError(t, err)
	assert.Equal(t, []TradeIntent{{Symbol: "XYZ", Direction: Buy}}, intents)
}

func TestExtractMultipleMarkersInOrder(t *testing.T) {
	html := `<table>
		<tr><td>Stock Picks</td><td>we sold the stock abc</td></tr>
		<tr><td>Stock Picks</td><td>nothing here</td></tr>
		<tr><td>Stock Picks</td><td>we purchased the stock def</td></tr>
		<tr><td>Stock Picks</td><td>we purchased the stock def</td></tr>
	</table>`
	intents, err := ExtractHTML(html, MarketVulture)
	require.NoError(t, err)
	assert.Equal(t, []TradeIntent{
		{Symbol: "ABC", Direction: Sell},
		{Symbol: "DEF", Direction: Buy},
		{Symbol: "DEF", Direction: Buy},
	}, intents)
}

func TestExtractNoMarkers(t *testing.T) {
	intents, err := ExtractHTML(`<p>we purchased the stock XYZ</p>`, MarketVulture)
	require.NoError(t, err)
	assert.Empty(t, intents)
}

func TestExtractMarkerWithoutSibling(t *testing.T) {
	intents, err := ExtractHTML(`<table><tr><td>Stock Picks</td></tr></table>`, MarketVulture)
	require.NoError(t, err)
	assert.Empty(t, intents)
}

func TestDirectionText(t *testing.T) {
	assert.Equal(t, "buy", Buy.String())
	assert.Equal(t, "sell", Sell.String())

	var d Direction
	require.NoError(t, d.UnmarshalText([]byte("SELL")))
	assert.Equal(t, Sell, d)
	assert.Error(t, d.UnmarshalText([]byte("hold")))
}

func TestRegistryFromConfig(t *testing.T) {
	reg, err := RegistryFromConfig(config.Signals{Variants: map[string][]config.Rule{
		"dailyDip": {
			{Trigger: "Adding Shares Of", Direction: "buy"},
			{Trigger: "is out of the portfolio", Direction: "sell", Symbol: "before"},
		},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"dailyDip", "marketVulture"}, reg.Names())

	rules, ok := reg.Lookup("dailyDip")
	require.True(t, ok)
	intents, err := ExtractHTML(pick("We are adding shares of nvda.")+pick("amd is out of the portfolio"), rules)
	require.NoError(t, err)
	assert.Equal(t, []TradeIntent{{Symbol: "NVDA", Direction: Buy}, {Symbol: "AMD", Direction: Sell}}, intents)

	_, ok = reg.Lookup("unknown")
	assert.False(t, ok)
}

func TestRegistryFromConfigRejectsBadRules(t *testing.T) {
	_, err := RegistryFromConfig(config.Signals{Variants: map[string][]config.Rule{
		"bad": {{Trigger: "x", Direction: "hold"}},
	}})
	assert.Error(t, err)

	_, err = RegistryFromConfig(config.Signals{Variants: map[string][]config.Rule{
		"bad": {{Trigger: "x", Direction: "buy", Symbol: "middle"}},
	}})
	assert.Error(t, err)
}
