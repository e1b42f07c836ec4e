package signals

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Rajchodisetti/stockpick-trader/internal/config"
)

// MarketVulture is the rule set for the Market Vulture newsletter.
var MarketVulture = RuleSet{
	{Trigger: "we purchased the stock", Direction: Buy, Strategy: After},
	{Trigger: "we doubled down on the stock", Direction: Buy, Strategy: After},
	{Trigger: "we sold the stock", Direction: Sell, Strategy: After},
	{Trigger: "has spoiled and we sold it", Direction: Sell, Strategy: Before},
}

// Registry maps a source name (the webhook's {source} segment) to its rules.
type Registry struct {
	mu       sync.RWMutex
	variants map[string]RuleSet
}

// NewRegistry returns a registry holding the built-in variants.
func NewRegistry() *Registry {
	return &Registry{variants: map[string]RuleSet{
		"marketVulture": MarketVulture,
	}}
}

// RegistryFromConfig adds configured variants to the built-ins. A configured variant
// with a built-in name replaces it.
func RegistryFromConfig(cfg config.Signals) (*Registry, error) {
	reg := NewRegistry()
	for name, rules := range cfg.Variants {
		set := make(RuleSet, 0, len(rules))
		for i, r := range rules {
			dir, err := ParseDirection(r.Direction)
			if err != nil {
				return nil, fmt.Errorf("variant %s rule %d: %w", name, i, err)
			}
			strategy, err := ParseSymbolStrategy(r.Symbol)
			if err != nil {
				return nil, fmt.Errorf("variant %s rule %d: %w", name, i, err)
			}
			set = append(set, PhraseRule{
				Trigger:   strings.ToLower(strings.TrimSpace(r.Trigger)),
				Direction: dir,
				Strategy:  strategy,
			})
		}
		reg.Register(name, set)
	}
	return reg, nil
}

func (r *Registry) Register(name string, rules RuleSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variants[name] = rules
}

func (r *Registry) Lookup(name string) (RuleSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rules, ok := r.variants[name]
	return rules, ok
}

// Names lists the registered variants, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.variants))
	for n := range r.variants {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
