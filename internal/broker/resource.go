package broker

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// Params carries the caller's values for URL placeholders and body fields.
type Params map[string]string

// Resource describes one brokerage endpoint. Path is relative to the client's base
// URL unless it is absolute. Placeholders use {name} syntax; every placeholder must
// be declared in URLKeys.
type Resource struct {
	Name     string
	Method   string
	Path     string
	Auth     bool
	URLKeys  []string
	BodyKeys []string
}

var placeholderRE = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// NewResource validates the path template against the declared URL keys.
func NewResource(name, method, path string, auth bool, urlKeys, bodyKeys []string) (Resource, error) {
	if method == "" {
		return Resource{}, fmt.Errorf("resource %s: empty method", name)
	}
	found := map[string]bool{}
	for _, m := range placeholderRE.FindAllStringSubmatch(path, -1) {
		if !slices.Contains(urlKeys, m[1]) {
			return Resource{}, fmt.Errorf("resource %s: placeholder {%s} is not a declared url key", name, m[1])
		}
		found[m[1]] = true
	}
	for _, k := range urlKeys {
		if !found[k] {
			return Resource{}, fmt.Errorf("resource %s: url key %q has no placeholder in %s", name, k, path)
		}
	}
	return Resource{
		Name:     name,
		Method:   strings.ToUpper(method),
		Path:     path,
		Auth:     auth,
		URLKeys:  urlKeys,
		BodyKeys: bodyKeys,
	}, nil
}

func mustResource(name, method, path string, auth bool, urlKeys, bodyKeys []string) Resource {
	r, err := NewResource(name, method, path, auth, urlKeys, bodyKeys)
	if err != nil {
		panic(err)
	}
	return r
}

// buildURL substitutes placeholders; values after the '?' are query-escaped, the
// rest path-escaped.
func (r Resource) buildURL(base string, p Params) (string, error) {
	path := r.Path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		path = base + path
	}
	query := strings.Index(path, "?")

	var b strings.Builder
	var missing []string
	last := 0
	for _, loc := range placeholderRE.FindAllStringSubmatchIndex(path, -1) {
		b.WriteString(path[last:loc[0]])
		last = loc[1]
		key := path[loc[2]:loc[3]]
		v, ok := p[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		if query >= 0 && loc[0] > query {
			b.WriteString(url.QueryEscape(v))
		} else {
			b.WriteString(url.PathEscape(v))
		}
	}
	b.WriteString(path[last:])

	if len(missing) > 0 {
		return "", fmt.Errorf("resource %s: missing parameters %s", r.Name, strings.Join(missing, ", "))
	}
	return b.String(), nil
}

// buildBody picks the declared body keys present in p.
func (r Resource) buildBody(p Params) url.Values {
	if len(r.BodyKeys) == 0 {
		return nil
	}
	form := url.Values{}
	for _, k := range r.BodyKeys {
		if v, ok := p[k]; ok {
			form.Set(k, v)
		}
	}
	return form
}

var (
	resGetUser           = mustResource("get_user", "GET", "/user/", true, nil, nil)
	resGetAccounts       = mustResource("get_accounts", "GET", "/accounts/", true, nil, nil)
	resGetAllInstruments = mustResource("get_all_instruments", "GET", "/instruments/", false, nil, nil)
	resSearchInstruments = mustResource("search_instruments", "GET", "/instruments/?query={query}", false, []string{"query"}, nil)
	resGetMarkets        = mustResource("get_markets", "GET", "/markets/", false, nil, nil)
	resGetMarket         = mustResource("get_market", "GET", "/markets/{mic}/", false, []string{"mic"}, nil)
	resGetMarketHours    = mustResource("get_market_hours", "GET", "/markets/{mic}/hours/{date}/", false, []string{"mic", "date"}, nil)
	resGetQuote          = mustResource("get_quote", "GET", "/quotes/{symbol}/", false, []string{"symbol"}, nil)
	resGetQuotes         = mustResource("get_quotes", "GET", "/quotes/?symbols={symbols}", false, []string{"symbols"}, nil)
	resGetOrder          = mustResource("get_order", "GET", "/orders/{order_id}/", true, []string{"order_id"}, nil)
	resGetOrders         = mustResource("get_orders", "GET", "/orders/", true, nil, nil)
	resCancelOrder       = mustResource("cancel_order", "POST", "/orders/{order_id}/cancel/", true, []string{"order_id"}, nil)
	resPlaceOrder        = mustResource("place_order", "POST", "/orders/", true, nil, []string{
		"account",
		"instrument",
		"symbol",
		"type",
		"time_in_force",
		"trigger",
		"price",
		"stop_price",
		"quantity",
		"side",
		"client_id",
		"extended_hours",
		"override_day_trade_checks",
		"override_dtbp_checks",
	})
)
