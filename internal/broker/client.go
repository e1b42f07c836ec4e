// Package broker is an authenticated client for a hypermedia brokerage API. Responses
// embed absolute URLs to related resources; those URLs are surfaced as Links that the
// client can follow with the same authentication requirement as the originating call.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Rajchodisetti/stockpick-trader/internal/observ"
)

const tokenPath = "/api-token-auth/"

// Config holds what the client needs to reach and log in to the brokerage.
type Config struct {
	BaseURL           string
	Username          string
	Password          string
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables throttling
	HTTPClient        *http.Client
}

// Client issues brokerage calls and owns the session token for its lifetime.
type Client struct {
	baseURL  string
	base     *url.URL
	username string
	password string
	http     *http.Client
	limiter  *rate.Limiter

	mu    sync.Mutex
	token string
}

// NewClient creates a client. No network call is made until the first request.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		baseURL:  baseURL,
		base:     base,
		username: cfg.Username,
		password: cfg.Password,
		http:     hc,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

// BaseURL returns the API root every Link must live under.
func (c *Client) BaseURL() string { return c.baseURL }

// Call performs the request described by res with params p.
func (c *Client) Call(ctx context.Context, res Resource, p Params) (*Response, error) {
	target, err := res.buildURL(c.baseURL, p)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, res.Name, res.Method, target, res.buildBody(p), res.Auth)
}

// Follow requests a link discovered in an earlier response. method defaults to GET.
func (c *Client) Follow(ctx context.Context, link Link, method string) (*Response, error) {
	if _, ok := c.Link(link.URL, link.RequiresAuth); !ok {
		return nil, fmt.Errorf("link %q is outside %s", link.URL, c.baseURL)
	}
	if method == "" {
		method = http.MethodGet
	}
	return c.send(ctx, "follow", strings.ToUpper(method), link.URL, nil, link.RequiresAuth)
}

// Link returns raw as a Link when it is an absolute URL under the API root.
func (c *Client) Link(raw string, requiresAuth bool) (Link, bool) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return Link{}, false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Link{}, false
	}
	if u.Scheme != c.base.Scheme || u.Host != c.base.Host || !underPath(u.Path, c.base.Path) {
		return Link{}, false
	}
	return Link{URL: raw, RequiresAuth: requiresAuth}, true
}

// underPath reports whether p is root or lies below it on a segment boundary.
func underPath(p, root string) bool {
	root = strings.TrimRight(root, "/")
	return root == "" || p == root || strings.HasPrefix(p, root+"/")
}

func (c *Client) send(ctx context.Context, name, method, target string, form url.Values, auth bool) (*Response, error) {
	token := ""
	if auth {
		t, err := c.sessionToken(ctx)
		if err != nil {
			return nil, err
		}
		token = t
	}

	body, err := c.roundTrip(ctx, name, method, target, form, token)
	if err != nil {
		return nil, err
	}
	return &Response{Body: body, auth: auth, client: c}, nil
}

// sessionToken returns the cached token, logging in on first use. The lock is held
// across the login so concurrent first calls share one acquisition. A failed login
// leaves the cache empty.
func (c *Client) sessionToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	body, err := c.roundTrip(ctx, "api_token_auth", http.MethodPost, c.baseURL+tokenPath, form, "")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: decode token response: %w", ErrAuthenticationFailed, err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%w: empty token in response", ErrAuthenticationFailed)
	}

	c.token = resp.Token
	observ.Log("broker_session_started", map[string]any{"base_url": c.baseURL})
	return c.token, nil
}

func (c *Client) roundTrip(ctx context.Context, name, method, target string, form url.Values, token string) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: rate limit wait: %w", name, err)
		}
	}

	var reader io.Reader
	if form != nil {
		reader = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", name, err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observ.RecordBrokerRequest(name, "transport_error", time.Since(start))
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	observ.RecordBrokerRequest(name, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{
			Status: resp.StatusCode,
			Method: method,
			URL:    target,
			Body:   parseErrorBody(raw),
		}
	}

	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%s %s: response is not valid JSON", method, target)
	}
	return json.RawMessage(raw), nil
}
