package stubs

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doForm(t *testing.T, srv *httptest.Server, path, token string, form url.Values) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func doGet(t *testing.T, srv *httptest.Server, path, token string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestTokenEndpoint(t *testing.T) {
	stub := NewBrokerageServer(DefaultFixtures())
	srv := httptest.NewServer(stub)
	defer srv.Close()

	resp, body := doForm(t, srv, "/api-token-auth/", "", url.Values{"username": {"trader"}, "password": {"hunter2"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "stub-token-1", body["token"])

	resp, _ = doForm(t, srv, "/api-token-auth/", "", url.Values{"username": {"trader"}, "password": {"nope"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 2, stub.TokenRequests())
}

func TestAuthenticatedRoutesRequireToken(t *testing.T) {
	srv := httptest.NewServer(NewBrokerageServer(DefaultFixtures()))
	defer srv.Close()

	resp, _ := doGet(t, srv, "/accounts/", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := doGet(t, srv, "/accounts/", "stub-token-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := body["results"].([]any)
	require.Len(t, results, 2)
	active := results[1].(map[string]any)
	assert.Equal(t, srv.URL+"/accounts/5QR24642/positions/", active["positions"])
}

func TestInstrumentSearchIsPrefixMatch(t *testing.T) {
	srv := httptest.NewServer(NewBrokerageServer(DefaultFixtures()))
	defer srv.Close()

	_, body := doGet(t, srv, "/instruments/?query=AAPL", "")
	results := body["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "AAPL", results[0].(map[string]any)["symbol"])
	assert.Equal(t, "AAPLW", results[1].(map[string]any)["symbol"])
}

func TestPlaceOrderValidatesAndRecords(t *testing.T) {
	stub := NewBrokerageServer(DefaultFixtures())
	srv := httptest.NewServer(stub)
	defer srv.Close()

	form := url.Values{
		"account":       {srv.URL + "/accounts/5QR24642/"},
		"instrument":    {srv.URL + "/instruments/450dfc6d-5510-4d40-abfb-f633b7d9be3e/"},
		"symbol":        {"AAPL"},
		"type":          {"market"},
		"time_in_force": {"gfd"},
		"trigger":       {"immediate"},
		"price":         {"101.00"},
		"quantity":      {"5"},
		"side":          {"buy"},
	}
	resp, body := doForm(t, srv, "/orders/", "stub-token-1", form)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "queued", body["state"])
	id := body["id"].(string)
	assert.Equal(t, srv.URL+"/orders/"+id+"/cancel/", body["cancel"])

	orders := stub.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "5", orders[0]["quantity"])

	form.Set("quantity", "0")
	resp, body = doForm(t, srv, "/orders/", "stub-token-1", form)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "quantity")
	assert.Len(t, stub.Orders(), 1)

	resp, _ = doForm(t, srv, "/orders/"+id+"/cancel/", "stub-token-1", url.Values{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", stub.Orders()[0]["state"])
}

func TestFailOrders(t *testing.T) {
	stub := NewBrokerageServer(DefaultFixtures())
	stub.FailOrders(http.StatusServiceUnavailable, `{"detail": "maintenance"`)
	srv := httptest.NewServer(stub)
	defer srv.Close()

	resp, _ := doForm(t, srv, "/orders/", "stub-token-1", url.Values{"symbol": {"AAPL"}})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Empty(t, stub.Orders())
}

func TestMarketHoursClosedOnWeekends(t *testing.T) {
	srv := httptest.NewServer(NewBrokerageServer(DefaultFixtures()))
	defer srv.Close()

	_, body := doGet(t, srv, "/markets/XNAS/hours/2024-06-08/", "")
	assert.Equal(t, false, body["is_open"])

	_, body = doGet(t, srv, "/markets/XNAS/hours/2024-06-10/", "")
	assert.Equal(t, true, body["is_open"])
	assert.Equal(t, "2024-06-10T13:30:00Z", body["opens_at"])
}
