package stubs

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BrokerageServer is an in-memory hypermedia brokerage API. Every URL it returns is
// absolute and built from the request's Host, so it works behind httptest.
type BrokerageServer struct {
	mux *http.ServeMux

	mu            sync.Mutex
	fx            Fixtures
	orders        []map[string]any
	tokenRequests int
	orderFailure  *failure
}

type failure struct {
	status int
	body   string
}

// NewBrokerageServer serves fx.
func NewBrokerageServer(fx Fixtures) *BrokerageServer {
	s := &BrokerageServer{fx: fx, mux: http.NewServeMux()}

	s.mux.HandleFunc("POST /api-token-auth/", s.handleToken)
	s.mux.HandleFunc("GET /user/", s.authed(s.handleUser))
	s.mux.HandleFunc("GET /accounts/", s.authed(s.handleAccounts))
	s.mux.HandleFunc("GET /accounts/{number}/positions/", s.authed(s.handlePositions))
	s.mux.HandleFunc("GET /instruments/", s.handleInstruments)
	s.mux.HandleFunc("GET /instruments/{id}/", s.handleInstrument)
	s.mux.HandleFunc("GET /quotes/", s.handleQuotes)
	s.mux.HandleFunc("GET /quotes/{symbol}/", s.handleQuote)
	s.mux.HandleFunc("GET /markets/", s.handleMarkets)
	s.mux.HandleFunc("GET /markets/{mic}/", s.handleMarket)
	s.mux.HandleFunc("GET /markets/{mic}/hours/{date}/", s.handleMarketHours)
	s.mux.HandleFunc("GET /orders/", s.authed(s.handleOrders))
	s.mux.HandleFunc("POST /orders/", s.authed(s.handlePlaceOrder))
	s.mux.HandleFunc("GET /orders/{id}/", s.authed(s.handleOrder))
	s.mux.HandleFunc("POST /orders/{id}/cancel/", s.authed(s.handleCancel))
	return s
}

func (s *BrokerageServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Orders returns the orders accepted so far, oldest first.
func (s *BrokerageServer) Orders() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.orders))
	copy(out, s.orders)
	return out
}

// TokenRequests counts calls to the token endpoint.
func (s *BrokerageServer) TokenRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenRequests
}

// FailOrders makes order placement answer with status and a raw body. status 0 clears it.
func (s *BrokerageServer) FailOrders(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		s.orderFailure = nil
		return
	}
	s.orderFailure = &failure{status: status, body: body}
}

// SetQuote replaces or adds a quote.
func (s *BrokerageServer) SetQuote(q QuoteFixture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.fx.Quotes {
		if s.fx.Quotes[i].Symbol == q.Symbol {
			s.fx.Quotes[i] = q
			return
		}
	}
	s.fx.Quotes = append(s.fx.Quotes, q)
}

func base(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func results(items []map[string]any) map[string]any {
	if items == nil {
		items = []map[string]any{}
	}
	return map[string]any{"previous": nil, "next": nil, "results": items}
}

func (s *BrokerageServer) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		want := "Token " + s.fx.Token
		s.mu.Unlock()
		if r.Header.Get("Authorization") != want {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
			return
		}
		next(w, r)
	}
}

func (s *BrokerageServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenRequests++
	if r.PostForm.Get("username") != s.fx.Username || r.PostForm.Get("password") != s.fx.Password {
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"non_field_errors": {"Unable to log in with provided credentials."},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": s.fx.Token})
}

func (s *BrokerageServer) handleUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"url":      base(r) + "/user/",
		"id":       "2f2b4a3c-user",
		"username": s.fx.Username,
		"email":    s.fx.Username + "@example.com",
	})
}

func (s *BrokerageServer) accountJSON(r *http.Request, a AccountFixture) map[string]any {
	root := base(r) + "/accounts/" + a.Number + "/"
	return map[string]any{
		"url":            root,
		"account_number": a.Number,
		"type":           "cash",
		"deactivated":    a.Deactivated,
		"buying_power":   a.BuyingPower,
		"cash":           a.Cash,
		"positions":      root + "positions/",
		"user":           base(r) + "/user/",
	}
}

func (s *BrokerageServer) handleAccounts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []map[string]any
	for _, a := range s.fx.Accounts {
		items = append(items, s.accountJSON(r, a))
	}
	writeJSON(w, http.StatusOK, results(items))
}

func (s *BrokerageServer) instrumentBySymbol(symbol string) (InstrumentFixture, bool) {
	for _, in := range s.fx.Instruments {
		if in.Symbol == symbol {
			return in, true
		}
	}
	return InstrumentFixture{}, false
}

func (s *BrokerageServer) instrumentJSON(r *http.Request, in InstrumentFixture) map[string]any {
	return map[string]any{
		"url":       base(r) + "/instruments/" + in.ID + "/",
		"id":        in.ID,
		"symbol":    in.Symbol,
		"name":      in.Name,
		"quote":     base(r) + "/quotes/" + in.Symbol + "/",
		"market":    base(r) + "/markets/" + in.MIC + "/",
		"state":     "active",
		"tradeable": true,
	}
}

func (s *BrokerageServer) handlePositions(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []map[string]any
	for _, p := range s.fx.Positions {
		if p.Account != number {
			continue
		}
		in, ok := s.instrumentBySymbol(p.Symbol)
		if !ok {
			continue
		}
		items = append(items, map[string]any{
			"url":               base(r) + "/accounts/" + number + "/positions/" + in.ID + "/",
			"account":           base(r) + "/accounts/" + number + "/",
			"instrument":        base(r) + "/instruments/" + in.ID + "/",
			"quantity":          p.Quantity,
			"average_buy_price": "0.0000",
		})
	}
	writeJSON(w, http.StatusOK, results(items))
}

// handleInstruments does a prefix search, so callers must filter for exact matches.
func (s *BrokerageServer) handleInstruments(w http.ResponseWriter, r *http.Request) {
	query := strings.ToUpper(r.URL.Query().Get("query"))
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []map[string]any
	for _, in := range s.fx.Instruments {
		if query == "" || strings.HasPrefix(in.Symbol, query) {
			items = append(items, s.instrumentJSON(r, in))
		}
	}
	writeJSON(w, http.StatusOK, results(items))
}

func (s *BrokerageServer) handleInstrument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range s.fx.Instruments {
		if in.ID == id {
			writeJSON(w, http.StatusOK, s.instrumentJSON(r, in))
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
}

func (s *BrokerageServer) quoteJSON(r *http.Request, q QuoteFixture) map[string]any {
	out := map[string]any{
		"symbol":           q.Symbol,
		"ask_price":        q.Ask,
		"ask_size":         100,
		"bid_price":        q.Bid,
		"bid_size":         100,
		"last_trade_price": q.Last,
		"trading_halted":   false,
		"updated_at":       time.Now().UTC().Format(time.RFC3339),
	}
	if in, ok := s.instrumentBySymbol(q.Symbol); ok {
		out["instrument"] = base(r) + "/instruments/" + in.ID + "/"
	}
	return out
}

func (s *BrokerageServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.fx.Quotes {
		if q.Symbol == symbol {
			writeJSON(w, http.StatusOK, s.quoteJSON(r, q))
			return
		}
	}
	writeJSON(w, http.StatusBadRequest, map[string][]string{"symbol": {"Invalid symbol."}})
}

func (s *BrokerageServer) handleQuotes(w http.ResponseWriter, r *http.Request) {
	symbols := strings.Split(r.URL.Query().Get("symbols"), ",")
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []map[string]any
	for _, sym := range symbols {
		for _, q := range s.fx.Quotes {
			if q.Symbol == sym {
				items = append(items, s.quoteJSON(r, q))
			}
		}
	}
	writeJSON(w, http.StatusOK, results(items))
}

func (s *BrokerageServer) marketJSON(r *http.Request, m MarketFixture) map[string]any {
	root := base(r) + "/markets/" + m.MIC + "/"
	return map[string]any{
		"url":          root,
		"mic":          m.MIC,
		"acronym":      m.Acronym,
		"name":         m.Name,
		"timezone":     m.Timezone,
		"todays_hours": root + "hours/" + time.Now().UTC().Format("2006-01-02") + "/",
	}
}

func (s *BrokerageServer) handleMarkets(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []map[string]any
	for _, m := range s.fx.Markets {
		items = append(items, s.marketJSON(r, m))
	}
	writeJSON(w, http.StatusOK, results(items))
}

func (s *BrokerageServer) handleMarket(w http.ResponseWriter, r *http.Request) {
	mic := r.PathValue("mic")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.fx.Markets {
		if m.MIC == mic {
			writeJSON(w, http.StatusOK, s.marketJSON(r, m))
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
}

func (s *BrokerageServer) handleMarketHours(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid date."})
		return
	}
	open := day.Weekday() != time.Saturday && day.Weekday() != time.Sunday
	hours := map[string]any{"date": date, "is_open": open}
	if open {
		hours["opens_at"] = date + "T13:30:00Z"
		hours["closes_at"] = date + "T20:00:00Z"
		hours["extended_opens_at"] = date + "T13:00:00Z"
		hours["extended_closes_at"] = date + "T22:00:00Z"
	}
	writeJSON(w, http.StatusOK, hours)
}

func (s *BrokerageServer) handleOrders(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, results(s.orders))
}

func (s *BrokerageServer) findOrder(id string) map[string]any {
	for _, o := range s.orders {
		if o["id"] == id {
			return o
		}
	}
	return nil
}

func (s *BrokerageServer) handleOrder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o := s.findOrder(r.PathValue("id")); o != nil {
		writeJSON(w, http.StatusOK, o)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
}

func (s *BrokerageServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.findOrder(r.PathValue("id"))
	if o == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	o["state"] = "cancelled"
	o["cancel"] = nil
	writeJSON(w, http.StatusOK, map[string]any{})
}

var requiredOrderFields = []string{"account", "instrument", "symbol", "type", "time_in_force", "trigger", "quantity", "side"}

func (s *BrokerageServer) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if f := s.orderFailure; f != nil {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.body))
		return
	}

	if errs := validateOrder(r.PostForm); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	id := uuid.NewString()
	root := base(r) + "/orders/" + id + "/"
	order := map[string]any{
		"id":         id,
		"url":        root,
		"cancel":     root + "cancel/",
		"state":      "queued",
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range r.PostForm {
		if len(v) > 0 && v[0] != "" {
			order[k] = v[0]
		}
	}
	s.orders = append(s.orders, order)
	writeJSON(w, http.StatusCreated, order)
}

func validateOrder(form url.Values) map[string][]string {
	errs := map[string][]string{}
	for _, k := range requiredOrderFields {
		if form.Get(k) == "" {
			errs[k] = []string{"This field is required."}
		}
	}
	if q := form.Get("quantity"); q != "" {
		d, err := decimal.NewFromString(q)
		if err != nil || !d.IsPositive() {
			errs["quantity"] = []string{"Ensure this value is greater than 0."}
		}
	}
	if side := form.Get("side"); side != "" && side != "buy" && side != "sell" {
		errs["side"] = []string{`"` + side + `" is not a valid choice.`}
	}
	return errs
}
