// Package webhook receives Mailgun inbound-parse posts, extracts trade intents from the
// email HTML and runs them through the execution pipeline.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Rajchodisetti/stockpick-trader/internal/execution"
	"github.com/Rajchodisetti/stockpick-trader/internal/observ"
	"github.com/Rajchodisetti/stockpick-trader/internal/signals"
)

const (
	msgComplete     = "Processing is complete."
	msgUnprocessed  = "Some orders could not be processed."
	msgBadSignature = "Invalid webhook signature."
	msgNotFound     = "The requested resource was not found."
	msgBadRequest   = "The request could not be parsed."
)

// Executor runs a batch of intents.
type Executor interface {
	ExecuteAll(ctx context.Context, intents []signals.TradeIntent) execution.Batch
}

type Options struct {
	RoutePrefix  string // default /inbound-parse
	SigningKey   string
	SkewWindow   time.Duration
	MaxBodyBytes int64 // default 10 MiB
	Registry     *signals.Registry
	Executor     Executor
}

type Handler struct {
	mux      *http.ServeMux
	verifier *Verifier
	registry *signals.Registry
	executor Executor
	maxBody  int64
}

func New(opts Options) *Handler {
	prefix := "/" + strings.Trim(opts.RoutePrefix, "/")
	if prefix == "/" {
		prefix = "/inbound-parse"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	if opts.Registry == nil {
		opts.Registry = signals.NewRegistry()
	}

	h := &Handler{
		mux:      http.NewServeMux(),
		verifier: NewVerifier(opts.SigningKey, opts.SkewWindow),
		registry: opts.Registry,
		executor: opts.Executor,
		maxBody:  opts.MaxBodyBytes,
	}
	h.mux.HandleFunc("POST "+prefix+"/place-stock-order/{source}", h.placeStockOrder)
	h.mux.Handle("GET /health", observ.HealthHandler())
	h.mux.Handle("GET /metrics", observ.Handler())
	h.mux.HandleFunc("/", h.notFound)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) placeStockOrder(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	source := r.PathValue("source")

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := parseForm(r, h.maxBody); err != nil {
		observ.Log("webhook_bad_request", map[string]any{"source": source, "error": err})
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msgBadRequest})
		return
	}

	if !h.verifier.Verify(r.FormValue("timestamp"), r.FormValue("token"), r.FormValue("signature")) {
		observ.Log("webhook_signature_rejected", map[string]any{"source": source, "remote": r.RemoteAddr})
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": msgBadSignature})
		return
	}

	var intents []signals.TradeIntent
	if rules, ok := h.registry.Lookup(source); ok {
		doc, err := signals.ParseHTML(strings.NewReader(r.FormValue("body-html")))
		if err != nil {
			observ.Log("webhook_html_unparsable", map[string]any{"source": source, "error": err})
		} else {
			intents = signals.Extract(doc, rules)
		}
	} else {
		observ.Log("webhook_unknown_source", map[string]any{"source": source})
	}
	for _, in := range intents {
		observ.IncIntentExtracted(source, in.Direction.String())
	}

	observ.Log("webhook_intents_extracted", map[string]any{
		"source":  source,
		"subject": r.FormValue("subject"),
		"intents": len(intents),
	})

	// Orders already in flight must finish even if the sender hangs up.
	batch := h.executor.ExecuteAll(context.WithoutCancel(r.Context()), intents)
	if err := batch.Err(); err != nil {
		for _, res := range batch.Failed() {
			observ.Log("webhook_intent_failed", map[string]any{
				"source": source,
				"intent": res.Intent.String(),
				"reason": execution.FailureReason(res.Err),
				"error":  res.Err,
			})
		}
		writeJSON(w, http.StatusNotAcceptable, map[string]string{"error": msgUnprocessed})
		return
	}

	observ.Log("webhook_processed", map[string]any{
		"source":     source,
		"orders":     len(batch.Results),
		"latency_ms": time.Since(start).Milliseconds(),
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": msgComplete})
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": msgNotFound})
}

// parseForm accepts both multipart and urlencoded posts; Mailgun uses either.
func parseForm(r *http.Request, maxMemory int64) error {
	err := r.ParseMultipartForm(maxMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	observ.IncWebhookRequest(strconv.Itoa(status))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
