package observ

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	intentsExtracted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_intents_extracted_total",
			Help: "Trade intents extracted from inbound emails",
		},
		[]string{"variant", "side"},
	)

	ordersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_orders_submitted_total",
			Help: "Market orders accepted by the brokerage",
		},
		[]string{"side"},
	)

	pipelineFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_pipeline_failures_total",
			Help: "Order pipeline runs that ended in failure, by reason",
		},
		[]string{"reason"},
	)

	hookErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_hook_errors_total",
			Help: "Order observer errors, by event",
		},
		[]string{"event"},
	)

	webhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_webhook_requests_total",
			Help: "Inbound webhook requests by response code",
		},
		[]string{"code"},
	)

	brokerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_broker_requests_total",
			Help: "Brokerage API requests by resource and status code",
		},
		[]string{"resource", "code"},
	)

	brokerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trader_broker_request_ms",
			Help:    "Brokerage API request latency in milliseconds",
			Buckets: []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"resource"},
	)
)

func init() {
	prometheus.MustRegister(intentsExtracted, ordersSubmitted, pipelineFailures, hookErrors)
	prometheus.MustRegister(webhookRequests, brokerRequests, brokerLatency)
}

func IncIntentExtracted(variant, side string) {
	intentsExtracted.WithLabelValues(variant, side).Inc()
}

func IncOrderSubmitted(side string) {
	ordersSubmitted.WithLabelValues(side).Inc()
}

func IncPipelineFailure(reason string) {
	pipelineFailures.WithLabelValues(reason).Inc()
}

func IncHookError(event string) {
	hookErrors.WithLabelValues(event).Inc()
}

func IncWebhookRequest(code string) {
	webhookRequests.WithLabelValues(code).Inc()
}

// RecordBrokerRequest counts one brokerage call and records its latency.
func RecordBrokerRequest(resource, code string, d time.Duration) {
	brokerRequests.WithLabelValues(resource, code).Inc()
	brokerLatency.WithLabelValues(resource).Observe(float64(d.Milliseconds()))
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

var (
	startTime = time.Now()
	version   = "dev" // Set via build flags
)

// SetVersion sets the version string for health reports
func SetVersion(v string) {
	version = v
}

// HealthStatus is the body served by HealthHandler.
type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
	Version   string `json:"version"`
}

// HealthHandler reports liveness with uptime and build version.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := HealthStatus{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			Version:   version,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(health)
	})
}
