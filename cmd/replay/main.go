package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/stockpick-trader/internal/broker"
	"github.com/Rajchodisetti/stockpick-trader/internal/config"
	"github.com/Rajchodisetti/stockpick-trader/internal/execution"
	"github.com/Rajchodisetti/stockpick-trader/internal/observ"
	"github.com/Rajchodisetti/stockpick-trader/internal/signals"
)

// replay runs a saved email through the extractor and prints the intents. With
// -execute it also places the orders against the configured brokerage.
func main() {
	log.SetFlags(0)
	var (
		configPath string
		variant    string
		execute    bool
		baseURL    string
	)
	flag.StringVar(&configPath, "config", "config/config.yaml", "path to config YAML")
	flag.StringVar(&variant, "variant", "marketVulture", "extractor variant")
	flag.BoolVar(&execute, "execute", false, "submit orders for the extracted intents")
	flag.StringVar(&baseURL, "base-url", "", "override brokerage base URL (e.g. a cmd/stubs server)")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: replay [flags] email.html")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := observ.Configure(cfg.LogLevel); err != nil {
		log.Fatalf("configure logging: %v", err)
	}
	defer observ.Sync()

	registry, err := signals.RegistryFromConfig(cfg.Signals)
	if err != nil {
		log.Fatalf("signal variants: %v", err)
	}
	rules, ok := registry.Lookup(variant)
	if !ok {
		log.Fatalf("unknown variant %q (have %v)", variant, registry.Names())
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("open email: %v", err)
	}
	defer f.Close()
	doc, err := signals.ParseHTML(f)
	if err != nil {
		log.Fatalf("parse email: %v", err)
	}
	intents := signals.Extract(doc, rules)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if !execute {
		_ = enc.Encode(intents)
		return
	}

	if baseURL != "" {
		cfg.Brokerage.BaseURL = baseURL
	}
	client, err := broker.NewClient(broker.Config{
		BaseURL:           cfg.Brokerage.BaseURL,
		Username:          cfg.Brokerage.Username,
		Password:          cfg.Brokerage.Password,
		Timeout:           time.Duration(cfg.Brokerage.TimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.Brokerage.RequestsPerSecond,
	})
	if err != nil {
		log.Fatalf("brokerage client: %v", err)
	}
	pipeline := execution.NewPipeline(client, execution.Options{
		PurchaseTarget: decimal.NewFromFloat(cfg.Trading.PurchaseTargetUSD),
		HookPolicy:     execution.HookPolicy(cfg.Trading.HookPolicy),
	})

	batch := pipeline.ExecuteAll(context.Background(), intents)
	type line struct {
		Intent string                 `json:"intent"`
		Order  *execution.OrderResult `json:"order,omitempty"`
		Error  string                 `json:"error,omitempty"`
	}
	out := make([]line, 0, len(batch.Results))
	for _, r := range batch.Results {
		l := line{Intent: r.Intent.String()}
		if r.Err != nil {
			l.Error = r.Err.Error()
		} else {
			order := r.Order
			l.Order = &order
		}
		out = append(out, l)
	}
	_ = enc.Encode(out)

	if err := batch.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "some orders could not be processed")
		os.Exit(1)
	}
}
