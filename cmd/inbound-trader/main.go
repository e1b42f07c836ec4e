package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/stockpick-trader/internal/alerts"
	"github.com/Rajchodisetti/stockpick-trader/internal/broker"
	"github.com/Rajchodisetti/stockpick-trader/internal/config"
	"github.com/Rajchodisetti/stockpick-trader/internal/execution"
	"github.com/Rajchodisetti/stockpick-trader/internal/observ"
	"github.com/Rajchodisetti/stockpick-trader/internal/signals"
	"github.com/Rajchodisetti/stockpick-trader/internal/webhook"
)

var version = "dev"

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config/config.yaml", "path to config YAML")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := observ.Configure(cfg.LogLevel); err != nil {
		log.Fatalf("configure logging: %v", err)
	}
	defer observ.Sync()
	observ.SetVersion(version)

	if cfg.Brokerage.Username == "" || cfg.Brokerage.Password == "" {
		observ.Log("brokerage_credentials_missing", map[string]any{
			"username_env": cfg.Brokerage.UsernameEnv,
			"password_env": cfg.Brokerage.PasswordEnv,
		})
	}
	if cfg.Mailgun.SigningKey == "" {
		observ.Log("webhook_signing_key_missing", map[string]any{
			"env":  cfg.Mailgun.SigningKeyEnv,
			"note": "every inbound request will be rejected",
		})
	}

	observ.Log("notifiers_configured", map[string]any{
		"mailgun": cfg.Mailgun.Enabled,
		"slack":   cfg.Slack.Enabled,
	})
	if cfg.Mailgun.Enabled && (cfg.Mailgun.APIKey == "" || cfg.Mailgun.Domain == "") {
		observ.Log("mailgun_credentials_missing", map[string]any{
			"api_key_env": cfg.Mailgun.APIKeyEnv,
			"domain_env":  cfg.Mailgun.DomainEnv,
		})
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

	registry, err := signals.RegistryFromConfig(cfg.Signals)
	if err != nil {
		log.Fatalf("signal variants: %v", err)
	}

	pipeline := execution.NewPipeline(client, execution.Options{
		PurchaseTarget: decimal.NewFromFloat(cfg.Trading.PurchaseTargetUSD),
		Observer:       alerts.FromConfig(cfg.Mailgun, cfg.Slack),
		HookPolicy:     execution.HookPolicy(cfg.Trading.HookPolicy),
	})

	handler := webhook.New(webhook.Options{
		RoutePrefix:  cfg.Server.RoutePrefix,
		SigningKey:   cfg.Mailgun.SigningKey,
		SkewWindow:   time.Duration(max(cfg.Server.SignatureSkewSecs, 0)) * time.Second,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Registry:     registry,
		Executor:     pipeline,
	})

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     handler,
		ReadTimeout: time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
	}
	go func() {
		observ.Log("server_listening", map[string]any{
			"addr":     srv.Addr,
			"route":    cfg.Server.RoutePrefix + "/place-stock-order/{source}",
			"variants": registry.Names(),
			"version":  version,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			observ.Log("server_failed", map[string]any{"error": err})
			os.Exit(1)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	observ.Log("server_shutting_down", nil)
	shutdownCtx, c := context.WithTimeout(context.Background(), 30*time.Second)
	defer c()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		observ.Log("server_shutdown_error", map[string]any{"error": err})
	}
}
