package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Server struct {
	Port              int    `yaml:"port"`
	RoutePrefix       string `yaml:"route_prefix"`
	ReadTimeoutSecs   int    `yaml:"read_timeout_seconds"`
	MaxBodyBytes      int64  `yaml:"max_body_bytes"`
	SignatureSkewSecs int    `yaml:"signature_skew_seconds"` // negative disables the skew check
}

type Brokerage struct {
	BaseURL           string  `yaml:"base_url"`
	UsernameEnv       string  `yaml:"username_env"`
	PasswordEnv       string  `yaml:"password_env"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unthrottled

	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

type Trading struct {
	PurchaseTargetUSD float64 `yaml:"purchase_target_usd"`
	HookPolicy        string  `yaml:"hook_policy"` // ignore | fail
}

type Mailgun struct {
	// Unset means enabled whenever the API key and domain are both present.
	EnabledSetting *bool  `yaml:"enabled"`
	APIBase        string `yaml:"api_base"`
	APIKeyEnv      string `yaml:"api_key_env"`
	DomainEnv      string `yaml:"domain_env"`
	SigningKeyEnv  string `yaml:"signing_key_env"`
	From           string `yaml:"from"`
	To             string `yaml:"to"`
	Subject        string `yaml:"subject"`

	Enabled    bool   `yaml:"-"`
	APIKey     string `yaml:"-"`
	Domain     string `yaml:"-"`
	SigningKey string `yaml:"-"`
}

type Slack struct {
	Enabled       bool   `yaml:"enabled"`
	WebhookURLEnv string `yaml:"webhook_url_env"`
	Channel       string `yaml:"channel"`

	WebhookURL string `yaml:"-"`
}

// Rule is one phrase rule of a configured extractor variant.
type Rule struct {
	Trigger   string `yaml:"trigger"`
	Direction string `yaml:"direction"` // buy | sell
	Symbol    string `yaml:"symbol"`    // after | before
}

type Signals struct {
	Variants map[string][]Rule `yaml:"variants"`
}

type Root struct {
	LogLevel  string    `yaml:"log_level"`
	Server    Server    `yaml:"server"`
	Brokerage Brokerage `yaml:"brokerage"`
	Trading   Trading   `yaml:"trading"`
	Mailgun   Mailgun   `yaml:"mailgun"`
	Slack     Slack     `yaml:"slack"`
	Signals   Signals   `yaml:"signals"`
}

// Load reads the YAML file at path (a missing file is fine), loads .env if present,
// applies environment overrides and fills defaults.
func Load(path string) (Root, error) {
	var c Root
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return c, err
		default:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return c, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	applyDefaults(&c)
	if err := applyEnv(&c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func applyDefaults(c *Root) {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.RoutePrefix == "" {
		c.Server.RoutePrefix = "/inbound-parse"
	}
	if c.Server.ReadTimeoutSecs == 0 {
		c.Server.ReadTimeoutSecs = 30
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 10 << 20
	}
	if c.Server.SignatureSkewSecs == 0 {
		c.Server.SignatureSkewSecs = 300
	}

	if c.Brokerage.BaseURL == "" {
		c.Brokerage.BaseURL = "https://api.robinhood.com"
	}
	c.Brokerage.BaseURL = strings.TrimRight(c.Brokerage.BaseURL, "/")
	if c.Brokerage.UsernameEnv == "" {
		c.Brokerage.UsernameEnv = "RH_USER"
	}
	if c.Brokerage.PasswordEnv == "" {
		c.Brokerage.PasswordEnv = "RH_PASSWORD"
	}
	if c.Brokerage.TimeoutSeconds == 0 {
		c.Brokerage.TimeoutSeconds = 15
	}

	if c.Trading.HookPolicy == "" {
		c.Trading.HookPolicy = "ignore"
	}

	if c.Mailgun.APIBase == "" {
		c.Mailgun.APIBase = "https://api.mailgun.net"
	}
	if c.Mailgun.APIKeyEnv == "" {
		c.Mailgun.APIKeyEnv = "MAILGUN_API_KEY"
	}
	if c.Mailgun.DomainEnv == "" {
		c.Mailgun.DomainEnv = "MAILGUN_DOMAIN"
	}
	if c.Mailgun.SigningKeyEnv == "" {
		c.Mailgun.SigningKeyEnv = "MAILGUN_SIGNING_KEY"
	}

	if c.Slack.WebhookURLEnv == "" {
		c.Slack.WebhookURLEnv = "SLACK_WEBHOOK_URL"
	}
}

func applyEnv(c *Root) error {
	c.Brokerage.Username = os.Getenv(c.Brokerage.UsernameEnv)
	c.Brokerage.Password = os.Getenv(c.Brokerage.PasswordEnv)

	c.Mailgun.APIKey = os.Getenv(c.Mailgun.APIKeyEnv)
	c.Mailgun.Domain = os.Getenv(c.Mailgun.DomainEnv)
	c.Mailgun.SigningKey = os.Getenv(c.Mailgun.SigningKeyEnv)
	if c.Mailgun.SigningKey == "" {
		// Older Mailgun accounts sign webhooks with the API key.
		c.Mailgun.SigningKey = c.Mailgun.APIKey
	}
	if v := os.Getenv("MAILGUN_EMAIL_FROM"); v != "" {
		c.Mailgun.From = v
	}
	if v := os.Getenv("MAILGUN_EMAIL_TO"); v != "" {
		c.Mailgun.To = v
	}
	if v := os.Getenv("MAILGUN_EMAIL_SUBJECT"); v != "" {
		c.Mailgun.Subject = v
	}
	if c.Mailgun.EnabledSetting != nil {
		c.Mailgun.Enabled = *c.Mailgun.EnabledSetting
	} else {
		c.Mailgun.Enabled = c.Mailgun.APIKey != "" && c.Mailgun.Domain != ""
	}

	c.Slack.WebhookURL = os.Getenv(c.Slack.WebhookURLEnv)

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("RH_PURCHASE_TARGET"); v != "" {
		target, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RH_PURCHASE_TARGET: %w", err)
		}
		c.Trading.PurchaseTargetUSD = target
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks values that cannot be defaulted.
func (c Root) Validate() error {
	if c.Trading.PurchaseTargetUSD < 0 {
		return fmt.Errorf("trading.purchase_target_usd must not be negative")
	}
	switch c.Trading.HookPolicy {
	case "ignore", "fail":
	default:
		return fmt.Errorf("trading.hook_policy must be ignore or fail, got %q", c.Trading.HookPolicy)
	}
	if c.Brokerage.RequestsPerSecond < 0 {
		return fmt.Errorf("brokerage.requests_per_second must not be negative")
	}
	for name, rules := range c.Signals.Variants {
		for i, r := range rules {
			if strings.TrimSpace(r.Trigger) == "" {
				return fmt.Errorf("signals.variants.%s[%d]: empty trigger", name, i)
			}
		}
	}
	return nil
}
