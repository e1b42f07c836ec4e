package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Rajchodisetti/stockpick-trader/internal/config"
	"github.com/Rajchodisetti/stockpick-trader/internal/execution"
)

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type SlackAttachment struct {
	Color  string       `json:"color"`
	Fields []SlackField `json:"fields"`
}

type SlackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// Slack limits message text; the payload dump is cut to stay under it.
const maxSlackText = 3900

// SlackNotifier posts order events to an incoming webhook.
type SlackNotifier struct {
	cfg        config.Slack
	httpClient *http.Client
}

func NewSlackNotifier(cfg config.Slack) *SlackNotifier {
	return &SlackNotifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SlackNotifier) Observe(ctx context.Context, event string, payload any) error {
	if !s.cfg.Enabled {
		return nil
	}
	msg, err := s.formatMessage(event, payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook failed with status %d", resp.StatusCode)
	}
	return nil
}

func (s *SlackNotifier) formatMessage(event string, payload any) (SlackMessage, error) {
	dump, err := prettyJSON(payload)
	if err != nil {
		return SlackMessage{}, err
	}
	if len(dump) > maxSlackText {
		dump = dump[:maxSlackText] + "\n..."
	}

	cfg, ok := orderConfigOf(payload)
	if !ok {
		return SlackMessage{
			Channel: s.cfg.Channel,
			Text:    fmt.Sprintf("%s\n```%s```", event, dump),
		}, nil
	}

	emoji, color := "📈", "good"
	if cfg.Side == execution.SideSell {
		emoji, color = "📉", "warning"
	}
	stage := "Submitting"
	if event == execution.EventPostSubmit {
		stage = "Submitted"
	}

	return SlackMessage{
		Channel: s.cfg.Channel,
		Text:    fmt.Sprintf("%s %s %s %s\n```%s```", emoji, stage, cfg.Side, cfg.Symbol, dump),
		Attachments: []SlackAttachment{{
			Color: color,
			Fields: []SlackField{
				{Title: "Symbol", Value: cfg.Symbol, Short: true},
				{Title: "Side", Value: string(cfg.Side), Short: true},
				{Title: "Quantity", Value: fmt.Sprintf("%d", cfg.Quantity), Short: true},
				{Title: "Price", Value: cfg.PriceString(), Short: true},
			},
		}},
	}, nil
}

func orderConfigOf(payload any) (execution.OrderConfig, bool) {
	switch p := payload.(type) {
	case execution.OrderConfig:
		return p, true
	case execution.OrderResult:
		return p.Config, true
	default:
		return execution.OrderConfig{}, false
	}
}
