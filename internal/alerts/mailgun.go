package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/pretty"

	"github.com/Rajchodisetti/stockpick-trader/internal/config"
)

// MailgunNotifier emails every order event through the Mailgun messages API. The
// body is the event payload as indented JSON.
type MailgunNotifier struct {
	cfg        config.Mailgun
	httpClient *http.Client
}

func NewMailgunNotifier(cfg config.Mailgun) *MailgunNotifier {
	return &MailgunNotifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (m *MailgunNotifier) Observe(ctx context.Context, event string, payload any) error {
	if !m.cfg.Enabled {
		return nil
	}
	text, err := prettyJSON(payload)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("from", m.cfg.From)
	form.Set("to", m.cfg.To)
	form.Set("subject", m.cfg.Subject)
	form.Set("text", text)
	form.Set("o:tag", event)

	endpoint := strings.TrimRight(m.cfg.APIBase, "/") + "/v3/" + url.PathEscape(m.cfg.Domain) + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("mailgun request: %w", err)
	}
	req.SetBasicAuth("api", m.cfg.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mailgun send failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}

func prettyJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return strings.TrimRight(string(pretty.Pretty(b)), "\n"), nil
}
