// Package provider contains notification delivery channels.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	notifydomain "github.com/duesflow/duesflow/internal/notify/domain"
)

// SlackProvider posts messages to an incoming-webhook URL. The member address
// is ignored; slack delivery targets an operations channel, not the member.
type SlackProvider struct {
	webhookURL string
	client     *http.Client
}

func NewSlackProvider(webhookURL string) *SlackProvider {
	return &SlackProvider{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *SlackProvider) Name() string { return "slack" }

func (p *SlackProvider) Send(ctx context.Context, address string, msg notifydomain.Message) error {
	if p.webhookURL == "" {
		return fmt.Errorf("missing_webhook_url")
	}

	payload := map[string]any{
		"text": fmt.Sprintf("*%s*\n%s\nmember: %s (%s)", msg.Subject, msg.Body, msg.MemberID.String(), address),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("slack_api_error: status=%d", resp.StatusCode)
	}
	return nil
}
