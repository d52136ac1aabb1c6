package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// SlackSender sends alerts via a Slack incoming webhook URL.
type SlackSender struct {
	WebhookURL string
	Channel    string
	Client     *http.Client
}

func (s *SlackSender) Name() string { return "slack" }

func (s *SlackSender) Send(ctx context.Context, message string) error {
	if s.WebhookURL == "" {
		return fmt.Errorf("slack sender missing webhook URL")
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	payload := map[string]string{"text": message}
	if s.Channel != "" {
		payload["channel"] = s.Channel
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("slack API returned %d", resp.StatusCode)
	}
	return nil
}
