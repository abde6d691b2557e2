package integrations

import (
	"context"
	"net/http"
	"time"

	"github.com/robbyautoki/attio-hub/pkg/models"
)

// SlackClient posts notifications to a Slack incoming webhook. The stored
// credential for the chat service is the webhook URL itself.
type SlackClient struct {
	webhookURL string
	client     *http.Client
}

// NewSlackClient creates a Slack chat notifier
func NewSlackClient(webhookURL string) *SlackClient {
	return &SlackClient{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: defaultTimeout},
	}
}

// Notify posts a message to the channel behind the webhook
func (c *SlackClient) Notify(ctx context.Context, text string) error {
	body := map[string]interface{}{
		"text": text,
	}

	_, err := doJSON(ctx, c.client, models.ServiceChat, http.MethodPost, c.webhookURL, nil, body)
	return err
}

// TestConnection posts a visible test message. Slack webhooks have no
// side-effect-free probe endpoint.
func (c *SlackClient) TestConnection(ctx context.Context) ConnectionStatus {
	start := time.Now()
	err := c.Notify(ctx, "attio-hub connection test")
	status := ConnectionStatus{OK: err == nil, Duration: time.Since(start)}
	if err != nil {
		status.Detail = err.Error()
	}
	return status
}
