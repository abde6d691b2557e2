package integrations

import (
	"context"
	"fmt"
	"net/http"

	"github.com/robbyautoki/attio-hub/pkg/models"
)

// DefaultBrevoBaseURL is the production Brevo API endpoint
const DefaultBrevoBaseURL = "https://api.brevo.com/v3"

// BrevoClient is a marketing client for the Brevo (Sendinblue) API
type BrevoClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewBrevoClient creates a Brevo marketing client. An empty baseURL selects
// the production endpoint.
func NewBrevoClient(apiKey, baseURL string) *BrevoClient {
	if baseURL == "" {
		baseURL = DefaultBrevoBaseURL
	}
	return &BrevoClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

func (c *BrevoClient) headers() map[string]string {
	return map[string]string{
		"api-key": c.apiKey,
	}
}

// SubscribeContact adds a contact to a marketing list. Brevo treats a repeat
// subscription of the same email as an update, so the call is idempotent.
func (c *BrevoClient) SubscribeContact(ctx context.Context, contact ContactIdentity, listID string) (map[string]interface{}, error) {
	attributes := map[string]interface{}{}
	if contact.Name != "" {
		attributes["FIRSTNAME"] = contact.Name
	}
	if contact.Phone != "" {
		attributes["SMS"] = contact.Phone
	}

	body := map[string]interface{}{
		"email":         contact.Email,
		"attributes":    attributes,
		"updateEnabled": true,
	}
	if listID != "" {
		body["listIds"] = []string{listID}
	}

	url := fmt.Sprintf("%s/contacts", c.baseURL)

	return doJSON(ctx, c.client, models.ServiceMarketing, http.MethodPost, url, c.headers(), body)
}

// TestConnection verifies the API key against the account endpoint
func (c *BrevoClient) TestConnection(ctx context.Context) ConnectionStatus {
	return testEndpoint(ctx, c.client, models.ServiceMarketing, c.baseURL+"/account", c.headers())
}
