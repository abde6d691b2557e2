package integrations

import (
	"context"
	"fmt"
	"net/http"

	"github.com/robbyautoki/attio-hub/pkg/models"
)

// DefaultAttioBaseURL is the production Attio API endpoint
const DefaultAttioBaseURL = "https://api.attio.com/v2"

// AttioClient is a CRM client for the Attio API
type AttioClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewAttioClient creates an Attio CRM client. An empty baseURL selects the
// production endpoint.
func NewAttioClient(apiKey, baseURL string) *AttioClient {
	if baseURL == "" {
		baseURL = DefaultAttioBaseURL
	}
	return &AttioClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

func (c *AttioClient) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}
}

// UpsertContact creates or updates a person record keyed by email
func (c *AttioClient) UpsertContact(ctx context.Context, contact ContactIdentity, attributes map[string]interface{}) (map[string]interface{}, error) {
	values := map[string]interface{}{
		"email_addresses": []string{contact.Email},
	}
	if contact.Name != "" {
		values["name"] = contact.Name
	}
	if contact.Phone != "" {
		values["phone_numbers"] = []string{contact.Phone}
	}
	for key, value := range attributes {
		values[key] = value
	}

	url := fmt.Sprintf("%s/objects/people/records?matching_attribute=email_addresses", c.baseURL)
	body := map[string]interface{}{
		"data": map[string]interface{}{
			"values": values,
		},
	}

	return doJSON(ctx, c.client, models.ServiceCRM, http.MethodPut, url, c.headers(), body)
}

// UpdateContactStatus moves a contact to a pipeline status, matched by email
func (c *AttioClient) UpdateContactStatus(ctx context.Context, email, status string) (map[string]interface{}, error) {
	url := fmt.Sprintf("%s/objects/people/records?matching_attribute=email_addresses", c.baseURL)
	body := map[string]interface{}{
		"data": map[string]interface{}{
			"values": map[string]interface{}{
				"email_addresses": []string{email},
				"stage":           status,
			},
		},
	}

	return doJSON(ctx, c.client, models.ServiceCRM, http.MethodPut, url, c.headers(), body)
}

// TestConnection verifies the API key against the identity endpoint
func (c *AttioClient) TestConnection(ctx context.Context) ConnectionStatus {
	return testEndpoint(ctx, c.client, models.ServiceCRM, c.baseURL+"/self", c.headers())
}
