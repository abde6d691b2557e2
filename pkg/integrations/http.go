package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// doJSON executes a JSON request and decodes a JSON object response. Non-2xx
// statuses become a ProviderError carrying a short message extracted from the
// response body.
func doJSON(ctx context.Context, client *http.Client, service, method, url string, headers map[string]string, body interface{}) (map[string]interface{}, error) {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{Service: service, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TransportError{Service: service, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{
			Service:    service,
			StatusCode: resp.StatusCode,
			Message:    extractErrorMessage(raw),
		}
	}

	if len(raw) == 0 {
		return map[string]interface{}{}, nil
	}

	var result map[string]interface{}
	if err := json.Unmarshal(raw, &result); err != nil {
		// Some providers answer 2xx with a non-object body
		return map[string]interface{}{"raw": string(raw)}, nil
	}

	return result, nil
}

// extractErrorMessage pulls a human-readable message out of an error body
// without echoing the whole payload into logs
func extractErrorMessage(raw []byte) string {
	var parsed map[string]interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ""
	}

	for _, key := range []string{"message", "error", "detail"} {
		if msg, ok := parsed[key].(string); ok && msg != "" {
			if len(msg) > 200 {
				msg = msg[:200]
			}
			return msg
		}
	}

	return ""
}

// testEndpoint measures a GET against a provider's identity endpoint
func testEndpoint(ctx context.Context, client *http.Client, service, url string, headers map[string]string) ConnectionStatus {
	start := time.Now()
	_, err := doJSON(ctx, client, service, http.MethodGet, url, headers, nil)
	status := ConnectionStatus{OK: err == nil, Duration: time.Since(start)}
	if err != nil {
		status.Detail = err.Error()
	}
	return status
}
