package integrations

import (
	"errors"
	"fmt"
)

// ErrNotConfigured indicates no credential exists for the service
var ErrNotConfigured = errors.New("integration not configured")

// ProviderError is a non-2xx response from a third-party API. The message is
// kept short and safe for step logs; it never contains the API key.
type ProviderError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API returned status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s API returned status %d: %s", e.Service, e.StatusCode, e.Message)
}

// Transient reports whether the failure is worth retrying
func (e *ProviderError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// TransportError is a network-level failure before any response arrived
type TransportError struct {
	Service string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
