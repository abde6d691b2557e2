// Package integrations contains the clients for third-party services that
// workflow steps call: CRM, marketing, email and chat.
package integrations

import (
	"context"
	"time"
)

// ContactIdentity identifies a person across integrations
type ContactIdentity struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// ConnectionStatus is the outcome of a connection test against a service
type ConnectionStatus struct {
	OK       bool          `json:"ok"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"-"`
}

// CRMClient manages contact records in a CRM
type CRMClient interface {
	// UpsertContact creates or updates a contact keyed by email and returns
	// the provider's record
	UpsertContact(ctx context.Context, contact ContactIdentity, attributes map[string]interface{}) (map[string]interface{}, error)

	// UpdateContactStatus moves a contact to a pipeline status
	UpdateContactStatus(ctx context.Context, email, status string) (map[string]interface{}, error)

	// TestConnection verifies the API key works
	TestConnection(ctx context.Context) ConnectionStatus
}

// MarketingClient manages marketing list subscriptions
type MarketingClient interface {
	// SubscribeContact adds a contact to a list
	SubscribeContact(ctx context.Context, contact ContactIdentity, listID string) (map[string]interface{}, error)

	// TestConnection verifies the API key works
	TestConnection(ctx context.Context) ConnectionStatus
}

// EmailSender sends transactional emails
type EmailSender interface {
	// Send delivers a rendered email to a recipient
	Send(ctx context.Context, to, subject, body string) error

	// TestConnection verifies the mailbox credentials work
	TestConnection(ctx context.Context) ConnectionStatus
}

// ChatNotifier posts notifications to a team chat channel
type ChatNotifier interface {
	// Notify posts a message
	Notify(ctx context.Context, text string) error

	// TestConnection verifies the webhook or token works
	TestConnection(ctx context.Context) ConnectionStatus
}
