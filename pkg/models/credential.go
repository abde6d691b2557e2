package models

import "time"

// Service identifiers for stored credentials
const (
	ServiceCRM       = "crm"
	ServiceMarketing = "marketing"
	ServiceEmail     = "email"
	ServiceChat      = "chat"
)

// Credential represents an encrypted third-party API key scoped to an owner
// and a service. The decrypted value is never persisted or logged.
type Credential struct {
	// ID of the credential
	ID string `json:"id"`

	// OwnerID is the ID of the account that owns the credential
	OwnerID string `json:"-"`

	// Service identifies the third-party service ("crm", "marketing", ...)
	Service string `json:"service"`

	// Ciphertext is the hex-encoded AES-GCM ciphertext (tag appended)
	Ciphertext string `json:"-"`

	// IV is the hex-encoded initialization vector used for this ciphertext
	IV string `json:"-"`

	// KeyHint is a non-secret masked tail of the key for display
	KeyHint string `json:"key_hint"`

	// Valid reflects the result of the last connection test
	Valid bool `json:"valid"`

	// LastTestedAt is when the credential was last connection-tested
	LastTestedAt *time.Time `json:"last_tested_at,omitempty"`

	// CreatedAt is when the credential was registered
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the credential was last updated
	UpdatedAt time.Time `json:"updated_at"`
}
