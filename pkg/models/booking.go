package models

import "time"

// Booking statuses
const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
	BookingStatusCompleted = "completed"
	BookingStatusNoShow    = "no_show"
)

// ReminderKind identifies one of the fixed reminder lead times. At most one
// email may ever be sent per booking per kind.
type ReminderKind string

const (
	// ReminderConfirmation is the booking confirmation sent right after creation
	ReminderConfirmation ReminderKind = "confirmation"

	// Reminder24h is the 24-hour lead-time reminder
	Reminder24h ReminderKind = "reminder_24h"

	// Reminder1h is the 1-hour lead-time reminder
	Reminder1h ReminderKind = "reminder_1h"
)

// LeadTime returns the lead time before the booking start for the kind.
// The confirmation has no lead time.
func (k ReminderKind) LeadTime() time.Duration {
	switch k {
	case Reminder24h:
		return 24 * time.Hour
	case Reminder1h:
		return time.Hour
	}
	return 0
}

// Booking represents a scheduled meeting captured by a scheduling workflow
type Booking struct {
	// ID of the booking
	ID string `json:"id"`

	// OwnerID is the ID of the account that owns the booking
	OwnerID string `json:"owner_id"`

	// WorkflowID is the workflow whose run stored the booking
	WorkflowID string `json:"workflow_id,omitempty"`

	// ContactEmail is the invitee email address
	ContactEmail string `json:"contact_email"`

	// ContactName is the invitee display name
	ContactName string `json:"contact_name,omitempty"`

	// ContactPhone is the invitee phone number
	ContactPhone string `json:"contact_phone,omitempty"`

	// StartTime is when the meeting starts
	StartTime time.Time `json:"start_time"`

	// EndTime is when the meeting ends
	EndTime time.Time `json:"end_time,omitempty"`

	// MeetingLink is the video-call URL
	MeetingLink string `json:"meeting_link,omitempty"`

	// EventType is the scheduling-provider event type name
	EventType string `json:"event_type,omitempty"`

	// Status of the booking
	Status string `json:"status"`

	// ConfirmationSentAt is when the confirmation email was sent; once set
	// it is never cleared or overwritten
	ConfirmationSentAt *time.Time `json:"confirmation_sent_at,omitempty"`

	// Reminder24hSentAt is when the 24h reminder was sent
	Reminder24hSentAt *time.Time `json:"reminder_24h_sent_at,omitempty"`

	// Reminder1hSentAt is when the 1h reminder was sent
	Reminder1hSentAt *time.Time `json:"reminder_1h_sent_at,omitempty"`

	// CreatedAt is when the booking was stored
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the booking was last updated
	UpdatedAt time.Time `json:"updated_at"`
}

// ReminderSentAt returns the sent timestamp for the given reminder kind
func (b Booking) ReminderSentAt(kind ReminderKind) *time.Time {
	switch kind {
	case ReminderConfirmation:
		return b.ConfirmationSentAt
	case Reminder24h:
		return b.Reminder24hSentAt
	case Reminder1h:
		return b.Reminder1hSentAt
	}
	return nil
}
