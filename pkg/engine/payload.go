package engine

import (
	"fmt"
	"time"

	"github.com/robbyautoki/attio-hub/pkg/integrations"
	"github.com/robbyautoki/attio-hub/pkg/models"
)

// NormalizedEvent is the provider-independent view of an inbound webhook
// payload that the steps operate on
type NormalizedEvent struct {
	Provider string
	Event    string

	Contact integrations.ContactIdentity

	// Booking is set for scheduling events
	Booking *BookingDetails

	// Status is set for CRM pipeline events
	Status string

	// Message carries free text from lead-capture forms
	Message string
}

// BookingDetails are the scheduling fields extracted from a provider payload
type BookingDetails struct {
	StartTime   time.Time
	EndTime     time.Time
	MeetingLink string
	EventType   string
	Cancelled   bool
}

// ParsePayload normalizes a raw webhook payload for a provider. Only a
// malformed payload (unknown provider, missing container object) is a parse
// failure; individually absent fields such as the contact email leave the
// normalized record incomplete, and the steps needing those fields skip.
func ParsePayload(provider string, raw map[string]interface{}) (NormalizedEvent, error) {
	switch provider {
	case "calendly":
		return parseCalendly(raw)
	case "attio":
		return parseAttio(raw)
	case "webform":
		return parseWebform(raw)
	default:
		return NormalizedEvent{}, fmt.Errorf("unknown payload provider: %s", provider)
	}
}

func parseCalendly(raw map[string]interface{}) (NormalizedEvent, error) {
	event := stringField(raw, "event")
	payload, _ := raw["payload"].(map[string]interface{})
	if payload == nil {
		return NormalizedEvent{}, fmt.Errorf("calendly payload is missing the payload object")
	}

	normalized := NormalizedEvent{
		Provider: "calendly",
		Event:    event,
		Contact: integrations.ContactIdentity{
			Email: stringField(payload, "email"),
			Name:  stringField(payload, "name"),
			Phone: stringField(payload, "text_reminder_number"),
		},
	}

	details := &BookingDetails{
		Cancelled: event == "invitee.canceled",
	}
	if scheduled, ok := payload["scheduled_event"].(map[string]interface{}); ok {
		details.EventType = stringField(scheduled, "name")
		details.StartTime = timeField(scheduled, "start_time")
		details.EndTime = timeField(scheduled, "end_time")
		if location, ok := scheduled["location"].(map[string]interface{}); ok {
			details.MeetingLink = stringField(location, "join_url")
		}
	}
	normalized.Booking = details

	return normalized, nil
}

func parseAttio(raw map[string]interface{}) (NormalizedEvent, error) {
	data, _ := raw["data"].(map[string]interface{})
	if data == nil {
		return NormalizedEvent{}, fmt.Errorf("attio payload is missing the data object")
	}

	return NormalizedEvent{
		Provider: "attio",
		Event:    stringField(raw, "event"),
		Contact: integrations.ContactIdentity{
			Email: stringField(data, "email"),
			Name:  stringField(data, "name"),
		},
		Status: stringField(data, "status"),
	}, nil
}

func parseWebform(raw map[string]interface{}) (NormalizedEvent, error) {
	return NormalizedEvent{
		Provider: "webform",
		Event:    "form.submitted",
		Contact: integrations.ContactIdentity{
			Email: stringField(raw, "email"),
			Name:  stringField(raw, "name"),
			Phone: stringField(raw, "phone"),
		},
		Message: stringField(raw, "message"),
	}, nil
}

func stringField(m map[string]interface{}, key string) string {
	value, _ := m[key].(string)
	return value
}

func timeField(m map[string]interface{}, key string) time.Time {
	value := stringField(m, key)
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// bookingStatus maps a parsed scheduling event to the stored booking status
func bookingStatus(details *BookingDetails) string {
	if details.Cancelled {
		return models.BookingStatusCancelled
	}
	return models.BookingStatusConfirmed
}
