package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/robbyautoki/attio-hub/pkg/models"
	"github.com/robbyautoki/attio-hub/pkg/templates"
)

// Step names as they appear in step logs
const (
	StepParsePayload     = "parse_payload"
	StepStoreBooking     = "store_booking"
	StepUpsertCRMContact = "upsert_crm_contact"
	StepUpdateCRMStatus  = "update_crm_status"
	StepSubscribeList    = "subscribe_marketing"
	StepSendConfirmation = "send_confirmation_email"
	StepSendWelcomeEmail = "send_welcome_email"
	StepNotifyChat       = "notify_chat"
)

// stepDef is one entry in a workflow kind's fixed step sequence. Critical
// steps decide the run outcome; Requires names prior steps whose output this
// step consumes.
type stepDef struct {
	Name     string
	Critical bool
	Requires []string
	Run      func(ctx context.Context, rc *runContext) (map[string]interface{}, error)
}

// stepsFor returns the fixed step sequence for a workflow kind, or nil for an
// unknown kind
func stepsFor(kind string) []stepDef {
	switch kind {
	case models.WorkflowKindScheduling:
		return []stepDef{
			{Name: StepParsePayload, Critical: true, Run: stepParsePayload},
			{Name: StepStoreBooking, Critical: true, Requires: []string{StepParsePayload}, Run: stepStoreBooking},
			{Name: StepUpsertCRMContact, Requires: []string{StepParsePayload}, Run: stepUpsertCRMContact},
			{Name: StepSendConfirmation, Requires: []string{StepStoreBooking}, Run: stepSendConfirmation},
			{Name: StepNotifyChat, Requires: []string{StepParsePayload}, Run: stepNotifyChat},
		}
	case models.WorkflowKindCRMStatus:
		return []stepDef{
			{Name: StepParsePayload, Critical: true, Run: stepParsePayload},
			{Name: StepUpdateCRMStatus, Critical: true, Requires: []string{StepParsePayload}, Run: stepUpdateCRMStatus},
			{Name: StepSubscribeList, Requires: []string{StepParsePayload}, Run: stepSubscribeList},
			{Name: StepNotifyChat, Requires: []string{StepParsePayload}, Run: stepNotifyChat},
		}
	case models.WorkflowKindLeadCapture:
		return []stepDef{
			{Name: StepParsePayload, Critical: true, Run: stepParsePayload},
			{Name: StepUpsertCRMContact, Critical: true, Requires: []string{StepParsePayload}, Run: stepUpsertCRMContact},
			{Name: StepSubscribeList, Requires: []string{StepParsePayload}, Run: stepSubscribeList},
			{Name: StepSendWelcomeEmail, Requires: []string{StepParsePayload}, Run: stepSendWelcomeEmail},
			{Name: StepNotifyChat, Requires: []string{StepParsePayload}, Run: stepNotifyChat},
		}
	}
	return nil
}

func stepParsePayload(ctx context.Context, rc *runContext) (map[string]interface{}, error) {
	event, err := ParsePayload(rc.workflow.Trigger.Provider, rc.payload)
	if err != nil {
		return nil, err
	}
	rc.event = &event

	return map[string]interface{}{
		"provider":      event.Provider,
		"event":         event.Event,
		"contact_email": event.Contact.Email,
	}, nil
}

func stepStoreBooking(ctx context.Context, rc *runContext) (map[string]interface{}, error) {
	if err := rc.requireContactEmail(); err != nil {
		return nil, err
	}

	details := rc.event.Booking
	if details == nil {
		return nil, &skipError{reason: "no booking details in payload"}
	}

	if details.Cancelled {
		return rc.cancelMatchingBooking(details)
	}
	if details.StartTime.IsZero() {
		return nil, &skipError{reason: "no start time in payload"}
	}

	now := rc.engine.now()
	booking := models.Booking{
		ID:           uuid.New().String(),
		OwnerID:      rc.workflow.OwnerID,
		WorkflowID:   rc.workflow.ID,
		ContactEmail: rc.event.Contact.Email,
		ContactName:  rc.event.Contact.Name,
		ContactPhone: rc.event.Contact.Phone,
		StartTime:    details.StartTime,
		EndTime:      details.EndTime,
		MeetingLink:  details.MeetingLink,
		EventType:    details.EventType,
		Status:       bookingStatus(details),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := rc.engine.bookings.SaveBooking(booking); err != nil {
		return nil, fmt.Errorf("failed to store booking: %w", err)
	}
	rc.bookingID = booking.ID

	return map[string]interface{}{
		"booking_id": booking.ID,
		"start_time": booking.StartTime.Format(time.RFC3339),
	}, nil
}

// cancelMatchingBooking marks the owner's confirmed booking for the same
// contact and start time as cancelled. Scheduling providers do not echo our
// booking IDs back, so the match is by contact and time.
func (rc *runContext) cancelMatchingBooking(details *BookingDetails) (map[string]interface{}, error) {
	bookings, err := rc.engine.bookings.ListBookings(rc.workflow.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up bookings: %w", err)
	}

	for _, booking := range bookings {
		if booking.Status != models.BookingStatusConfirmed {
			continue
		}
		if booking.ContactEmail != rc.event.Contact.Email {
			continue
		}
		if !details.StartTime.IsZero() && !booking.StartTime.Equal(details.StartTime) {
			continue
		}

		if err := rc.engine.bookings.UpdateBookingStatus(booking.ID, models.BookingStatusCancelled); err != nil {
			return nil, fmt.Errorf("failed to cancel booking: %w", err)
		}

		return map[string]interface{}{
			"booking_id": booking.ID,
			"cancelled":  true,
		}, nil
	}

	return map[string]interface{}{
		"cancelled": true,
		"matched":   false,
	}, nil
}

func stepUpsertCRMContact(ctx context.Context, rc *runContext) (map[string]interface{}, error) {
	if err := rc.requireContactEmail(); err != nil {
		return nil, err
	}

	apiKey, err := rc.secret(models.ServiceCRM)
	if err != nil {
		return nil, err
	}

	attributes := map[string]interface{}{
		"source": rc.event.Provider,
	}
	if rc.event.Message != "" {
		attributes["notes"] = rc.event.Message
	}

	client := rc.engine.clients.CRM(apiKey)
	return client.UpsertContact(ctx, rc.event.Contact, attributes)
}

func stepUpdateCRMStatus(ctx context.Context, rc *runContext) (map[string]interface{}, error) {
	if err := rc.requireContactEmail(); err != nil {
		return nil, err
	}
	if rc.event.Status == "" {
		return nil, &skipError{reason: "no status in payload"}
	}

	apiKey, err := rc.secret(models.ServiceCRM)
	if err != nil {
		return nil, err
	}

	client := rc.engine.clients.CRM(apiKey)
	return client.UpdateContactStatus(ctx, rc.event.Contact.Email, rc.event.Status)
}

func stepSubscribeList(ctx context.Context, rc *runContext) (map[string]interface{}, error) {
	if err := rc.requireContactEmail(); err != nil {
		return nil, err
	}

	apiKey, err := rc.secret(models.ServiceMarketing)
	if err != nil {
		return nil, err
	}

	client := rc.engine.clients.Marketing(apiKey)
	return client.SubscribeContact(ctx, rc.event.Contact, rc.workflow.Trigger.ListID)
}

// stepSendConfirmation sends the booking confirmation email. The sent
// timestamp is claimed before the send, so a redelivered webhook can never
// produce a second confirmation; a send failure after the claim is accepted
// as the lesser failure mode.
func stepSendConfirmation(ctx context.Context, rc *runContext) (map[string]interface{}, error) {
	if rc.bookingID == "" {
		return nil, &skipError{reason: "no booking stored for this run"}
	}

	password, err := rc.secret(models.ServiceEmail)
	if err != nil {
		return nil, err
	}

	claimed, err := rc.engine.bookings.MarkReminderSent(rc.bookingID, models.ReminderConfirmation, rc.engine.now())
	if err != nil {
		return nil, fmt.Errorf("failed to claim confirmation send: %w", err)
	}
	if !claimed {
		return nil, &skipError{reason: "confirmation already sent"}
	}

	booking, err := rc.engine.bookings.GetBooking(rc.bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}

	subject, body, err := rc.engine.templates.Render(string(models.ReminderConfirmation), bookingVars(booking))
	if err != nil {
		return nil, err
	}

	sender := rc.engine.clients.Email(password)
	if err := sender.Send(ctx, booking.ContactEmail, subject, body); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"to":       booking.ContactEmail,
		"template": string(models.ReminderConfirmation),
	}, nil
}

func stepSendWelcomeEmail(ctx context.Context, rc *runContext) (map[string]interface{}, error) {
	if err := rc.requireContactEmail(); err != nil {
		return nil, err
	}

	password, err := rc.secret(models.ServiceEmail)
	if err != nil {
		return nil, err
	}

	subject, body, err := rc.engine.templates.Render(templates.TemplateWelcome, map[string]string{
		"name": rc.event.Contact.Name,
	})
	if err != nil {
		return nil, err
	}

	sender := rc.engine.clients.Email(password)
	if err := sender.Send(ctx, rc.event.Contact.Email, subject, body); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"to":       rc.event.Contact.Email,
		"template": templates.TemplateWelcome,
	}, nil
}

func stepNotifyChat(ctx context.Context, rc *runContext) (map[string]interface{}, error) {
	if err := rc.requireContactEmail(); err != nil {
		return nil, err
	}

	webhookURL, err := rc.secret(models.ServiceChat)
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("%s: %s for %s", rc.workflow.Name, rc.event.Event, rc.event.Contact.Email)
	notifier := rc.engine.clients.Chat(webhookURL)
	if err := notifier.Notify(ctx, text); err != nil {
		return nil, err
	}

	return map[string]interface{}{"notified": true}, nil
}

// bookingVars builds the template variables for a booking email
func bookingVars(booking models.Booking) map[string]string {
	name := booking.ContactName
	if name == "" {
		name = booking.ContactEmail
	}
	return map[string]string{
		"name":         name,
		"event_type":   booking.EventType,
		"start_time":   booking.StartTime.Format("Mon, 02 Jan 2006 15:04 MST"),
		"meeting_link": booking.MeetingLink,
	}
}
