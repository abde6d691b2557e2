// Package scheduler dispatches the 24-hour and 1-hour booking reminders.
// Dispatch is idempotent: the sent timestamp is claimed with a conditional
// write before the email goes out, so no booking ever receives the same
// reminder twice, even with overlapping dispatch runs.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robbyautoki/attio-hub/pkg/integrations"
	"github.com/robbyautoki/attio-hub/pkg/logging"
	"github.com/robbyautoki/attio-hub/pkg/models"
	"github.com/robbyautoki/attio-hub/pkg/storage"
	"github.com/robbyautoki/attio-hub/pkg/templates"
	"github.com/robbyautoki/attio-hub/pkg/vault"
)

// reminderKinds are the scheduled reminder kinds, in dispatch order
var reminderKinds = []models.ReminderKind{models.Reminder24h, models.Reminder1h}

// windowSize is how far past the lead time a booking still qualifies
const windowSize = time.Hour

// EmailFactory builds an email sender from a decrypted mailbox credential
type EmailFactory interface {
	Email(secret string) integrations.EmailSender
}

// KindResult summarizes one reminder kind in a dispatch run
type KindResult struct {
	Kind    models.ReminderKind `json:"kind"`
	Due     int                 `json:"due"`
	Sent    int                 `json:"sent"`
	Skipped int                 `json:"skipped"`
	Failed  int                 `json:"failed"`
}

// RunResult summarizes a dispatch run
type RunResult struct {
	StartedAt time.Time    `json:"started_at"`
	Kinds     []KindResult `json:"kinds"`
}

// Sent returns the total emails sent across kinds
func (r RunResult) Sent() int {
	total := 0
	for _, kind := range r.Kinds {
		total += kind.Sent
	}
	return total
}

// Dispatcher finds due bookings and sends their reminders
type Dispatcher struct {
	bookings  storage.BookingStore
	vault     *vault.Service
	clients   EmailFactory
	templates *templates.Registry
	logger    logging.Logger
}

// NewDispatcher creates a reminder dispatcher
func NewDispatcher(bookings storage.BookingStore, vaultSvc *vault.Service, clients EmailFactory, registry *templates.Registry, logger logging.Logger) *Dispatcher {
	if registry == nil {
		registry = templates.Defaults()
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}

	return &Dispatcher{
		bookings:  bookings,
		vault:     vaultSvc,
		clients:   clients,
		templates: registry,
		logger:    logger,
	}
}

// Dispatch sends every reminder due at the given time. Each reminder kind
// selects confirmed bookings starting inside [now+lead, now+lead+1h) whose
// sent timestamp is still unset.
func (d *Dispatcher) Dispatch(ctx context.Context, now time.Time) (RunResult, error) {
	result := RunResult{StartedAt: now}

	for _, kind := range reminderKinds {
		kindResult, err := d.dispatchKind(ctx, kind, now)
		result.Kinds = append(result.Kinds, kindResult)
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

func (d *Dispatcher) dispatchKind(ctx context.Context, kind models.ReminderKind, now time.Time) (KindResult, error) {
	result := KindResult{Kind: kind}

	windowStart := now.Add(kind.LeadTime())
	windowEnd := windowStart.Add(windowSize)

	due, err := d.bookings.ListDueReminders(kind, windowStart, windowEnd)
	if err != nil {
		return result, err
	}
	result.Due = len(due)

	for _, booking := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		switch d.dispatchOne(ctx, kind, booking, now) {
		case outcomeSent:
			result.Sent++
		case outcomeSkipped:
			result.Skipped++
		case outcomeFailed:
			result.Failed++
		}
	}

	d.logger.LogSystemEvent("reminders_dispatched", map[string]interface{}{
		"kind": string(kind), "due": result.Due, "sent": result.Sent,
		"skipped": result.Skipped, "failed": result.Failed,
	})

	return result, nil
}

type dispatchOutcome int

const (
	outcomeSent dispatchOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// dispatchOne sends one reminder. The credential is resolved before the
// claim: a booking without a configured mailbox stays claimable for a later
// run. After a successful claim the reminder is spent even if the send fails.
func (d *Dispatcher) dispatchOne(ctx context.Context, kind models.ReminderKind, booking models.Booking, now time.Time) dispatchOutcome {
	password, err := d.vault.RevealForService(booking.OwnerID, models.ServiceEmail)
	if err != nil {
		if errors.Is(err, storage.ErrCredentialNotFound) || errors.Is(err, vault.ErrDecryption) {
			d.logger.Debug("skipping reminder, no usable email credential",
				logging.F("booking_id", booking.ID), logging.F("kind", string(kind)))
			return outcomeSkipped
		}
		d.logger.Error("failed to resolve email credential",
			logging.F("booking_id", booking.ID), logging.F("error", err.Error()))
		return outcomeFailed
	}

	claimed, err := d.bookings.MarkReminderSent(booking.ID, kind, now)
	if err != nil {
		d.logger.Error("failed to claim reminder",
			logging.F("booking_id", booking.ID), logging.F("error", err.Error()))
		return outcomeFailed
	}
	if !claimed {
		// Another dispatcher got there first
		return outcomeSkipped
	}

	subject, body, err := d.templates.Render(string(kind), bookingVars(booking))
	if err != nil {
		d.logger.Error("failed to render reminder template",
			logging.F("booking_id", booking.ID), logging.F("error", err.Error()))
		return outcomeFailed
	}

	sender := d.clients.Email(password)
	if err := sender.Send(ctx, booking.ContactEmail, subject, body); err != nil {
		d.logger.Error("failed to send reminder",
			logging.F("booking_id", booking.ID), logging.F("kind", string(kind)),
			logging.F("error", err.Error()))
		return outcomeFailed
	}

	d.logger.Info("reminder sent",
		logging.F("booking_id", booking.ID), logging.F("kind", string(kind)))

	return outcomeSent
}

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
