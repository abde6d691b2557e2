package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robbyautoki/attio-hub/pkg/integrations"
	"github.com/robbyautoki/attio-hub/pkg/models"
	"github.com/robbyautoki/attio-hub/pkg/storage"
	"github.com/robbyautoki/attio-hub/pkg/vault"
)

type recordingSender struct {
	sendErr  error
	sent     []string
	subjects []string
}

func (r *recordingSender) Send(ctx context.Context, to, subject, body string) error {
	if r.sendErr != nil {
		return r.sendErr
	}
	r.sent = append(r.sent, to)
	r.subjects = append(r.subjects, subject)
	return nil
}

func (r *recordingSender) TestConnection(ctx context.Context) integrations.ConnectionStatus {
	return integrations.ConnectionStatus{OK: true}
}

type senderFactory struct {
	sender *recordingSender
}

func (f *senderFactory) Email(secret string) integrations.EmailSender {
	return f.sender
}

type dispatchHarness struct {
	provider *storage.MemoryProvider
	sender   *recordingSender
	dispatch *Dispatcher
}

func newDispatchHarness(t *testing.T, withEmailCredential bool) *dispatchHarness {
	t.Helper()

	provider := storage.NewMemoryProvider()
	hexKey, err := vault.GenerateEncryptionKey()
	require.NoError(t, err)
	key, err := vault.EncryptionKeyFromHex(hexKey)
	require.NoError(t, err)
	vaultSvc, err := vault.NewService(provider.GetCredentialStore(), key)
	require.NoError(t, err)

	if withEmailCredential {
		_, err = vaultSvc.Store("owner-1", models.ServiceEmail, "mailbox-password")
		require.NoError(t, err)
	}

	sender := &recordingSender{}
	dispatcher := NewDispatcher(provider.GetBookingStore(), vaultSvc, &senderFactory{sender: sender}, nil, nil)

	return &dispatchHarness{provider: provider, sender: sender, dispatch: dispatcher}
}

func (h *dispatchHarness) addBooking(t *testing.T, id string, start time.Time) {
	t.Helper()
	now := time.Now()
	require.NoError(t, h.provider.GetBookingStore().SaveBooking(models.Booking{
		ID:           id,
		OwnerID:      "owner-1",
		ContactEmail: id + "@example.com",
		ContactName:  "Contact " + id,
		StartTime:    start,
		EventType:    "Intro Call",
		MeetingLink:  "https://meet.example.com/" + id,
		Status:       models.BookingStatusConfirmed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
}

func kindResult(t *testing.T, result RunResult, kind models.ReminderKind) KindResult {
	t.Helper()
	for _, k := range result.Kinds {
		if k.Kind == kind {
			return k
		}
	}
	t.Fatalf("kind %s not in result", kind)
	return KindResult{}
}

func TestDispatchSendsDueReminders(t *testing.T) {
	h := newDispatchHarness(t, true)
	now := time.Now()

	// 24h30m out: inside the 24h window
	h.addBooking(t, "b-24h", now.Add(24*time.Hour+30*time.Minute))
	// 90m out: inside the 1h window
	h.addBooking(t, "b-1h", now.Add(90*time.Minute))
	// 3h out: in neither window
	h.addBooking(t, "b-neither", now.Add(3*time.Hour))

	result, err := h.dispatch.Dispatch(context.Background(), now)
	require.NoError(t, err)

	r24 := kindResult(t, result, models.Reminder24h)
	assert.Equal(t, 1, r24.Due)
	assert.Equal(t, 1, r24.Sent)

	r1 := kindResult(t, result, models.Reminder1h)
	assert.Equal(t, 1, r1.Due)
	assert.Equal(t, 1, r1.Sent)

	assert.ElementsMatch(t, []string{"b-24h@example.com", "b-1h@example.com"}, h.sender.sent)

	// Sent timestamps recorded
	booking, err := h.provider.GetBookingStore().GetBooking("b-24h")
	require.NoError(t, err)
	assert.NotNil(t, booking.Reminder24hSentAt)
	assert.Nil(t, booking.Reminder1hSentAt)
}

func TestDispatchIsIdempotent(t *testing.T) {
	h := newDispatchHarness(t, true)
	now := time.Now()
	h.addBooking(t, "b-1", now.Add(24*time.Hour+30*time.Minute))

	first, err := h.dispatch.Dispatch(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Sent())

	// Same wall-clock window, run again: nothing due anymore
	second, err := h.dispatch.Dispatch(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Sent())
	assert.Len(t, h.sender.sent, 1)
}

func TestDispatchBothKindsForSameBookingOverTime(t *testing.T) {
	h := newDispatchHarness(t, true)
	start := time.Now().Add(30 * time.Hour)
	h.addBooking(t, "b-1", start)

	// 24h reminder fires when the booking is ~24h30m out
	at24 := start.Add(-24*time.Hour - 30*time.Minute)
	result, err := h.dispatch.Dispatch(context.Background(), at24)
	require.NoError(t, err)
	assert.Equal(t, 1, kindResult(t, result, models.Reminder24h).Sent)

	// 1h reminder fires later, independently
	at1 := start.Add(-90 * time.Minute)
	result, err = h.dispatch.Dispatch(context.Background(), at1)
	require.NoError(t, err)
	assert.Equal(t, 1, kindResult(t, result, models.Reminder1h).Sent)
	assert.Equal(t, 0, kindResult(t, result, models.Reminder24h).Sent)

	assert.Len(t, h.sender.sent, 2)
}

func TestDispatchSkipsWithoutEmailCredential(t *testing.T) {
	h := newDispatchHarness(t, false)
	now := time.Now()
	h.addBooking(t, "b-1", now.Add(24*time.Hour+30*time.Minute))

	result, err := h.dispatch.Dispatch(context.Background(), now)
	require.NoError(t, err)

	r24 := kindResult(t, result, models.Reminder24h)
	assert.Equal(t, 1, r24.Due)
	assert.Equal(t, 1, r24.Skipped)
	assert.Empty(t, h.sender.sent)

	// Not claimed: configuring the credential later still allows the send
	booking, err := h.provider.GetBookingStore().GetBooking("b-1")
	require.NoError(t, err)
	assert.Nil(t, booking.Reminder24hSentAt)
}

func TestDispatchSendFailureConsumesClaim(t *testing.T) {
	h := newDispatchHarness(t, true)
	h.sender.sendErr = errors.New("smtp unavailable")
	now := time.Now()
	h.addBooking(t, "b-1", now.Add(24*time.Hour+30*time.Minute))

	result, err := h.dispatch.Dispatch(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, kindResult(t, result, models.Reminder24h).Failed)

	// The claim stands: no duplicate on retry, by design the failed send is
	// not retried either
	booking, err := h.provider.GetBookingStore().GetBooking("b-1")
	require.NoError(t, err)
	assert.NotNil(t, booking.Reminder24hSentAt)

	h.sender.sendErr = nil
	second, err := h.dispatch.Dispatch(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Sent())
}

func TestDispatchIgnoresCancelledBookings(t *testing.T) {
	h := newDispatchHarness(t, true)
	now := time.Now()
	h.addBooking(t, "b-1", now.Add(24*time.Hour+30*time.Minute))
	require.NoError(t, h.provider.GetBookingStore().UpdateBookingStatus("b-1", models.BookingStatusCancelled))

	result, err := h.dispatch.Dispatch(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, kindResult(t, result, models.Reminder24h).Due)
	assert.Empty(t, h.sender.sent)
}

func TestDispatchRendersBookingTemplate(t *testing.T) {
	h := newDispatchHarness(t, true)
	now := time.Now()
	h.addBooking(t, "b-1", now.Add(90*time.Minute))

	_, err := h.dispatch.Dispatch(context.Background(), now)
	require.NoError(t, err)

	require.Len(t, h.sender.subjects, 1)
	assert.Equal(t, "Starting soon: your meeting", h.sender.subjects[0])
}
