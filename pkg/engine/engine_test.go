package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robbyautoki/attio-hub/pkg/integrations"
	"github.com/robbyautoki/attio-hub/pkg/models"
	"github.com/robbyautoki/attio-hub/pkg/storage"
	"github.com/robbyautoki/attio-hub/pkg/vault"
)

type fakeCRM struct {
	upsertErr error
	statusErr error
	upserts   int
	statuses  []string
}

func (f *fakeCRM) UpsertContact(ctx context.Context, contact integrations.ContactIdentity, attributes map[string]interface{}) (map[string]interface{}, error) {
	f.upserts++
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	return map[string]interface{}{"record_id": "rec-1"}, nil
}

func (f *fakeCRM) UpdateContactStatus(ctx context.Context, email, status string) (map[string]interface{}, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	f.statuses = append(f.statuses, status)
	return map[string]interface{}{"record_id": "rec-1", "stage": status}, nil
}

func (f *fakeCRM) TestConnection(ctx context.Context) integrations.ConnectionStatus {
	return integrations.ConnectionStatus{OK: true}
}

type fakeMarketing struct {
	subscribeErr error
	subscribes   int
}

func (f *fakeMarketing) SubscribeContact(ctx context.Context, contact integrations.ContactIdentity, listID string) (map[string]interface{}, error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.subscribes++
	return map[string]interface{}{"id": 1}, nil
}

func (f *fakeMarketing) TestConnection(ctx context.Context) integrations.ConnectionStatus {
	return integrations.ConnectionStatus{OK: true}
}

type fakeEmail struct {
	sendErr error
	sent    []string
}

func (f *fakeEmail) Send(ctx context.Context, to, subject, body string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, to)
	return nil
}

func (f *fakeEmail) TestConnection(ctx context.Context) integrations.ConnectionStatus {
	return integrations.ConnectionStatus{OK: true}
}

type fakeChat struct {
	notifyErr error
	messages  []string
}

func (f *fakeChat) Notify(ctx context.Context, text string) error {
	if f.notifyErr != nil {
		return f.notifyErr
	}
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeChat) TestConnection(ctx context.Context) integrations.ConnectionStatus {
	return integrations.ConnectionStatus{OK: true}
}

type fakeFactory struct {
	crm       *fakeCRM
	marketing *fakeMarketing
	email     *fakeEmail
	chat      *fakeChat
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		crm:       &fakeCRM{},
		marketing: &fakeMarketing{},
		email:     &fakeEmail{},
		chat:      &fakeChat{},
	}
}

func (f *fakeFactory) CRM(apiKey string) integrations.CRMClient             { return f.crm }
func (f *fakeFactory) Marketing(apiKey string) integrations.MarketingClient { return f.marketing }
func (f *fakeFactory) Email(secret string) integrations.EmailSender         { return f.email }
func (f *fakeFactory) Chat(secret string) integrations.ChatNotifier         { return f.chat }

type testHarness struct {
	provider *storage.MemoryProvider
	vault    *vault.Service
	factory  *fakeFactory
	engine   *Engine
}

func newTestHarness(t *testing.T, services ...string) *testHarness {
	t.Helper()

	provider := storage.NewMemoryProvider()
	hexKey, err := vault.GenerateEncryptionKey()
	require.NoError(t, err)
	key, err := vault.EncryptionKeyFromHex(hexKey)
	require.NoError(t, err)
	vaultSvc, err := vault.NewService(provider.GetCredentialStore(), key)
	require.NoError(t, err)

	for _, service := range services {
		_, err := vaultSvc.Store("owner-1", service, "key-for-"+service)
		require.NoError(t, err)
	}

	factory := newFakeFactory()
	eng := New(Config{
		Workflows:  provider.GetWorkflowStore(),
		Executions: provider.GetExecutionStore(),
		Bookings:   provider.GetBookingStore(),
		Vault:      vaultSvc,
		Clients:    factory,
	})

	return &testHarness{provider: provider, vault: vaultSvc, factory: factory, engine: eng}
}

func (h *testHarness) saveWorkflow(t *testing.T, kind, provider string) models.Workflow {
	t.Helper()
	now := time.Now()
	workflow := models.Workflow{
		ID:          "wf-" + kind,
		OwnerID:     "owner-1",
		Name:        "Test " + kind,
		Kind:        kind,
		TriggerKind: models.TriggerWebhook,
		Trigger: models.TriggerConfig{
			Provider:    provider,
			WebhookPath: "hook-" + kind,
		},
		Enabled:   true,
		Status:    models.WorkflowStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, h.provider.GetWorkflowStore().SaveWorkflow(workflow))
	return workflow
}

func calendlyPayload(start time.Time) map[string]interface{} {
	return map[string]interface{}{
		"event": "invitee.created",
		"payload": map[string]interface{}{
			"email": "lead@example.com",
			"name":  "Lead Example",
			"scheduled_event": map[string]interface{}{
				"name":       "Intro Call",
				"start_time": start.Format(time.RFC3339),
				"end_time":   start.Add(30 * time.Minute).Format(time.RFC3339),
				"location": map[string]interface{}{
					"join_url": "https://meet.example.com/abc",
				},
			},
		},
	}
}

func stepByName(t *testing.T, execution models.ExecutionLog, name string) models.StepLog {
	t.Helper()
	for _, step := range execution.Steps {
		if step.Name == name {
			return step
		}
	}
	t.Fatalf("step %s not found in execution log", name)
	return models.StepLog{}
}

func TestExecuteSchedulingHappyPath(t *testing.T) {
	h := newTestHarness(t, models.ServiceCRM, models.ServiceEmail, models.ServiceChat)
	workflow := h.saveWorkflow(t, models.WorkflowKindScheduling, "calendly")
	start := time.Now().Add(48 * time.Hour).Truncate(time.Second)

	execution, err := h.engine.Execute(context.Background(), workflow, models.TriggerWebhook, calendlyPayload(start))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)
	require.Len(t, execution.Steps, 5)
	for _, step := range execution.Steps {
		assert.Equal(t, models.StepStatusSuccess, step.Status, "step %s", step.Name)
	}

	// Booking was stored and confirmed
	bookingID := execution.Output["booking_id"].(string)
	booking, err := h.provider.GetBookingStore().GetBooking(bookingID)
	require.NoError(t, err)
	assert.Equal(t, "lead@example.com", booking.ContactEmail)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
	assert.NotNil(t, booking.ConfirmationSentAt)

	// Side effects reached the clients
	assert.Equal(t, 1, h.factory.crm.upserts)
	assert.Equal(t, []string{"lead@example.com"}, h.factory.email.sent)
	assert.Len(t, h.factory.chat.messages, 1)

	// Counters recorded
	got, err := h.provider.GetWorkflowStore().GetWorkflow("owner-1", workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TotalExecutions)
	assert.Equal(t, int64(1), got.SuccessfulExecutions)

	// Execution log persisted in terminal state
	persisted, err := h.provider.GetExecutionStore().GetExecution(execution.ID)
	require.NoError(t, err)
	assert.True(t, persisted.Terminal())
}

func TestExecuteMissingCredentialSkipsStep(t *testing.T) {
	// No email credential: the confirmation is skipped but the run succeeds
	h := newTestHarness(t, models.ServiceCRM, models.ServiceChat)
	workflow := h.saveWorkflow(t, models.WorkflowKindScheduling, "calendly")

	execution, err := h.engine.Execute(context.Background(), workflow, models.TriggerWebhook, calendlyPayload(time.Now().Add(48*time.Hour)))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)
	confirmation := stepByName(t, execution, StepSendConfirmation)
	assert.Equal(t, models.StepStatusSkipped, confirmation.Status)
	assert.Contains(t, confirmation.Error, "no email credential")
	assert.Empty(t, h.factory.email.sent)

	// The unclaimed confirmation stays claimable
	bookingID := execution.Output["booking_id"].(string)
	booking, err := h.provider.GetBookingStore().GetBooking(bookingID)
	require.NoError(t, err)
	assert.Nil(t, booking.ConfirmationSentAt)
}

func TestExecuteMissingCriticalCredentialDegradesRun(t *testing.T) {
	// crm_status needs the CRM credential for its critical step
	h := newTestHarness(t, models.ServiceMarketing)
	workflow := h.saveWorkflow(t, models.WorkflowKindCRMStatus, "attio")

	payload := map[string]interface{}{
		"event": "record.status_changed",
		"data": map[string]interface{}{
			"email":  "lead@example.com",
			"status": "qualified",
		},
	}

	execution, err := h.engine.Execute(context.Background(), workflow, models.TriggerWebhook, payload)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSuccessDegraded, execution.Status)
	assert.Equal(t, models.StepStatusSkipped, stepByName(t, execution, StepUpdateCRMStatus).Status)
	// Non-critical steps still ran
	assert.Equal(t, models.StepStatusSuccess, stepByName(t, execution, StepSubscribeList).Status)

	// Degraded counts as successful
	got, err := h.provider.GetWorkflowStore().GetWorkflow("owner-1", workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.SuccessfulExecutions)
	assert.Equal(t, int64(0), got.FailedExecutions)
}

func TestExecuteCriticalFailureFailsRun(t *testing.T) {
	h := newTestHarness(t, models.ServiceCRM, models.ServiceMarketing, models.ServiceEmail)
	h.factory.crm.upsertErr = &integrations.ProviderError{Service: models.ServiceCRM, StatusCode: 500}
	workflow := h.saveWorkflow(t, models.WorkflowKindLeadCapture, "webform")

	payload := map[string]interface{}{
		"email":   "lead@example.com",
		"name":    "Lead",
		"message": "please call me",
	}

	execution, err := h.engine.Execute(context.Background(), workflow, models.TriggerWebhook, payload)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.Error, "crm")
	assert.Equal(t, models.StepStatusFailed, stepByName(t, execution, StepUpsertCRMContact).Status)

	// Later steps still ran despite the critical failure
	assert.Equal(t, models.StepStatusSuccess, stepByName(t, execution, StepSubscribeList).Status)
	assert.Equal(t, 1, h.factory.marketing.subscribes)

	got, err := h.provider.GetWorkflowStore().GetWorkflow("owner-1", workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.FailedExecutions)
}

func TestExecuteNonCriticalFailureStillSucceeds(t *testing.T) {
	h := newTestHarness(t, models.ServiceCRM, models.ServiceMarketing, models.ServiceEmail, models.ServiceChat)
	h.factory.marketing.subscribeErr = &integrations.ProviderError{Service: models.ServiceMarketing, StatusCode: 429}
	h.factory.chat.notifyErr = errors.New("webhook gone")
	workflow := h.saveWorkflow(t, models.WorkflowKindLeadCapture, "webform")

	payload := map[string]interface{}{"email": "lead@example.com"}

	execution, err := h.engine.Execute(context.Background(), workflow, models.TriggerWebhook, payload)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)
	assert.Equal(t, models.StepStatusFailed, stepByName(t, execution, StepSubscribeList).Status)
	assert.Equal(t, models.StepStatusFailed, stepByName(t, execution, StepNotifyChat).Status)
	assert.Equal(t, models.StepStatusSuccess, stepByName(t, execution, StepUpsertCRMContact).Status)
	assert.Empty(t, execution.Error)
}

func TestExecuteMissingEmailSkipsSteps(t *testing.T) {
	h := newTestHarness(t, models.ServiceCRM, models.ServiceEmail, models.ServiceChat)
	workflow := h.saveWorkflow(t, models.WorkflowKindScheduling, "calendly")

	// Missing invitee email: the parse step still succeeds, every integration
	// step skips, and the run degrades because the critical booking step
	// never ran
	payload := map[string]interface{}{
		"event":   "invitee.created",
		"payload": map[string]interface{}{},
	}

	execution, err := h.engine.Execute(context.Background(), workflow, models.TriggerWebhook, payload)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSuccessDegraded, execution.Status)
	assert.Equal(t, models.StepStatusSuccess, stepByName(t, execution, StepParsePayload).Status)
	for _, name := range []string{StepStoreBooking, StepUpsertCRMContact, StepNotifyChat} {
		step := stepByName(t, execution, name)
		assert.Equal(t, models.StepStatusSkipped, step.Status, "step %s", name)
		assert.Equal(t, "no email in payload", step.Error, "step %s", name)
	}

	assert.Equal(t, 0, h.factory.crm.upserts)
	assert.Empty(t, h.factory.email.sent)
}

func TestExecuteMalformedPayloadFailsRun(t *testing.T) {
	h := newTestHarness(t, models.ServiceCRM, models.ServiceEmail, models.ServiceChat)
	workflow := h.saveWorkflow(t, models.WorkflowKindScheduling, "calendly")

	// No payload object at all: this is a malformed payload, not a missing
	// field, so the parse step fails and the run fails with it
	execution, err := h.engine.Execute(context.Background(), workflow, models.TriggerWebhook, map[string]interface{}{
		"event": "invitee.created",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, models.StepStatusFailed, stepByName(t, execution, StepParsePayload).Status)
	for _, name := range []string{StepStoreBooking, StepUpsertCRMContact, StepSendConfirmation, StepNotifyChat} {
		assert.Equal(t, models.StepStatusSkipped, stepByName(t, execution, name).Status, "step %s", name)
	}
}

func TestExecuteUnknownProviderFailsRun(t *testing.T) {
	h := newTestHarness(t)
	workflow := h.saveWorkflow(t, models.WorkflowKindScheduling, "mystery")

	execution, err := h.engine.Execute(context.Background(), workflow, models.TriggerWebhook, map[string]interface{}{})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.Error, "unknown payload provider")
}

func TestConfirmationClaimIsPerBooking(t *testing.T) {
	h := newTestHarness(t, models.ServiceEmail)
	workflow := h.saveWorkflow(t, models.WorkflowKindScheduling, "calendly")
	payload := calendlyPayload(time.Now().Add(48 * time.Hour))

	first, err := h.engine.Execute(context.Background(), workflow, models.TriggerWebhook, payload)
	require.NoError(t, err)
	require.Equal(t, models.StepStatusSuccess, stepByName(t, first, StepSendConfirmation).Status)

	// The claim guards the booking row, not the delivery: once the run has
	// sent the confirmation, nothing operating on this booking can send again.
	bookingID := first.Output["booking_id"].(string)
	claimed, err := h.provider.GetBookingStore().MarkReminderSent(bookingID, models.ReminderConfirmation, time.Now())
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Len(t, h.factory.email.sent, 1)
}

func TestExecuteCancellationEvent(t *testing.T) {
	h := newTestHarness(t, models.ServiceEmail)
	workflow := h.saveWorkflow(t, models.WorkflowKindScheduling, "calendly")
	start := time.Now().Add(48 * time.Hour).Truncate(time.Second)

	created, err := h.engine.Execute(context.Background(), workflow, models.TriggerWebhook, calendlyPayload(start))
	require.NoError(t, err)
	bookingID := created.Output["booking_id"].(string)

	cancellation := calendlyPayload(start)
	cancellation["event"] = "invitee.canceled"

	execution, err := h.engine.Execute(context.Background(), workflow, models.TriggerWebhook, cancellation)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)
	step := stepByName(t, execution, StepStoreBooking)
	assert.Equal(t, models.StepStatusSuccess, step.Status)
	assert.Equal(t, true, step.Output["cancelled"])

	booking, err := h.provider.GetBookingStore().GetBooking(bookingID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, booking.Status)

	// No confirmation for a cancellation
	confirmation := stepByName(t, execution, StepSendConfirmation)
	assert.Equal(t, models.StepStatusSkipped, confirmation.Status)
}

func TestExecuteUnknownWorkflowKind(t *testing.T) {
	h := newTestHarness(t)
	workflow := h.saveWorkflow(t, "mystery_kind", "calendly")

	execution, err := h.engine.Execute(context.Background(), workflow, models.TriggerWebhook, map[string]interface{}{})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.Error, "unknown workflow kind")
	assert.Empty(t, execution.Steps)
}

type failingExecutionStore struct {
	storage.ExecutionStore
	failAfter int
	saves     int
}

func (f *failingExecutionStore) SaveExecution(execution models.ExecutionLog) error {
	f.saves++
	if f.saves > f.failAfter {
		return fmt.Errorf("disk full")
	}
	return f.ExecutionStore.SaveExecution(execution)
}

func TestExecutePersistenceFailureIsFatal(t *testing.T) {
	h := newTestHarness(t)
	workflow := h.saveWorkflow(t, models.WorkflowKindScheduling, "calendly")

	failing := &failingExecutionStore{ExecutionStore: h.provider.GetExecutionStore(), failAfter: 0}
	h.engine.executions = failing

	_, err := h.engine.Execute(context.Background(), workflow, models.TriggerWebhook, calendlyPayload(time.Now().Add(48*time.Hour)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to persist execution log")

	// No counters recorded for a run that never persisted
	got, err := h.provider.GetWorkflowStore().GetWorkflow("owner-1", workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.TotalExecutions)
}

func TestParsePayload(t *testing.T) {
	t.Run("Calendly", func(t *testing.T) {
		start := time.Now().Add(24 * time.Hour).Truncate(time.Second)
		event, err := ParsePayload("calendly", calendlyPayload(start))
		require.NoError(t, err)
		assert.Equal(t, "invitee.created", event.Event)
		assert.Equal(t, "lead@example.com", event.Contact.Email)
		require.NotNil(t, event.Booking)
		assert.True(t, event.Booking.StartTime.Equal(start))
		assert.Equal(t, "Intro Call", event.Booking.EventType)
		assert.Equal(t, "https://meet.example.com/abc", event.Booking.MeetingLink)
	})

	t.Run("CalendlyMissingStartTime", func(t *testing.T) {
		event, err := ParsePayload("calendly", map[string]interface{}{
			"event":   "invitee.created",
			"payload": map[string]interface{}{"email": "a@b.c"},
		})
		require.NoError(t, err)
		require.NotNil(t, event.Booking)
		assert.True(t, event.Booking.StartTime.IsZero())
	})

	t.Run("CalendlyMissingPayloadObject", func(t *testing.T) {
		_, err := ParsePayload("calendly", map[string]interface{}{
			"event": "invitee.created",
		})
		assert.Error(t, err)
	})

	t.Run("Attio", func(t *testing.T) {
		event, err := ParsePayload("attio", map[string]interface{}{
			"event": "record.status_changed",
			"data": map[string]interface{}{
				"email":  "lead@example.com",
				"status": "qualified",
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "qualified", event.Status)
	})

	t.Run("AttioMissingStatus", func(t *testing.T) {
		event, err := ParsePayload("attio", map[string]interface{}{
			"data": map[string]interface{}{"email": "a@b.c"},
		})
		require.NoError(t, err)
		assert.Empty(t, event.Status)
	})

	t.Run("AttioMissingDataObject", func(t *testing.T) {
		_, err := ParsePayload("attio", map[string]interface{}{"event": "x"})
		assert.Error(t, err)
	})

	t.Run("Webform", func(t *testing.T) {
		event, err := ParsePayload("webform", map[string]interface{}{
			"email":   "lead@example.com",
			"name":    "Lead",
			"message": "hello",
		})
		require.NoError(t, err)
		assert.Equal(t, "form.submitted", event.Event)
		assert.Equal(t, "hello", event.Message)
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		_, err := ParsePayload("mystery", map[string]interface{}{})
		assert.Error(t, err)
	})
}
