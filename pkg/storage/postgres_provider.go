package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/robbyautoki/attio-hub/pkg/models"
)

// PostgreSQLProvider implements the StorageProvider interface using PostgreSQL
type PostgreSQLProvider struct {
	db              *sql.DB
	workflowStore   *PostgreSQLWorkflowStore
	executionStore  *PostgreSQLExecutionStore
	bookingStore    *PostgreSQLBookingStore
	credentialStore *PostgreSQLCredentialStore
	accountStore    *PostgreSQLAccountStore
}

// PostgreSQLProviderConfig contains configuration for the PostgreSQL provider
type PostgreSQLProviderConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewPostgreSQLProvider creates a new PostgreSQL storage provider
func NewPostgreSQLProvider(config PostgreSQLProviderConfig) (*PostgreSQLProvider, error) {
	if config.Port == 0 {
		config.Port = 5432
	}
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.Database, config.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	provider := &PostgreSQLProvider{db: db}
	provider.workflowStore = &PostgreSQLWorkflowStore{db: db}
	provider.executionStore = &PostgreSQLExecutionStore{db: db}
	provider.bookingStore = &PostgreSQLBookingStore{db: db}
	provider.credentialStore = &PostgreSQLCredentialStore{db: db}
	provider.accountStore = &PostgreSQLAccountStore{db: db}

	return provider, nil
}

// Initialize sets up the storage backend
func (p *PostgreSQLProvider) Initialize() error {
	if err := p.workflowStore.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize workflow store: %w", err)
	}
	if err := p.executionStore.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize execution store: %w", err)
	}
	if err := p.bookingStore.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize booking store: %w", err)
	}
	if err := p.credentialStore.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}
	if err := p.accountStore.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize account store: %w", err)
	}

	return nil
}

// Close cleans up resources
func (p *PostgreSQLProvider) Close() error {
	return p.db.Close()
}

// GetWorkflowStore returns a store for workflow records
func (p *PostgreSQLProvider) GetWorkflowStore() WorkflowStore {
	return p.workflowStore
}

// GetExecutionStore returns a store for execution logs
func (p *PostgreSQLProvider) GetExecutionStore() ExecutionStore {
	return p.executionStore
}

// GetBookingStore returns a store for bookings
func (p *PostgreSQLProvider) GetBookingStore() BookingStore {
	return p.bookingStore
}

// GetCredentialStore returns a store for encrypted credentials
func (p *PostgreSQLProvider) GetCredentialStore() CredentialStore {
	return p.credentialStore
}

// GetAccountStore returns a store for account data
func (p *PostgreSQLProvider) GetAccountStore() AccountStore {
	return p.accountStore
}

// PostgreSQLWorkflowStore implements the WorkflowStore interface using PostgreSQL
type PostgreSQLWorkflowStore struct {
	db *sql.DB
}

// Initialize creates the workflows table if it doesn't exist
func (s *PostgreSQLWorkflowStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			trigger_kind TEXT NOT NULL,
			trigger_config JSONB NOT NULL,
			webhook_path TEXT,
			enabled BOOLEAN NOT NULL,
			status TEXT NOT NULL,
			required_integrations JSONB,
			total_executions BIGINT NOT NULL DEFAULT 0,
			successful_executions BIGINT NOT NULL DEFAULT 0,
			failed_executions BIGINT NOT NULL DEFAULT 0,
			last_executed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS workflows_owner_id_idx ON workflows (owner_id);
		CREATE UNIQUE INDEX IF NOT EXISTS workflows_webhook_path_idx ON workflows (webhook_path) WHERE webhook_path IS NOT NULL;
	`)
	if err != nil {
		return fmt.Errorf("failed to create workflows table: %w", err)
	}

	return nil
}

// SaveWorkflow persists a workflow
func (s *PostgreSQLWorkflowStore) SaveWorkflow(workflow models.Workflow) error {
	trigger, err := json.Marshal(workflow.Trigger)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger config: %w", err)
	}

	integrations, err := json.Marshal(workflow.RequiredIntegrations)
	if err != nil {
		return fmt.Errorf("failed to marshal required integrations: %w", err)
	}

	var webhookPath sql.NullString
	if workflow.Trigger.WebhookPath != "" {
		webhookPath = sql.NullString{String: workflow.Trigger.WebhookPath, Valid: true}
	}

	_, err = s.db.Exec(`
		INSERT INTO workflows (
			id, owner_id, name, kind, trigger_kind, trigger_config, webhook_path,
			enabled, status, required_integrations,
			total_executions, successful_executions, failed_executions,
			last_executed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			trigger_kind = EXCLUDED.trigger_kind,
			trigger_config = EXCLUDED.trigger_config,
			webhook_path = EXCLUDED.webhook_path,
			enabled = EXCLUDED.enabled,
			status = EXCLUDED.status,
			required_integrations = EXCLUDED.required_integrations,
			updated_at = EXCLUDED.updated_at`,
		workflow.ID, workflow.OwnerID, workflow.Name, workflow.Kind, workflow.TriggerKind,
		trigger, webhookPath, workflow.Enabled, workflow.Status, integrations,
		workflow.TotalExecutions, workflow.SuccessfulExecutions, workflow.FailedExecutions,
		workflow.LastExecutedAt, workflow.CreatedAt, workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

const workflowColumns = `id, owner_id, name, kind, trigger_kind, trigger_config,
	enabled, status, required_integrations,
	total_executions, successful_executions, failed_executions,
	last_executed_at, created_at, updated_at`

func scanWorkflow(row interface{ Scan(...interface{}) error }) (models.Workflow, error) {
	var workflow models.Workflow
	var trigger, integrations []byte
	var lastExecuted sql.NullTime

	err := row.Scan(
		&workflow.ID, &workflow.OwnerID, &workflow.Name, &workflow.Kind, &workflow.TriggerKind,
		&trigger, &workflow.Enabled, &workflow.Status, &integrations,
		&workflow.TotalExecutions, &workflow.SuccessfulExecutions, &workflow.FailedExecutions,
		&lastExecuted, &workflow.CreatedAt, &workflow.UpdatedAt,
	)
	if err != nil {
		return models.Workflow{}, err
	}

	if err := json.Unmarshal(trigger, &workflow.Trigger); err != nil {
		return models.Workflow{}, fmt.Errorf("failed to unmarshal trigger config: %w", err)
	}
	if len(integrations) > 0 {
		if err := json.Unmarshal(integrations, &workflow.RequiredIntegrations); err != nil {
			return models.Workflow{}, fmt.Errorf("failed to unmarshal required integrations: %w", err)
		}
	}
	if lastExecuted.Valid {
		workflow.LastExecutedAt = &lastExecuted.Time
	}

	return workflow, nil
}

// GetWorkflow retrieves a workflow scoped to its owner
func (s *PostgreSQLWorkflowStore) GetWorkflow(ownerID, workflowID string) (models.Workflow, error) {
	row := s.db.QueryRow(
		"SELECT "+workflowColumns+" FROM workflows WHERE owner_id = $1 AND id = $2",
		ownerID, workflowID,
	)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Workflow{}, ErrWorkflowNotFound
		}
		return models.Workflow{}, fmt.Errorf("failed to get workflow: %w", err)
	}

	return workflow, nil
}

// GetWorkflowByWebhookPath retrieves a workflow by its webhook path token
func (s *PostgreSQLWorkflowStore) GetWorkflowByWebhookPath(path string) (models.Workflow, error) {
	row := s.db.QueryRow(
		"SELECT "+workflowColumns+" FROM workflows WHERE webhook_path = $1",
		path,
	)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Workflow{}, ErrWorkflowNotFound
		}
		return models.Workflow{}, fmt.Errorf("failed to get workflow by webhook path: %w", err)
	}

	return workflow, nil
}

// ListWorkflows returns all workflows for an owner
func (s *PostgreSQLWorkflowStore) ListWorkflows(ownerID string) ([]models.Workflow, error) {
	rows, err := s.db.Query(
		"SELECT "+workflowColumns+" FROM workflows WHERE owner_id = $1 ORDER BY created_at",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	workflows := make([]models.Workflow, 0)
	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow rows: %w", err)
	}

	return workflows, nil
}

// DeleteWorkflow removes a workflow
func (s *PostgreSQLWorkflowStore) DeleteWorkflow(ownerID, workflowID string) error {
	result, err := s.db.Exec(
		"DELETE FROM workflows WHERE owner_id = $1 AND id = $2",
		ownerID, workflowID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrWorkflowNotFound
	}

	return nil
}

// RecordExecution atomically increments the workflow counters for one terminal run.
// A single UPDATE statement avoids lost updates under concurrent runs.
func (s *PostgreSQLWorkflowStore) RecordExecution(workflowID string, succeeded bool, at time.Time) error {
	result, err := s.db.Exec(`
		UPDATE workflows SET
			total_executions = total_executions + 1,
			successful_executions = successful_executions + CASE WHEN $2 THEN 1 ELSE 0 END,
			failed_executions = failed_executions + CASE WHEN $2 THEN 0 ELSE 1 END,
			last_executed_at = $3,
			updated_at = $3
		WHERE id = $1`,
		workflowID, succeeded, at,
	)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrWorkflowNotFound
	}

	return nil
}

// PostgreSQLExecutionStore implements the ExecutionStore interface using PostgreSQL
type PostgreSQLExecutionStore struct {
	db *sql.DB
}

// Initialize creates the executions table if it doesn't exist
func (s *PostgreSQLExecutionStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			status TEXT NOT NULL,
			trigger_kind TEXT NOT NULL,
			input JSONB,
			output JSONB,
			error TEXT,
			steps JSONB NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ,
			duration_ms BIGINT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS executions_workflow_id_idx ON executions (workflow_id);
		CREATE INDEX IF NOT EXISTS executions_owner_id_idx ON executions (owner_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create executions table: %w", err)
	}

	return nil
}

// SaveExecution persists an execution log
func (s *PostgreSQLExecutionStore) SaveExecution(execution models.ExecutionLog) error {
	input, err := json.Marshal(execution.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal execution input: %w", err)
	}
	output, err := json.Marshal(execution.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal execution output: %w", err)
	}
	steps, err := json.Marshal(execution.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal step logs: %w", err)
	}

	var completedAt sql.NullTime
	if !execution.CompletedAt.IsZero() {
		completedAt = sql.NullTime{Time: execution.CompletedAt, Valid: true}
	}

	_, err = s.db.Exec(`
		INSERT INTO executions (
			id, workflow_id, owner_id, status, trigger_kind,
			input, output, error, steps, started_at, completed_at, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			output = EXCLUDED.output,
			error = EXCLUDED.error,
			steps = EXCLUDED.steps,
			completed_at = EXCLUDED.completed_at,
			duration_ms = EXCLUDED.duration_ms`,
		execution.ID, execution.WorkflowID, execution.OwnerID, execution.Status, execution.TriggerKind,
		input, output, execution.Error, steps, execution.StartedAt, completedAt, execution.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	return nil
}

const executionColumns = `id, workflow_id, owner_id, status, trigger_kind,
	input, output, error, steps, started_at, completed_at, duration_ms`

func scanExecution(row interface{ Scan(...interface{}) error }) (models.ExecutionLog, error) {
	var execution models.ExecutionLog
	var input, output, steps []byte
	var completedAt sql.NullTime

	err := row.Scan(
		&execution.ID, &execution.WorkflowID, &execution.OwnerID, &execution.Status, &execution.TriggerKind,
		&input, &output, &execution.Error, &steps, &execution.StartedAt, &completedAt, &execution.DurationMs,
	)
	if err != nil {
		return models.ExecutionLog{}, err
	}

	if len(input) > 0 {
		if err := json.Unmarshal(input, &execution.Input); err != nil {
			return models.ExecutionLog{}, fmt.Errorf("failed to unmarshal execution input: %w", err)
		}
	}
	if len(output) > 0 {
		if err := json.Unmarshal(output, &execution.Output); err != nil {
			return models.ExecutionLog{}, fmt.Errorf("failed to unmarshal execution output: %w", err)
		}
	}
	if err := json.Unmarshal(steps, &execution.Steps); err != nil {
		return models.ExecutionLog{}, fmt.Errorf("failed to unmarshal step logs: %w", err)
	}
	if completedAt.Valid {
		execution.CompletedAt = completedAt.Time
	}

	return execution, nil
}

// GetExecution retrieves an execution log
func (s *PostgreSQLExecutionStore) GetExecution(executionID string) (models.ExecutionLog, error) {
	row := s.db.QueryRow(
		"SELECT "+executionColumns+" FROM executions WHERE id = $1",
		executionID,
	)

	execution, err := scanExecution(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.ExecutionLog{}, ErrExecutionNotFound
		}
		return models.ExecutionLog{}, fmt.Errorf("failed to get execution: %w", err)
	}

	return execution, nil
}

// ListExecutions returns all execution logs for a workflow
func (s *PostgreSQLExecutionStore) ListExecutions(workflowID string) ([]models.ExecutionLog, error) {
	return s.list("workflow_id", workflowID)
}

// ListExecutionsForOwner returns all execution logs for an owner
func (s *PostgreSQLExecutionStore) ListExecutionsForOwner(ownerID string) ([]models.ExecutionLog, error) {
	return s.list("owner_id", ownerID)
}

func (s *PostgreSQLExecutionStore) list(column, value string) ([]models.ExecutionLog, error) {
	rows, err := s.db.Query(
		"SELECT "+executionColumns+" FROM executions WHERE "+column+" = $1 ORDER BY started_at DESC",
		value,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	executions := make([]models.ExecutionLog, 0)
	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution rows: %w", err)
	}

	return executions, nil
}

// PostgreSQLBookingStore implements the BookingStore interface using PostgreSQL
type PostgreSQLBookingStore struct {
	db *sql.DB
}

// Initialize creates the bookings table if it doesn't exist
func (s *PostgreSQLBookingStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			workflow_id TEXT,
			contact_email TEXT NOT NULL,
			contact_name TEXT,
			contact_phone TEXT,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ,
			meeting_link TEXT,
			event_type TEXT,
			status TEXT NOT NULL,
			confirmation_sent_at TIMESTAMPTZ,
			reminder_24h_sent_at TIMESTAMPTZ,
			reminder_1h_sent_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS bookings_owner_id_idx ON bookings (owner_id);
		CREATE INDEX IF NOT EXISTS bookings_status_start_idx ON bookings (status, start_time);
	`)
	if err != nil {
		return fmt.Errorf("failed to create bookings table: %w", err)
	}

	return nil
}

// reminderColumn maps a reminder kind to its sent-timestamp column
func reminderColumn(kind models.ReminderKind) (string, error) {
	switch kind {
	case models.ReminderConfirmation:
		return "confirmation_sent_at", nil
	case models.Reminder24h:
		return "reminder_24h_sent_at", nil
	case models.Reminder1h:
		return "reminder_1h_sent_at", nil
	}
	return "", fmt.Errorf("unknown reminder kind: %s", kind)
}

// SaveBooking persists a booking
func (s *PostgreSQLBookingStore) SaveBooking(booking models.Booking) error {
	_, err := s.db.Exec(`
		INSERT INTO bookings (
			id, owner_id, workflow_id, contact_email, contact_name, contact_phone,
			start_time, end_time, meeting_link, event_type, status,
			confirmation_sent_at, reminder_24h_sent_at, reminder_1h_sent_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			contact_email = EXCLUDED.contact_email,
			contact_name = EXCLUDED.contact_name,
			contact_phone = EXCLUDED.contact_phone,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			meeting_link = EXCLUDED.meeting_link,
			event_type = EXCLUDED.event_type,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		booking.ID, booking.OwnerID, booking.WorkflowID, booking.ContactEmail, booking.ContactName,
		booking.ContactPhone, booking.StartTime, booking.EndTime, booking.MeetingLink,
		booking.EventType, booking.Status,
		booking.ConfirmationSentAt, booking.Reminder24hSentAt, booking.Reminder1hSentAt,
		booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}

	return nil
}

const bookingColumns = `id, owner_id, workflow_id, contact_email, contact_name, contact_phone,
	start_time, end_time, meeting_link, event_type, status,
	confirmation_sent_at, reminder_24h_sent_at, reminder_1h_sent_at,
	created_at, updated_at`

func scanBooking(row interface{ Scan(...interface{}) error }) (models.Booking, error) {
	var booking models.Booking
	var workflowID, contactName, contactPhone, meetingLink, eventType sql.NullString
	var endTime, confirmation, reminder24h, reminder1h sql.NullTime

	err := row.Scan(
		&booking.ID, &booking.OwnerID, &workflowID, &booking.ContactEmail, &contactName, &contactPhone,
		&booking.StartTime, &endTime, &meetingLink, &eventType, &booking.Status,
		&confirmation, &reminder24h, &reminder1h,
		&booking.CreatedAt, &booking.UpdatedAt,
	)
	if err != nil {
		return models.Booking{}, err
	}

	booking.WorkflowID = workflowID.String
	booking.ContactName = contactName.String
	booking.ContactPhone = contactPhone.String
	booking.MeetingLink = meetingLink.String
	booking.EventType = eventType.String
	if endTime.Valid {
		booking.EndTime = endTime.Time
	}
	if confirmation.Valid {
		booking.ConfirmationSentAt = &confirmation.Time
	}
	if reminder24h.Valid {
		booking.Reminder24hSentAt = &reminder24h.Time
	}
	if reminder1h.Valid {
		booking.Reminder1hSentAt = &reminder1h.Time
	}

	return booking, nil
}

// GetBooking retrieves a booking
func (s *PostgreSQLBookingStore) GetBooking(bookingID string) (models.Booking, error) {
	row := s.db.QueryRow("SELECT "+bookingColumns+" FROM bookings WHERE id = $1", bookingID)

	booking, err := scanBooking(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Booking{}, ErrBookingNotFound
		}
		return models.Booking{}, fmt.Errorf("failed to get booking: %w", err)
	}

	return booking, nil
}

// ListBookings returns all bookings for an owner
func (s *PostgreSQLBookingStore) ListBookings(ownerID string) ([]models.Booking, error) {
	rows, err := s.db.Query(
		"SELECT "+bookingColumns+" FROM bookings WHERE owner_id = $1 ORDER BY start_time",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// ListDueReminders returns confirmed bookings in the window with an unset sent timestamp
func (s *PostgreSQLBookingStore) ListDueReminders(kind models.ReminderKind, windowStart, windowEnd time.Time) ([]models.Booking, error) {
	column, err := reminderColumn(kind)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		"SELECT "+bookingColumns+" FROM bookings WHERE status = $1 AND start_time >= $2 AND start_time < $3 AND "+column+" IS NULL ORDER BY start_time",
		models.BookingStatusConfirmed, windowStart, windowEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due reminders: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

func collectBookings(rows *sql.Rows) ([]models.Booking, error) {
	bookings := make([]models.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating booking rows: %w", err)
	}

	return bookings, nil
}

// MarkReminderSent sets the sent timestamp for the kind only if currently null.
// The IS NULL guard makes the update a claim: concurrent invocations for the
// same booking see at most one true result.
func (s *PostgreSQLBookingStore) MarkReminderSent(bookingID string, kind models.ReminderKind, at time.Time) (bool, error) {
	column, err := reminderColumn(kind)
	if err != nil {
		return false, err
	}

	result, err := s.db.Exec(
		"UPDATE bookings SET "+column+" = $2, updated_at = $2 WHERE id = $1 AND "+column+" IS NULL",
		bookingID, at,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder sent: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}

// UpdateBookingStatus transitions a booking's status
func (s *PostgreSQLBookingStore) UpdateBookingStatus(bookingID string, status string) error {
	result, err := s.db.Exec(
		"UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1",
		bookingID, status, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrBookingNotFound
	}

	return nil
}

// PostgreSQLCredentialStore implements the CredentialStore interface using PostgreSQL
type PostgreSQLCredentialStore struct {
	db *sql.DB
}

// Initialize creates the credentials table if it doesn't exist
func (s *PostgreSQLCredentialStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			service TEXT NOT NULL,
			ciphertext TEXT NOT NULL,
			iv TEXT NOT NULL,
			key_hint TEXT,
			valid BOOLEAN NOT NULL DEFAULT FALSE,
			last_tested_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (owner_id, service)
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create credentials table: %w", err)
	}

	return nil
}

// SaveCredential persists a credential
func (s *PostgreSQLCredentialStore) SaveCredential(credential models.Credential) error {
	_, err := s.db.Exec(`
		INSERT INTO credentials (
			id, owner_id, service, ciphertext, iv, key_hint, valid, last_tested_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (owner_id, service) DO UPDATE SET
			ciphertext = EXCLUDED.ciphertext,
			iv = EXCLUDED.iv,
			key_hint = EXCLUDED.key_hint,
			valid = EXCLUDED.valid,
			last_tested_at = EXCLUDED.last_tested_at,
			updated_at = EXCLUDED.updated_at`,
		credential.ID, credential.OwnerID, credential.Service, credential.Ciphertext, credential.IV,
		credential.KeyHint, credential.Valid, credential.LastTestedAt, credential.CreatedAt, credential.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

const credentialColumns = `id, owner_id, service, ciphertext, iv, key_hint, valid, last_tested_at, created_at, updated_at`

func scanCredential(row interface{ Scan(...interface{}) error }) (models.Credential, error) {
	var credential models.Credential
	var keyHint sql.NullString
	var lastTested sql.NullTime

	err := row.Scan(
		&credential.ID, &credential.OwnerID, &credential.Service, &credential.Ciphertext, &credential.IV,
		&keyHint, &credential.Valid, &lastTested, &credential.CreatedAt, &credential.UpdatedAt,
	)
	if err != nil {
		return models.Credential{}, err
	}

	credential.KeyHint = keyHint.String
	if lastTested.Valid {
		credential.LastTestedAt = &lastTested.Time
	}

	return credential, nil
}

// GetCredential retrieves a credential scoped to its owner
func (s *PostgreSQLCredentialStore) GetCredential(ownerID, credentialID string) (models.Credential, error) {
	row := s.db.QueryRow(
		"SELECT "+credentialColumns+" FROM credentials WHERE owner_id = $1 AND id = $2",
		ownerID, credentialID,
	)

	credential, err := scanCredential(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Credential{}, ErrCredentialNotFound
		}
		return models.Credential{}, fmt.Errorf("failed to get credential: %w", err)
	}

	return credential, nil
}

// GetCredentialByService retrieves the credential for an owner and service
func (s *PostgreSQLCredentialStore) GetCredentialByService(ownerID, service string) (models.Credential, error) {
	row := s.db.QueryRow(
		"SELECT "+credentialColumns+" FROM credentials WHERE owner_id = $1 AND service = $2",
		ownerID, service,
	)

	credential, err := scanCredential(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Credential{}, ErrCredentialNotFound
		}
		return models.Credential{}, fmt.Errorf("failed to get credential by service: %w", err)
	}

	return credential, nil
}

// ListCredentials returns all credentials for an owner
func (s *PostgreSQLCredentialStore) ListCredentials(ownerID string) ([]models.Credential, error) {
	rows, err := s.db.Query(
		"SELECT "+credentialColumns+" FROM credentials WHERE owner_id = $1 ORDER BY service",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	credentials := make([]models.Credential, 0)
	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		credentials = append(credentials, credential)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credential rows: %w", err)
	}

	return credentials, nil
}

// DeleteCredential removes a credential
func (s *PostgreSQLCredentialStore) DeleteCredential(ownerID, credentialID string) error {
	result, err := s.db.Exec(
		"DELETE FROM credentials WHERE owner_id = $1 AND id = $2",
		ownerID, credentialID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrCredentialNotFound
	}

	return nil
}

// PostgreSQLAccountStore implements the AccountStore interface using PostgreSQL
type PostgreSQLAccountStore struct {
	db *sql.DB
}

// Initialize creates the accounts table if it doesn't exist
func (s *PostgreSQLAccountStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			api_token TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS accounts_api_token_idx ON accounts (api_token);
	`)
	if err != nil {
		return fmt.Errorf("failed to create accounts table: %w", err)
	}

	return nil
}

// SaveAccount persists an account
func (s *PostgreSQLAccountStore) SaveAccount(account models.Account) error {
	_, err := s.db.Exec(`
		INSERT INTO accounts (id, username, password_hash, api_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			password_hash = EXCLUDED.password_hash,
			api_token = EXCLUDED.api_token,
			updated_at = EXCLUDED.updated_at`,
		account.ID, account.Username, account.PasswordHash, account.APIToken, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	return nil
}

func (s *PostgreSQLAccountStore) getAccount(where string, arg interface{}) (models.Account, error) {
	var account models.Account
	err := s.db.QueryRow(
		"SELECT id, username, password_hash, api_token, created_at, updated_at FROM accounts WHERE "+where,
		arg,
	).Scan(&account.ID, &account.Username, &account.PasswordHash, &account.APIToken, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Account{}, ErrAccountNotFound
		}
		return models.Account{}, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// GetAccount retrieves an account
func (s *PostgreSQLAccountStore) GetAccount(accountID string) (models.Account, error) {
	return s.getAccount("id = $1", accountID)
}

// GetAccountByUsername retrieves an account by username
func (s *PostgreSQLAccountStore) GetAccountByUsername(username string) (models.Account, error) {
	return s.getAccount("username = $1", username)
}

// GetAccountByToken retrieves an account by API token
func (s *PostgreSQLAccountStore) GetAccountByToken(token string) (models.Account, error) {
	return s.getAccount("api_token = $1", token)
}

// ListAccounts returns all accounts
func (s *PostgreSQLAccountStore) ListAccounts() ([]models.Account, error) {
	rows, err := s.db.Query("SELECT id, username, password_hash, api_token, created_at, updated_at FROM accounts")
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]models.Account, 0)
	for rows.Next() {
		var account models.Account
		if err := rows.Scan(&account.ID, &account.Username, &account.PasswordHash, &account.APIToken, &account.CreatedAt, &account.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}

	return accounts, nil
}

// DeleteAccount removes an account
func (s *PostgreSQLAccountStore) DeleteAccount(accountID string) error {
	result, err := s.db.Exec("DELETE FROM accounts WHERE id = $1", accountID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrAccountNotFound
	}

	return nil
}
