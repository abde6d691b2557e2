package storage

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/robbyautoki/attio-hub/pkg/models"
)

// Errors returned by storage providers
var (
	ErrWorkflowNotFound   = errors.New("workflow not found")
	ErrExecutionNotFound  = errors.New("execution not found")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrCredentialNotFound = errors.New("credential not found")
	ErrAccountNotFound    = errors.New("account not found")
)

// MemoryProvider implements the StorageProvider interface using in-memory storage
type MemoryProvider struct {
	workflowStore   *MemoryWorkflowStore
	executionStore  *MemoryExecutionStore
	bookingStore    *MemoryBookingStore
	credentialStore *MemoryCredentialStore
	accountStore    *MemoryAccountStore
}

// NewMemoryProvider creates a new in-memory storage provider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		workflowStore:   NewMemoryWorkflowStore(),
		executionStore:  NewMemoryExecutionStore(),
		bookingStore:    NewMemoryBookingStore(),
		credentialStore: NewMemoryCredentialStore(),
		accountStore:    NewMemoryAccountStore(),
	}
}

// Initialize sets up the storage backend
func (p *MemoryProvider) Initialize() error {
	// Nothing to initialize for in-memory storage
	return nil
}

// Close cleans up resources
func (p *MemoryProvider) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

// GetWorkflowStore returns a store for workflow records
func (p *MemoryProvider) GetWorkflowStore() WorkflowStore {
	return p.workflowStore
}

// GetExecutionStore returns a store for execution logs
func (p *MemoryProvider) GetExecutionStore() ExecutionStore {
	return p.executionStore
}

// GetBookingStore returns a store for bookings
func (p *MemoryProvider) GetBookingStore() BookingStore {
	return p.bookingStore
}

// GetCredentialStore returns a store for encrypted credentials
func (p *MemoryProvider) GetCredentialStore() CredentialStore {
	return p.credentialStore
}

// GetAccountStore returns a store for account data
func (p *MemoryProvider) GetAccountStore() AccountStore {
	return p.accountStore
}

// MemoryWorkflowStore implements the WorkflowStore interface using in-memory storage
type MemoryWorkflowStore struct {
	workflows map[string]models.Workflow
	byPath    map[string]string
	mu        sync.RWMutex
}

// NewMemoryWorkflowStore creates a new in-memory workflow store
func NewMemoryWorkflowStore() *MemoryWorkflowStore {
	return &MemoryWorkflowStore{
		workflows: make(map[string]models.Workflow),
		byPath:    make(map[string]string),
	}
}

// SaveWorkflow persists a workflow
func (s *MemoryWorkflowStore) SaveWorkflow(workflow models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Drop a stale path index entry when the path changed
	if existing, ok := s.workflows[workflow.ID]; ok {
		if existing.Trigger.WebhookPath != "" && existing.Trigger.WebhookPath != workflow.Trigger.WebhookPath {
			delete(s.byPath, existing.Trigger.WebhookPath)
		}
	}

	s.workflows[workflow.ID] = workflow
	if workflow.Trigger.WebhookPath != "" {
		s.byPath[workflow.Trigger.WebhookPath] = workflow.ID
	}

	return nil
}

// GetWorkflow retrieves a workflow scoped to its owner
func (s *MemoryWorkflowStore) GetWorkflow(ownerID, workflowID string) (models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workflow, ok := s.workflows[workflowID]
	if !ok || workflow.OwnerID != ownerID {
		return models.Workflow{}, ErrWorkflowNotFound
	}

	return workflow, nil
}

// GetWorkflowByWebhookPath retrieves a workflow by its webhook path token
func (s *MemoryWorkflowStore) GetWorkflowByWebhookPath(path string) (models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workflowID, ok := s.byPath[path]
	if !ok {
		return models.Workflow{}, ErrWorkflowNotFound
	}

	workflow, ok := s.workflows[workflowID]
	if !ok {
		return models.Workflow{}, ErrWorkflowNotFound
	}

	return workflow, nil
}

// ListWorkflows returns all workflows for an owner
func (s *MemoryWorkflowStore) ListWorkflows(ownerID string) ([]models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workflows := make([]models.Workflow, 0)
	for _, workflow := range s.workflows {
		if workflow.OwnerID == ownerID {
			workflows = append(workflows, workflow)
		}
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// DeleteWorkflow removes a workflow
func (s *MemoryWorkflowStore) DeleteWorkflow(ownerID, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	workflow, ok := s.workflows[workflowID]
	if !ok || workflow.OwnerID != ownerID {
		return ErrWorkflowNotFound
	}

	delete(s.workflows, workflowID)
	if workflow.Trigger.WebhookPath != "" {
		delete(s.byPath, workflow.Trigger.WebhookPath)
	}

	return nil
}

// RecordExecution atomically increments the workflow counters for one terminal run
func (s *MemoryWorkflowStore) RecordExecution(workflowID string, succeeded bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	workflow, ok := s.workflows[workflowID]
	if !ok {
		return ErrWorkflowNotFound
	}

	workflow.TotalExecutions++
	if succeeded {
		workflow.SuccessfulExecutions++
	} else {
		workflow.FailedExecutions++
	}
	workflow.LastExecutedAt = &at
	workflow.UpdatedAt = at

	s.workflows[workflowID] = workflow

	return nil
}

// MemoryExecutionStore implements the ExecutionStore interface using in-memory storage
type MemoryExecutionStore struct {
	executions map[string]models.ExecutionLog
	mu         sync.RWMutex
}

// NewMemoryExecutionStore creates a new in-memory execution store
func NewMemoryExecutionStore() *MemoryExecutionStore {
	return &MemoryExecutionStore{
		executions: make(map[string]models.ExecutionLog),
	}
}

// SaveExecution persists an execution log
func (s *MemoryExecutionStore) SaveExecution(execution models.ExecutionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.executions[execution.ID] = execution

	return nil
}

// GetExecution retrieves an execution log
func (s *MemoryExecutionStore) GetExecution(executionID string) (models.ExecutionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	execution, ok := s.executions[executionID]
	if !ok {
		return models.ExecutionLog{}, ErrExecutionNotFound
	}

	return execution, nil
}

// ListExecutions returns all execution logs for a workflow
func (s *MemoryExecutionStore) ListExecutions(workflowID string) ([]models.ExecutionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	executions := make([]models.ExecutionLog, 0)
	for _, execution := range s.executions {
		if execution.WorkflowID == workflowID {
			executions = append(executions, execution)
		}
	}

	sortExecutions(executions)

	return executions, nil
}

// ListExecutionsForOwner returns all execution logs for an owner
func (s *MemoryExecutionStore) ListExecutionsForOwner(ownerID string) ([]models.ExecutionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	executions := make([]models.ExecutionLog, 0)
	for _, execution := range s.executions {
		if execution.OwnerID == ownerID {
			executions = append(executions, execution)
		}
	}

	sortExecutions(executions)

	return executions, nil
}

func sortExecutions(executions []models.ExecutionLog) {
	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})
}

// MemoryBookingStore implements the BookingStore interface using in-memory storage
type MemoryBookingStore struct {
	bookings map[string]models.Booking
	mu       sync.RWMutex
}

// NewMemoryBookingStore creates a new in-memory booking store
func NewMemoryBookingStore() *MemoryBookingStore {
	return &MemoryBookingStore{
		bookings: make(map[string]models.Booking),
	}
}

// SaveBooking persists a booking
func (s *MemoryBookingStore) SaveBooking(booking models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bookings[booking.ID] = booking

	return nil
}

// GetBooking retrieves a booking
func (s *MemoryBookingStore) GetBooking(bookingID string) (models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	booking, ok := s.bookings[bookingID]
	if !ok {
		return models.Booking{}, ErrBookingNotFound
	}

	return booking, nil
}

// ListBookings returns all bookings for an owner
func (s *MemoryBookingStore) ListBookings(ownerID string) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bookings := make([]models.Booking, 0)
	for _, booking := range s.bookings {
		if booking.OwnerID == ownerID {
			bookings = append(bookings, booking)
		}
	}

	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].StartTime.Before(bookings[j].StartTime)
	})

	return bookings, nil
}

// ListDueReminders returns confirmed bookings in the window with an unset sent timestamp
func (s *MemoryBookingStore) ListDueReminders(kind models.ReminderKind, windowStart, windowEnd time.Time) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	due := make([]models.Booking, 0)
	for _, booking := range s.bookings {
		if booking.Status != models.BookingStatusConfirmed {
			continue
		}
		if booking.StartTime.Before(windowStart) || !booking.StartTime.Before(windowEnd) {
			continue
		}
		if booking.ReminderSentAt(kind) != nil {
			continue
		}
		due = append(due, booking)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].StartTime.Before(due[j].StartTime)
	})

	return due, nil
}

// MarkReminderSent sets the sent timestamp for the kind only if currently null
func (s *MemoryBookingStore) MarkReminderSent(bookingID string, kind models.ReminderKind, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[bookingID]
	if !ok {
		return false, ErrBookingNotFound
	}

	if booking.ReminderSentAt(kind) != nil {
		return false, nil
	}

	stamp := at
	switch kind {
	case models.ReminderConfirmation:
		booking.ConfirmationSentAt = &stamp
	case models.Reminder24h:
		booking.Reminder24hSentAt = &stamp
	case models.Reminder1h:
		booking.Reminder1hSentAt = &stamp
	}
	booking.UpdatedAt = at

	s.bookings[bookingID] = booking

	return true, nil
}

// UpdateBookingStatus transitions a booking's status
func (s *MemoryBookingStore) UpdateBookingStatus(bookingID string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[bookingID]
	if !ok {
		return ErrBookingNotFound
	}

	booking.Status = status
	booking.UpdatedAt = time.Now()
	s.bookings[bookingID] = booking

	return nil
}

// MemoryCredentialStore implements the CredentialStore interface using in-memory storage
type MemoryCredentialStore struct {
	credentials map[string]models.Credential
	mu          sync.RWMutex
}

// NewMemoryCredentialStore creates a new in-memory credential store
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		credentials: make(map[string]models.Credential),
	}
}

// SaveCredential persists a credential
func (s *MemoryCredentialStore) SaveCredential(credential models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credentials[credential.ID] = credential

	return nil
}

// GetCredential retrieves a credential scoped to its owner
func (s *MemoryCredentialStore) GetCredential(ownerID, credentialID string) (models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	credential, ok := s.credentials[credentialID]
	if !ok || credential.OwnerID != ownerID {
		return models.Credential{}, ErrCredentialNotFound
	}

	return credential, nil
}

// GetCredentialByService retrieves the credential for an owner and service
func (s *MemoryCredentialStore) GetCredentialByService(ownerID, service string) (models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, credential := range s.credentials {
		if credential.OwnerID == ownerID && credential.Service == service {
			return credential, nil
		}
	}

	return models.Credential{}, ErrCredentialNotFound
}

// ListCredentials returns all credentials for an owner
func (s *MemoryCredentialStore) ListCredentials(ownerID string) ([]models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	credentials := make([]models.Credential, 0)
	for _, credential := range s.credentials {
		if credential.OwnerID == ownerID {
			credentials = append(credentials, credential)
		}
	}

	sort.Slice(credentials, func(i, j int) bool {
		return credentials[i].Service < credentials[j].Service
	})

	return credentials, nil
}

// DeleteCredential removes a credential
func (s *MemoryCredentialStore) DeleteCredential(ownerID, credentialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credential, ok := s.credentials[credentialID]
	if !ok || credential.OwnerID != ownerID {
		return ErrCredentialNotFound
	}

	delete(s.credentials, credentialID)

	return nil
}

// MemoryAccountStore implements the AccountStore interface using in-memory storage
type MemoryAccountStore struct {
	accounts        map[string]models.Account
	accountsByName  map[string]string
	accountsByToken map[string]string
	mu              sync.RWMutex
}

// NewMemoryAccountStore creates a new in-memory account store
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		accounts:        make(map[string]models.Account),
		accountsByName:  make(map[string]string),
		accountsByToken: make(map[string]string),
	}
}

// SaveAccount persists an account
func (s *MemoryAccountStore) SaveAccount(account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[account.ID] = account
	s.accountsByName[account.Username] = account.ID
	s.accountsByToken[account.APIToken] = account.ID

	return nil
}

// GetAccount retrieves an account
func (s *MemoryAccountStore) GetAccount(accountID string) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return models.Account{}, ErrAccountNotFound
	}

	return account, nil
}

// GetAccountByUsername retrieves an account by username
func (s *MemoryAccountStore) GetAccountByUsername(username string) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accountID, ok := s.accountsByName[username]
	if !ok {
		return models.Account{}, ErrAccountNotFound
	}

	account, ok := s.accounts[accountID]
	if !ok {
		return models.Account{}, ErrAccountNotFound
	}

	return account, nil
}

// GetAccountByToken retrieves an account by API token
func (s *MemoryAccountStore) GetAccountByToken(token string) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accountID, ok := s.accountsByToken[token]
	if !ok {
		return models.Account{}, ErrAccountNotFound
	}

	account, ok := s.accounts[accountID]
	if !ok {
		return models.Account{}, ErrAccountNotFound
	}

	return account, nil
}

// ListAccounts returns all accounts
func (s *MemoryAccountStore) ListAccounts() ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]models.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		accounts = append(accounts, account)
	}

	return accounts, nil
}

// DeleteAccount removes an account
func (s *MemoryAccountStore) DeleteAccount(accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}

	delete(s.accounts, accountID)
	delete(s.accountsByName, account.Username)
	delete(s.accountsByToken, account.APIToken)

	return nil
}
