package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/aws/aws-sdk-go/service/dynamodb/expression"

	"github.com/robbyautoki/attio-hub/pkg/models"
)

// DynamoDBProvider implements the StorageProvider interface using DynamoDB
type DynamoDBProvider struct {
	client          dynamodbiface.DynamoDBAPI
	workflowStore   *DynamoDBWorkflowStore
	executionStore  *DynamoDBExecutionStore
	bookingStore    *DynamoDBBookingStore
	credentialStore *DynamoDBCredentialStore
	accountStore    *DynamoDBAccountStore
	tablePrefix     string
}

// DynamoDBProviderConfig contains configuration for the DynamoDB provider
type DynamoDBProviderConfig struct {
	Region      string
	AccessKey   string
	SecretKey   string
	TablePrefix string
	Endpoint    string // Optional, for local DynamoDB
}

// NewDynamoDBProvider creates a new DynamoDB storage provider
func NewDynamoDBProvider(config DynamoDBProviderConfig) (*DynamoDBProvider, error) {
	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}

	if config.AccessKey != "" && config.SecretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"",
		)
	}

	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewDynamoDBProviderWithClient(dynamodb.New(sess), config.TablePrefix), nil
}

// NewDynamoDBProviderWithClient creates a new DynamoDB storage provider with a custom client.
// This is primarily used for testing with mock clients.
func NewDynamoDBProviderWithClient(client dynamodbiface.DynamoDBAPI, tablePrefix string) *DynamoDBProvider {
	provider := &DynamoDBProvider{
		client:      client,
		tablePrefix: tablePrefix,
	}

	provider.workflowStore = &DynamoDBWorkflowStore{client: client, tableName: tablePrefix + "workflows"}
	provider.executionStore = &DynamoDBExecutionStore{client: client, tableName: tablePrefix + "executions"}
	provider.bookingStore = &DynamoDBBookingStore{client: client, tableName: tablePrefix + "bookings"}
	provider.credentialStore = &DynamoDBCredentialStore{client: client, tableName: tablePrefix + "credentials"}
	provider.accountStore = &DynamoDBAccountStore{client: client, tableName: tablePrefix + "accounts"}

	return provider
}

// Initialize sets up the storage backend
func (p *DynamoDBProvider) Initialize() error {
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
func (p *DynamoDBProvider) Close() error {
	// DynamoDB client doesn't need explicit cleanup
	return nil
}

// GetWorkflowStore returns a store for workflow records
func (p *DynamoDBProvider) GetWorkflowStore() WorkflowStore {
	return p.workflowStore
}

// GetExecutionStore returns a store for execution logs
func (p *DynamoDBProvider) GetExecutionStore() ExecutionStore {
	return p.executionStore
}

// GetBookingStore returns a store for bookings
func (p *DynamoDBProvider) GetBookingStore() BookingStore {
	return p.bookingStore
}

// GetCredentialStore returns a store for encrypted credentials
func (p *DynamoDBProvider) GetCredentialStore() CredentialStore {
	return p.credentialStore
}

// GetAccountStore returns a store for account data
func (p *DynamoDBProvider) GetAccountStore() AccountStore {
	return p.accountStore
}

// ensureTable creates a table if it doesn't already exist and waits for it
func ensureTable(client dynamodbiface.DynamoDBAPI, input *dynamodb.CreateTableInput) error {
	_, err := client.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: input.TableName,
	})
	if err == nil {
		// Table exists
		return nil
	}

	if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeResourceNotFoundException {
		input.BillingMode = aws.String("PAY_PER_REQUEST")
		if _, err := client.CreateTable(input); err != nil {
			return fmt.Errorf("failed to create table %s: %w", aws.StringValue(input.TableName), err)
		}

		if err := client.WaitUntilTableExists(&dynamodb.DescribeTableInput{
			TableName: input.TableName,
		}); err != nil {
			return fmt.Errorf("failed to wait for table creation: %w", err)
		}

		return nil
	}

	return fmt.Errorf("failed to check if table exists: %w", err)
}

func stringAttr(name string) *dynamodb.AttributeDefinition {
	return &dynamodb.AttributeDefinition{
		AttributeName: aws.String(name),
		AttributeType: aws.String("S"),
	}
}

func numberAttr(name string) *dynamodb.AttributeDefinition {
	return &dynamodb.AttributeDefinition{
		AttributeName: aws.String(name),
		AttributeType: aws.String("N"),
	}
}

func hashKey(name string) *dynamodb.KeySchemaElement {
	return &dynamodb.KeySchemaElement{
		AttributeName: aws.String(name),
		KeyType:       aws.String("HASH"),
	}
}

func rangeKey(name string) *dynamodb.KeySchemaElement {
	return &dynamodb.KeySchemaElement{
		AttributeName: aws.String(name),
		KeyType:       aws.String("RANGE"),
	}
}

func allProjectionIndex(indexName string, keys ...*dynamodb.KeySchemaElement) *dynamodb.GlobalSecondaryIndex {
	return &dynamodb.GlobalSecondaryIndex{
		IndexName:  aws.String(indexName),
		KeySchema:  keys,
		Projection: &dynamodb.Projection{ProjectionType: aws.String("ALL")},
	}
}

// DynamoDBWorkflowStore implements the WorkflowStore interface using DynamoDB
type DynamoDBWorkflowStore struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
}

// dynamoDBWorkflowItem represents a workflow item in DynamoDB
type dynamoDBWorkflowItem struct {
	ID                   string `json:"ID"`
	OwnerID              string `json:"OwnerID"`
	Name                 string `json:"Name"`
	Kind                 string `json:"Kind"`
	TriggerKind          string `json:"TriggerKind"`
	TriggerConfig        string `json:"TriggerConfig"`
	WebhookPath          string `json:"WebhookPath,omitempty"`
	Enabled              bool   `json:"Enabled"`
	Status               string `json:"Status"`
	RequiredIntegrations string `json:"RequiredIntegrations,omitempty"`
	TotalExecutions      int64  `json:"TotalExecutions"`
	SuccessfulExecutions int64  `json:"SuccessfulExecutions"`
	FailedExecutions     int64  `json:"FailedExecutions"`
	LastExecutedAt       int64  `json:"LastExecutedAt,omitempty"`
	CreatedAt            int64  `json:"CreatedAt"`
	UpdatedAt            int64  `json:"UpdatedAt"`
}

func workflowToItem(workflow models.Workflow) (dynamoDBWorkflowItem, error) {
	trigger, err := json.Marshal(workflow.Trigger)
	if err != nil {
		return dynamoDBWorkflowItem{}, fmt.Errorf("failed to marshal trigger config: %w", err)
	}

	var integrations []byte
	if len(workflow.RequiredIntegrations) > 0 {
		integrations, err = json.Marshal(workflow.RequiredIntegrations)
		if err != nil {
			return dynamoDBWorkflowItem{}, fmt.Errorf("failed to marshal required integrations: %w", err)
		}
	}

	item := dynamoDBWorkflowItem{
		ID:                   workflow.ID,
		OwnerID:              workflow.OwnerID,
		Name:                 workflow.Name,
		Kind:                 workflow.Kind,
		TriggerKind:          workflow.TriggerKind,
		TriggerConfig:        string(trigger),
		WebhookPath:          workflow.Trigger.WebhookPath,
		Enabled:              workflow.Enabled,
		Status:               workflow.Status,
		RequiredIntegrations: string(integrations),
		TotalExecutions:      workflow.TotalExecutions,
		SuccessfulExecutions: workflow.SuccessfulExecutions,
		FailedExecutions:     workflow.FailedExecutions,
		CreatedAt:            workflow.CreatedAt.Unix(),
		UpdatedAt:            workflow.UpdatedAt.Unix(),
	}
	if workflow.LastExecutedAt != nil {
		item.LastExecutedAt = workflow.LastExecutedAt.Unix()
	}

	return item, nil
}

func itemToWorkflow(item dynamoDBWorkflowItem) (models.Workflow, error) {
	workflow := models.Workflow{
		ID:                   item.ID,
		OwnerID:              item.OwnerID,
		Name:                 item.Name,
		Kind:                 item.Kind,
		TriggerKind:          item.TriggerKind,
		Enabled:              item.Enabled,
		Status:               item.Status,
		TotalExecutions:      item.TotalExecutions,
		SuccessfulExecutions: item.SuccessfulExecutions,
		FailedExecutions:     item.FailedExecutions,
		CreatedAt:            time.Unix(item.CreatedAt, 0),
		UpdatedAt:            time.Unix(item.UpdatedAt, 0),
	}

	if err := json.Unmarshal([]byte(item.TriggerConfig), &workflow.Trigger); err != nil {
		return models.Workflow{}, fmt.Errorf("failed to unmarshal trigger config: %w", err)
	}
	if item.RequiredIntegrations != "" {
		if err := json.Unmarshal([]byte(item.RequiredIntegrations), &workflow.RequiredIntegrations); err != nil {
			return models.Workflow{}, fmt.Errorf("failed to unmarshal required integrations: %w", err)
		}
	}
	if item.LastExecutedAt != 0 {
		t := time.Unix(item.LastExecutedAt, 0)
		workflow.LastExecutedAt = &t
	}

	return workflow, nil
}

// Initialize creates the workflows table if it doesn't exist
func (s *DynamoDBWorkflowStore) Initialize() error {
	return ensureTable(s.client, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			stringAttr("ID"),
			stringAttr("OwnerID"),
			stringAttr("WebhookPath"),
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			hashKey("ID"),
		},
		GlobalSecondaryIndexes: []*dynamodb.GlobalSecondaryIndex{
			allProjectionIndex("OwnerIndex", hashKey("OwnerID")),
			allProjectionIndex("WebhookPathIndex", hashKey("WebhookPath")),
		},
	})
}

// SaveWorkflow persists a workflow
func (s *DynamoDBWorkflowStore) SaveWorkflow(workflow models.Workflow) error {
	item, err := workflowToItem(workflow)
	if err != nil {
		return err
	}

	av, err := dynamodbattribute.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow item: %w", err)
	}

	_, err = s.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

// GetWorkflow retrieves a workflow scoped to its owner
func (s *DynamoDBWorkflowStore) GetWorkflow(ownerID, workflowID string) (models.Workflow, error) {
	result, err := s.client.GetItem(&dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"ID": {S: aws.String(workflowID)},
		},
	})
	if err != nil {
		return models.Workflow{}, fmt.Errorf("failed to get workflow: %w", err)
	}
	if result.Item == nil {
		return models.Workflow{}, ErrWorkflowNotFound
	}

	var item dynamoDBWorkflowItem
	if err := dynamodbattribute.UnmarshalMap(result.Item, &item); err != nil {
		return models.Workflow{}, fmt.Errorf("failed to unmarshal workflow item: %w", err)
	}
	if item.OwnerID != ownerID {
		return models.Workflow{}, ErrWorkflowNotFound
	}

	return itemToWorkflow(item)
}

// GetWorkflowByWebhookPath retrieves a workflow by its webhook path token
func (s *DynamoDBWorkflowStore) GetWorkflowByWebhookPath(path string) (models.Workflow, error) {
	keyCond := expression.Key("WebhookPath").Equal(expression.Value(path))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return models.Workflow{}, fmt.Errorf("failed to build query expression: %w", err)
	}

	result, err := s.client.Query(&dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String("WebhookPathIndex"),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int64(1),
	})
	if err != nil {
		return models.Workflow{}, fmt.Errorf("failed to query workflow by webhook path: %w", err)
	}
	if len(result.Items) == 0 {
		return models.Workflow{}, ErrWorkflowNotFound
	}

	var item dynamoDBWorkflowItem
	if err := dynamodbattribute.UnmarshalMap(result.Items[0], &item); err != nil {
		return models.Workflow{}, fmt.Errorf("failed to unmarshal workflow item: %w", err)
	}

	return itemToWorkflow(item)
}

// ListWorkflows returns all workflows for an owner
func (s *DynamoDBWorkflowStore) ListWorkflows(ownerID string) ([]models.Workflow, error) {
	keyCond := expression.Key("OwnerID").Equal(expression.Value(ownerID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	result, err := s.client.Query(&dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String("OwnerIndex"),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	workflows := make([]models.Workflow, 0, len(result.Items))
	for _, raw := range result.Items {
		var item dynamoDBWorkflowItem
		if err := dynamodbattribute.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow item: %w", err)
		}
		workflow, err := itemToWorkflow(item)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

// DeleteWorkflow removes a workflow
func (s *DynamoDBWorkflowStore) DeleteWorkflow(ownerID, workflowID string) error {
	// Owner scoping is verified by the read
	if _, err := s.GetWorkflow(ownerID, workflowID); err != nil {
		return err
	}

	_, err := s.client.DeleteItem(&dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"ID": {S: aws.String(workflowID)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

// RecordExecution atomically increments the workflow counters for one terminal run.
// An ADD update expression avoids lost updates under concurrent runs.
func (s *DynamoDBWorkflowStore) RecordExecution(workflowID string, succeeded bool, at time.Time) error {
	successInc := "0"
	failedInc := "1"
	if succeeded {
		successInc = "1"
		failedInc = "0"
	}

	_, err := s.client.UpdateItem(&dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"ID": {S: aws.String(workflowID)},
		},
		UpdateExpression:    aws.String("ADD TotalExecutions :one, SuccessfulExecutions :s, FailedExecutions :f SET LastExecutedAt = :at, UpdatedAt = :at"),
		ConditionExpression: aws.String("attribute_exists(ID)"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":one": {N: aws.String("1")},
			":s":   {N: aws.String(successInc)},
			":f":   {N: aws.String(failedInc)},
			":at":  {N: aws.String(fmt.Sprintf("%d", at.Unix()))},
		},
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return ErrWorkflowNotFound
		}
		return fmt.Errorf("failed to record execution: %w", err)
	}

	return nil
}

// DynamoDBExecutionStore implements the ExecutionStore interface using DynamoDB
type DynamoDBExecutionStore struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
}

// dynamoDBExecutionItem represents an execution log item in DynamoDB
type dynamoDBExecutionItem struct {
	ID          string `json:"ID"`
	WorkflowID  string `json:"WorkflowID"`
	OwnerID     string `json:"OwnerID"`
	Status      string `json:"Status"`
	TriggerKind string `json:"TriggerKind"`
	Input       string `json:"Input,omitempty"`
	Output      string `json:"Output,omitempty"`
	Error       string `json:"Error,omitempty"`
	Steps       string `json:"Steps"`
	StartedAt   int64  `json:"StartedAt"`
	CompletedAt int64  `json:"CompletedAt,omitempty"`
	DurationMs  int64  `json:"DurationMs"`
}

// Initialize creates the executions table if it doesn't exist
func (s *DynamoDBExecutionStore) Initialize() error {
	return ensureTable(s.client, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			stringAttr("ID"),
			stringAttr("WorkflowID"),
			stringAttr("OwnerID"),
			numberAttr("StartedAt"),
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			hashKey("ID"),
		},
		GlobalSecondaryIndexes: []*dynamodb.GlobalSecondaryIndex{
			allProjectionIndex("WorkflowIndex", hashKey("WorkflowID"), rangeKey("StartedAt")),
			allProjectionIndex("OwnerIndex", hashKey("OwnerID"), rangeKey("StartedAt")),
		},
	})
}

// SaveExecution persists an execution log
func (s *DynamoDBExecutionStore) SaveExecution(execution models.ExecutionLog) error {
	steps, err := json.Marshal(execution.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal step logs: %w", err)
	}

	item := dynamoDBExecutionItem{
		ID:          execution.ID,
		WorkflowID:  execution.WorkflowID,
		OwnerID:     execution.OwnerID,
		Status:      execution.Status,
		TriggerKind: execution.TriggerKind,
		Error:       execution.Error,
		Steps:       string(steps),
		StartedAt:   execution.StartedAt.Unix(),
		DurationMs:  execution.DurationMs,
	}

	if execution.Input != nil {
		input, err := json.Marshal(execution.Input)
		if err != nil {
			return fmt.Errorf("failed to marshal execution input: %w", err)
		}
		item.Input = string(input)
	}
	if execution.Output != nil {
		output, err := json.Marshal(execution.Output)
		if err != nil {
			return fmt.Errorf("failed to marshal execution output: %w", err)
		}
		item.Output = string(output)
	}
	if !execution.CompletedAt.IsZero() {
		item.CompletedAt = execution.CompletedAt.Unix()
	}

	av, err := dynamodbattribute.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal execution item: %w", err)
	}

	_, err = s.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	return nil
}

func itemToExecution(item dynamoDBExecutionItem) (models.ExecutionLog, error) {
	execution := models.ExecutionLog{
		ID:          item.ID,
		WorkflowID:  item.WorkflowID,
		OwnerID:     item.OwnerID,
		Status:      item.Status,
		TriggerKind: item.TriggerKind,
		Error:       item.Error,
		StartedAt:   time.Unix(item.StartedAt, 0),
		DurationMs:  item.DurationMs,
	}

	if err := json.Unmarshal([]byte(item.Steps), &execution.Steps); err != nil {
		return models.ExecutionLog{}, fmt.Errorf("failed to unmarshal step logs: %w", err)
	}
	if item.Input != "" {
		if err := json.Unmarshal([]byte(item.Input), &execution.Input); err != nil {
			return models.ExecutionLog{}, fmt.Errorf("failed to unmarshal execution input: %w", err)
		}
	}
	if item.Output != "" {
		if err := json.Unmarshal([]byte(item.Output), &execution.Output); err != nil {
			return models.ExecutionLog{}, fmt.Errorf("failed to unmarshal execution output: %w", err)
		}
	}
	if item.CompletedAt != 0 {
		execution.CompletedAt = time.Unix(item.CompletedAt, 0)
	}

	return execution, nil
}

// GetExecution retrieves an execution log
func (s *DynamoDBExecutionStore) GetExecution(executionID string) (models.ExecutionLog, error) {
	result, err := s.client.GetItem(&dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"ID": {S: aws.String(executionID)},
		},
	})
	if err != nil {
		return models.ExecutionLog{}, fmt.Errorf("failed to get execution: %w", err)
	}
	if result.Item == nil {
		return models.ExecutionLog{}, ErrExecutionNotFound
	}

	var item dynamoDBExecutionItem
	if err := dynamodbattribute.UnmarshalMap(result.Item, &item); err != nil {
		return models.ExecutionLog{}, fmt.Errorf("failed to unmarshal execution item: %w", err)
	}

	return itemToExecution(item)
}

// ListExecutions returns all execution logs for a workflow
func (s *DynamoDBExecutionStore) ListExecutions(workflowID string) ([]models.ExecutionLog, error) {
	return s.queryIndex("WorkflowIndex", "WorkflowID", workflowID)
}

// ListExecutionsForOwner returns all execution logs for an owner
func (s *DynamoDBExecutionStore) ListExecutionsForOwner(ownerID string) ([]models.ExecutionLog, error) {
	return s.queryIndex("OwnerIndex", "OwnerID", ownerID)
}

func (s *DynamoDBExecutionStore) queryIndex(indexName, keyName, value string) ([]models.ExecutionLog, error) {
	keyCond := expression.Key(keyName).Equal(expression.Value(value))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	result, err := s.client.Query(&dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	executions := make([]models.ExecutionLog, 0, len(result.Items))
	for _, raw := range result.Items {
		var item dynamoDBExecutionItem
		if err := dynamodbattribute.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution item: %w", err)
		}
		execution, err := itemToExecution(item)
		if err != nil {
			return nil, err
		}
		executions = append(executions, execution)
	}

	return executions, nil
}

// DynamoDBBookingStore implements the BookingStore interface using DynamoDB
type DynamoDBBookingStore struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
}

// dynamoDBBookingItem represents a booking item in DynamoDB. Sent timestamps
// are omitted while unset so that attribute_not_exists can act as the claim
// condition.
type dynamoDBBookingItem struct {
	ID                 string `json:"ID"`
	OwnerID            string `json:"OwnerID"`
	WorkflowID         string `json:"WorkflowID,omitempty"`
	ContactEmail       string `json:"ContactEmail"`
	ContactName        string `json:"ContactName,omitempty"`
	ContactPhone       string `json:"ContactPhone,omitempty"`
	StartTime          int64  `json:"StartTime"`
	EndTime            int64  `json:"EndTime,omitempty"`
	MeetingLink        string `json:"MeetingLink,omitempty"`
	EventType          string `json:"EventType,omitempty"`
	Status             string `json:"Status"`
	ConfirmationSentAt int64  `json:"ConfirmationSentAt,omitempty"`
	Reminder24hSentAt  int64  `json:"Reminder24hSentAt,omitempty"`
	Reminder1hSentAt   int64  `json:"Reminder1hSentAt,omitempty"`
	CreatedAt          int64  `json:"CreatedAt"`
	UpdatedAt          int64  `json:"UpdatedAt"`
}

func dynamoReminderAttribute(kind models.ReminderKind) (string, error) {
	switch kind {
	case models.ReminderConfirmation:
		return "ConfirmationSentAt", nil
	case models.Reminder24h:
		return "Reminder24hSentAt", nil
	case models.Reminder1h:
		return "Reminder1hSentAt", nil
	}
	return "", fmt.Errorf("unknown reminder kind: %s", kind)
}

// Initialize creates the bookings table if it doesn't exist
func (s *DynamoDBBookingStore) Initialize() error {
	return ensureTable(s.client, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			stringAttr("ID"),
			stringAttr("OwnerID"),
			numberAttr("StartTime"),
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			hashKey("ID"),
		},
		GlobalSecondaryIndexes: []*dynamodb.GlobalSecondaryIndex{
			allProjectionIndex("OwnerIndex", hashKey("OwnerID"), rangeKey("StartTime")),
		},
	})
}

func bookingToItem(booking models.Booking) dynamoDBBookingItem {
	item := dynamoDBBookingItem{
		ID:           booking.ID,
		OwnerID:      booking.OwnerID,
		WorkflowID:   booking.WorkflowID,
		ContactEmail: booking.ContactEmail,
		ContactName:  booking.ContactName,
		ContactPhone: booking.ContactPhone,
		StartTime:    booking.StartTime.Unix(),
		MeetingLink:  booking.MeetingLink,
		EventType:    booking.EventType,
		Status:       booking.Status,
		CreatedAt:    booking.CreatedAt.Unix(),
		UpdatedAt:    booking.UpdatedAt.Unix(),
	}
	if !booking.EndTime.IsZero() {
		item.EndTime = booking.EndTime.Unix()
	}
	if booking.ConfirmationSentAt != nil {
		item.ConfirmationSentAt = booking.ConfirmationSentAt.Unix()
	}
	if booking.Reminder24hSentAt != nil {
		item.Reminder24hSentAt = booking.Reminder24hSentAt.Unix()
	}
	if booking.Reminder1hSentAt != nil {
		item.Reminder1hSentAt = booking.Reminder1hSentAt.Unix()
	}

	return item
}

func itemToBooking(item dynamoDBBookingItem) models.Booking {
	booking := models.Booking{
		ID:           item.ID,
		OwnerID:      item.OwnerID,
		WorkflowID:   item.WorkflowID,
		ContactEmail: item.ContactEmail,
		ContactName:  item.ContactName,
		ContactPhone: item.ContactPhone,
		StartTime:    time.Unix(item.StartTime, 0),
		MeetingLink:  item.MeetingLink,
		EventType:    item.EventType,
		Status:       item.Status,
		CreatedAt:    time.Unix(item.CreatedAt, 0),
		UpdatedAt:    time.Unix(item.UpdatedAt, 0),
	}
	if item.EndTime != 0 {
		booking.EndTime = time.Unix(item.EndTime, 0)
	}
	if item.ConfirmationSentAt != 0 {
		t := time.Unix(item.ConfirmationSentAt, 0)
		booking.ConfirmationSentAt = &t
	}
	if item.Reminder24hSentAt != 0 {
		t := time.Unix(item.Reminder24hSentAt, 0)
		booking.Reminder24hSentAt = &t
	}
	if item.Reminder1hSentAt != 0 {
		t := time.Unix(item.Reminder1hSentAt, 0)
		booking.Reminder1hSentAt = &t
	}

	return booking
}

// SaveBooking persists a booking
func (s *DynamoDBBookingStore) SaveBooking(booking models.Booking) error {
	av, err := dynamodbattribute.MarshalMap(bookingToItem(booking))
	if err != nil {
		return fmt.Errorf("failed to marshal booking item: %w", err)
	}

	_, err = s.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}

	return nil
}

// GetBooking retrieves a booking
func (s *DynamoDBBookingStore) GetBooking(bookingID string) (models.Booking, error) {
	result, err := s.client.GetItem(&dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"ID": {S: aws.String(bookingID)},
		},
	})
	if err != nil {
		return models.Booking{}, fmt.Errorf("failed to get booking: %w", err)
	}
	if result.Item == nil {
		return models.Booking{}, ErrBookingNotFound
	}

	var item dynamoDBBookingItem
	if err := dynamodbattribute.UnmarshalMap(result.Item, &item); err != nil {
		return models.Booking{}, fmt.Errorf("failed to unmarshal booking item: %w", err)
	}

	return itemToBooking(item), nil
}

// ListBookings returns all bookings for an owner
func (s *DynamoDBBookingStore) ListBookings(ownerID string) ([]models.Booking, error) {
	keyCond := expression.Key("OwnerID").Equal(expression.Value(ownerID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	result, err := s.client.Query(&dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String("OwnerIndex"),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}

	return unmarshalBookings(result.Items)
}

// ListDueReminders returns confirmed bookings in the window with an unset sent timestamp
func (s *DynamoDBBookingStore) ListDueReminders(kind models.ReminderKind, windowStart, windowEnd time.Time) ([]models.Booking, error) {
	attribute, err := dynamoReminderAttribute(kind)
	if err != nil {
		return nil, err
	}

	filter := expression.Name("Status").Equal(expression.Value(models.BookingStatusConfirmed)).
		And(expression.Name("StartTime").GreaterThanEqual(expression.Value(windowStart.Unix()))).
		And(expression.Name("StartTime").LessThan(expression.Value(windowEnd.Unix()))).
		And(expression.AttributeNotExists(expression.Name(attribute)))

	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build scan expression: %w", err)
	}

	result, err := s.client.Scan(&dynamodb.ScanInput{
		TableName:                 aws.String(s.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan due reminders: %w", err)
	}

	return unmarshalBookings(result.Items)
}

func unmarshalBookings(raw []map[string]*dynamodb.AttributeValue) ([]models.Booking, error) {
	bookings := make([]models.Booking, 0, len(raw))
	for _, r := range raw {
		var item dynamoDBBookingItem
		if err := dynamodbattribute.UnmarshalMap(r, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal booking item: %w", err)
		}
		bookings = append(bookings, itemToBooking(item))
	}

	return bookings, nil
}

// MarkReminderSent sets the sent timestamp for the kind only if currently null.
// The attribute_not_exists condition makes the update a claim: concurrent
// invocations for the same booking see at most one true result.
func (s *DynamoDBBookingStore) MarkReminderSent(bookingID string, kind models.ReminderKind, at time.Time) (bool, error) {
	attribute, err := dynamoReminderAttribute(kind)
	if err != nil {
		return false, err
	}

	_, err = s.client.UpdateItem(&dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"ID": {S: aws.String(bookingID)},
		},
		UpdateExpression:    aws.String("SET #sent = :at, UpdatedAt = :at"),
		ConditionExpression: aws.String("attribute_exists(ID) AND attribute_not_exists(#sent)"),
		ExpressionAttributeNames: map[string]*string{
			"#sent": aws.String(attribute),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":at": {N: aws.String(fmt.Sprintf("%d", at.Unix()))},
		},
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			// The condition fails both when the reminder was already claimed
			// and when the booking is missing entirely; distinguish them so
			// callers see the same contract as the other backends.
			if _, getErr := s.GetBooking(bookingID); getErr != nil {
				return false, getErr
			}
			return false, nil
		}
		return false, fmt.Errorf("failed to mark reminder sent: %w", err)
	}

	return true, nil
}

// UpdateBookingStatus transitions a booking's status
func (s *DynamoDBBookingStore) UpdateBookingStatus(bookingID string, status string) error {
	_, err := s.client.UpdateItem(&dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"ID": {S: aws.String(bookingID)},
		},
		UpdateExpression:    aws.String("SET #status = :status, UpdatedAt = :at"),
		ConditionExpression: aws.String("attribute_exists(ID)"),
		ExpressionAttributeNames: map[string]*string{
			"#status": aws.String("Status"),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":status": {S: aws.String(status)},
			":at":     {N: aws.String(fmt.Sprintf("%d", time.Now().Unix()))},
		},
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return ErrBookingNotFound
		}
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	return nil
}

// DynamoDBCredentialStore implements the CredentialStore interface using DynamoDB
type DynamoDBCredentialStore struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
}

// dynamoDBCredentialItem represents a credential item in DynamoDB
type dynamoDBCredentialItem struct {
	OwnerID      string `json:"OwnerID"`
	Service      string `json:"Service"`
	ID           string `json:"ID"`
	Ciphertext   string `json:"Ciphertext"`
	IV           string `json:"IV"`
	KeyHint      string `json:"KeyHint,omitempty"`
	Valid        bool   `json:"Valid"`
	LastTestedAt int64  `json:"LastTestedAt,omitempty"`
	CreatedAt    int64  `json:"CreatedAt"`
	UpdatedAt    int64  `json:"UpdatedAt"`
}

// Initialize creates the credentials table if it doesn't exist
func (s *DynamoDBCredentialStore) Initialize() error {
	return ensureTable(s.client, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			stringAttr("OwnerID"),
			stringAttr("Service"),
			stringAttr("ID"),
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			hashKey("OwnerID"),
			rangeKey("Service"),
		},
		GlobalSecondaryIndexes: []*dynamodb.GlobalSecondaryIndex{
			allProjectionIndex("IDIndex", hashKey("ID")),
		},
	})
}

func credentialToItem(credential models.Credential) dynamoDBCredentialItem {
	item := dynamoDBCredentialItem{
		OwnerID:    credential.OwnerID,
		Service:    credential.Service,
		ID:         credential.ID,
		Ciphertext: credential.Ciphertext,
		IV:         credential.IV,
		KeyHint:    credential.KeyHint,
		Valid:      credential.Valid,
		CreatedAt:  credential.CreatedAt.Unix(),
		UpdatedAt:  credential.UpdatedAt.Unix(),
	}
	if credential.LastTestedAt != nil {
		item.LastTestedAt = credential.LastTestedAt.Unix()
	}

	return item
}

func itemToCredential(item dynamoDBCredentialItem) models.Credential {
	credential := models.Credential{
		ID:         item.ID,
		OwnerID:    item.OwnerID,
		Service:    item.Service,
		Ciphertext: item.Ciphertext,
		IV:         item.IV,
		KeyHint:    item.KeyHint,
		Valid:      item.Valid,
		CreatedAt:  time.Unix(item.CreatedAt, 0),
		UpdatedAt:  time.Unix(item.UpdatedAt, 0),
	}
	if item.LastTestedAt != 0 {
		t := time.Unix(item.LastTestedAt, 0)
		credential.LastTestedAt = &t
	}

	return credential
}

// SaveCredential persists a credential
func (s *DynamoDBCredentialStore) SaveCredential(credential models.Credential) error {
	av, err := dynamodbattribute.MarshalMap(credentialToItem(credential))
	if err != nil {
		return fmt.Errorf("failed to marshal credential item: %w", err)
	}

	_, err = s.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

// GetCredential retrieves a credential scoped to its owner
func (s *DynamoDBCredentialStore) GetCredential(ownerID, credentialID string) (models.Credential, error) {
	keyCond := expression.Key("ID").Equal(expression.Value(credentialID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return models.Credential{}, fmt.Errorf("failed to build query expression: %w", err)
	}

	result, err := s.client.Query(&dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String("IDIndex"),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int64(1),
	})
	if err != nil {
		return models.Credential{}, fmt.Errorf("failed to query credential: %w", err)
	}
	if len(result.Items) == 0 {
		return models.Credential{}, ErrCredentialNotFound
	}

	var item dynamoDBCredentialItem
	if err := dynamodbattribute.UnmarshalMap(result.Items[0], &item); err != nil {
		return models.Credential{}, fmt.Errorf("failed to unmarshal credential item: %w", err)
	}
	if item.OwnerID != ownerID {
		return models.Credential{}, ErrCredentialNotFound
	}

	return itemToCredential(item), nil
}

// GetCredentialByService retrieves the credential for an owner and service
func (s *DynamoDBCredentialStore) GetCredentialByService(ownerID, service string) (models.Credential, error) {
	result, err := s.client.GetItem(&dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"OwnerID": {S: aws.String(ownerID)},
			"Service": {S: aws.String(service)},
		},
	})
	if err != nil {
		return models.Credential{}, fmt.Errorf("failed to get credential by service: %w", err)
	}
	if result.Item == nil {
		return models.Credential{}, ErrCredentialNotFound
	}

	var item dynamoDBCredentialItem
	if err := dynamodbattribute.UnmarshalMap(result.Item, &item); err != nil {
		return models.Credential{}, fmt.Errorf("failed to unmarshal credential item: %w", err)
	}

	return itemToCredential(item), nil
}

// ListCredentials returns all credentials for an owner
func (s *DynamoDBCredentialStore) ListCredentials(ownerID string) ([]models.Credential, error) {
	keyCond := expression.Key("OwnerID").Equal(expression.Value(ownerID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	result, err := s.client.Query(&dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}

	credentials := make([]models.Credential, 0, len(result.Items))
	for _, raw := range result.Items {
		var item dynamoDBCredentialItem
		if err := dynamodbattribute.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal credential item: %w", err)
		}
		credentials = append(credentials, itemToCredential(item))
	}

	return credentials, nil
}

// DeleteCredential removes a credential
func (s *DynamoDBCredentialStore) DeleteCredential(ownerID, credentialID string) error {
	credential, err := s.GetCredential(ownerID, credentialID)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteItem(&dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"OwnerID": {S: aws.String(credential.OwnerID)},
			"Service": {S: aws.String(credential.Service)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	return nil
}

// DynamoDBAccountStore implements the AccountStore interface using DynamoDB
type DynamoDBAccountStore struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
}

// dynamoDBAccountItem represents an account item in DynamoDB
type dynamoDBAccountItem struct {
	ID           string `json:"ID"`
	Username     string `json:"Username"`
	PasswordHash string `json:"PasswordHash"`
	APIToken     string `json:"APIToken"`
	CreatedAt    int64  `json:"CreatedAt"`
	UpdatedAt    int64  `json:"UpdatedAt"`
}

// Initialize creates the accounts table if it doesn't exist
func (s *DynamoDBAccountStore) Initialize() error {
	return ensureTable(s.client, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			stringAttr("ID"),
			stringAttr("Username"),
			stringAttr("APIToken"),
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			hashKey("ID"),
		},
		GlobalSecondaryIndexes: []*dynamodb.GlobalSecondaryIndex{
			allProjectionIndex("UsernameIndex", hashKey("Username")),
			allProjectionIndex("TokenIndex", hashKey("APIToken")),
		},
	})
}

// SaveAccount persists an account
func (s *DynamoDBAccountStore) SaveAccount(account models.Account) error {
	item := dynamoDBAccountItem{
		ID:           account.ID,
		Username:     account.Username,
		PasswordHash: account.PasswordHash,
		APIToken:     account.APIToken,
		CreatedAt:    account.CreatedAt.Unix(),
		UpdatedAt:    account.UpdatedAt.Unix(),
	}

	av, err := dynamodbattribute.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal account item: %w", err)
	}

	_, err = s.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	return nil
}

func itemToAccount(item dynamoDBAccountItem) models.Account {
	return models.Account{
		ID:           item.ID,
		Username:     item.Username,
		PasswordHash: item.PasswordHash,
		APIToken:     item.APIToken,
		CreatedAt:    time.Unix(item.CreatedAt, 0),
		UpdatedAt:    time.Unix(item.UpdatedAt, 0),
	}
}

// GetAccount retrieves an account
func (s *DynamoDBAccountStore) GetAccount(accountID string) (models.Account, error) {
	result, err := s.client.GetItem(&dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"ID": {S: aws.String(accountID)},
		},
	})
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to get account: %w", err)
	}
	if result.Item == nil {
		return models.Account{}, ErrAccountNotFound
	}

	var item dynamoDBAccountItem
	if err := dynamodbattribute.UnmarshalMap(result.Item, &item); err != nil {
		return models.Account{}, fmt.Errorf("failed to unmarshal account item: %w", err)
	}

	return itemToAccount(item), nil
}

func (s *DynamoDBAccountStore) queryIndex(indexName, keyName, value string) (models.Account, error) {
	keyCond := expression.Key(keyName).Equal(expression.Value(value))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to build query expression: %w", err)
	}

	result, err := s.client.Query(&dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int64(1),
	})
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to query account: %w", err)
	}
	if len(result.Items) == 0 {
		return models.Account{}, ErrAccountNotFound
	}

	var item dynamoDBAccountItem
	if err := dynamodbattribute.UnmarshalMap(result.Items[0], &item); err != nil {
		return models.Account{}, fmt.Errorf("failed to unmarshal account item: %w", err)
	}

	return itemToAccount(item), nil
}

// GetAccountByUsername retrieves an account by username
func (s *DynamoDBAccountStore) GetAccountByUsername(username string) (models.Account, error) {
	return s.queryIndex("UsernameIndex", "Username", username)
}

// GetAccountByToken retrieves an account by API token
func (s *DynamoDBAccountStore) GetAccountByToken(token string) (models.Account, error) {
	return s.queryIndex("TokenIndex", "APIToken", token)
}

// ListAccounts returns all accounts
func (s *DynamoDBAccountStore) ListAccounts() ([]models.Account, error) {
	result, err := s.client.Scan(&dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan accounts: %w", err)
	}

	accounts := make([]models.Account, 0, len(result.Items))
	for _, raw := range result.Items {
		var item dynamoDBAccountItem
		if err := dynamodbattribute.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal account item: %w", err)
		}
		accounts = append(accounts, itemToAccount(item))
	}

	return accounts, nil
}

// DeleteAccount removes an account
func (s *DynamoDBAccountStore) DeleteAccount(accountID string) error {
	_, err := s.client.DeleteItem(&dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"ID": {S: aws.String(accountID)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	return nil
}
