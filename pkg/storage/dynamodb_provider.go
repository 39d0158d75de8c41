package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/tcmartin/flowexec/pkg/models"
)

// DynamoHistoryStore implements HistoryStore using DynamoDB. Entries are
// keyed by workflow ID with start time as the range key, so a Query with
// ScanIndexForward=false yields newest-first directly.
type DynamoHistoryStore struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
}

// DynamoConfig contains configuration for the DynamoDB store.
type DynamoConfig struct {
	Region      string
	AccessKey   string
	SecretKey   string
	TablePrefix string
	Endpoint    string // optional, for local DynamoDB
}

// NewDynamoHistoryStore creates a DynamoDB-backed history store.
func NewDynamoHistoryStore(config DynamoConfig) (*DynamoHistoryStore, error) {
	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}
	if config.AccessKey != "" && config.SecretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, "")
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewDynamoHistoryStoreWithClient(dynamodb.New(sess), config.TablePrefix), nil
}

// NewDynamoHistoryStoreWithClient wraps a custom client, primarily for
// testing with mocks.
func NewDynamoHistoryStoreWithClient(client dynamodbiface.DynamoDBAPI, tablePrefix string) *DynamoHistoryStore {
	return &DynamoHistoryStore{
		client:    client,
		tableName: tablePrefix + "execution_history",
	}
}

// Initialize creates the history table if it doesn't exist
func (s *DynamoHistoryStore) Initialize() error {
	_, err := s.client.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err == nil {
		return nil
	}

	aerr, ok := err.(awserr.Error)
	if !ok || aerr.Code() != dynamodb.ErrCodeResourceNotFoundException {
		return fmt.Errorf("failed to check if history table exists: %w", err)
	}

	_, err = s.client.CreateTable(&dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String("WorkflowID"),
				AttributeType: aws.String("S"),
			},
			{
				AttributeName: aws.String("StartTime"),
				AttributeType: aws.String("N"),
			},
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String("WorkflowID"),
				KeyType:       aws.String("HASH"),
			},
			{
				AttributeName: aws.String("StartTime"),
				KeyType:       aws.String("RANGE"),
			},
		},
		BillingMode: aws.String("PAY_PER_REQUEST"),
	})
	if err != nil {
		return fmt.Errorf("failed to create history table: %w", err)
	}

	err = s.client.WaitUntilTableExists(&dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err != nil {
		return fmt.Errorf("failed to wait for history table creation: %w", err)
	}

	return nil
}

// Close cleans up resources
func (s *DynamoHistoryStore) Close() error {
	return nil
}

// SaveHistory appends a terminal run's summary
func (s *DynamoHistoryStore) SaveHistory(entry models.HistoryEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	_, err = s.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]*dynamodb.AttributeValue{
			"WorkflowID":  {S: aws.String(entry.WorkflowID)},
			"StartTime":   {N: aws.String(strconv.FormatInt(entry.StartTime.UnixNano(), 10))},
			"ExecutionID": {S: aws.String(entry.ExecutionID)},
			"Entry":       {S: aws.String(string(payload))},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to put history entry: %w", err)
	}
	return nil
}

// GetHistory returns entries for a workflow, newest first
func (s *DynamoHistoryStore) GetHistory(workflowID string, query HistoryQuery) ([]models.HistoryEntry, error) {
	result, err := s.client.Query(&dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("WorkflowID = :wid"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":wid": {S: aws.String(workflowID)},
		},
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	entries := make([]models.HistoryEntry, 0, len(result.Items))
	for _, item := range result.Items {
		raw := item["Entry"]
		if raw == nil || raw.S == nil {
			continue
		}
		var entry models.HistoryEntry
		if err := json.Unmarshal([]byte(*raw.S), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history entry: %w", err)
		}
		if matchesFilter(entry, query.Filter) {
			entries = append(entries, entry)
		}
	}

	// Mock clients in tests do not honor ScanIndexForward.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartTime.After(entries[j].StartTime)
	})

	return paginate(entries, query), nil
}
