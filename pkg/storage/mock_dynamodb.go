package storage

import (
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

// MockDynamoDBAPI implements the subset of dynamodbiface.DynamoDBAPI the
// history store uses, for testing without a DynamoDB endpoint.
type MockDynamoDBAPI struct {
	dynamodbiface.DynamoDBAPI
	mu     sync.RWMutex
	tables map[string][]map[string]*dynamodb.AttributeValue
}

// NewMockDynamoDBAPI creates a new mock DynamoDB client
func NewMockDynamoDBAPI() *MockDynamoDBAPI {
	return &MockDynamoDBAPI{
		tables: make(map[string][]map[string]*dynamodb.AttributeValue),
	}
}

// DescribeTable reports whether a mock table exists
func (m *MockDynamoDBAPI) DescribeTable(input *dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name := aws.StringValue(input.TableName)
	if _, ok := m.tables[name]; !ok {
		return nil, awserr.New(dynamodb.ErrCodeResourceNotFoundException, "table not found", nil)
	}
	return &dynamodb.DescribeTableOutput{
		Table: &dynamodb.TableDescription{
			TableName:   aws.String(name),
			TableStatus: aws.String("ACTIVE"),
		},
	}, nil
}

// CreateTable creates a mock table
func (m *MockDynamoDBAPI) CreateTable(input *dynamodb.CreateTableInput) (*dynamodb.CreateTableOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := aws.StringValue(input.TableName)
	if _, ok := m.tables[name]; ok {
		return nil, fmt.Errorf("table already exists: %s", name)
	}
	m.tables[name] = nil
	return &dynamodb.CreateTableOutput{}, nil
}

// WaitUntilTableExists succeeds immediately for mock tables
func (m *MockDynamoDBAPI) WaitUntilTableExists(input *dynamodb.DescribeTableInput) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name := aws.StringValue(input.TableName)
	if _, ok := m.tables[name]; !ok {
		return fmt.Errorf("table does not exist: %s", name)
	}
	return nil
}

// PutItem stores an item in a mock table
func (m *MockDynamoDBAPI) PutItem(input *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := aws.StringValue(input.TableName)
	if _, ok := m.tables[name]; !ok {
		return nil, awserr.New(dynamodb.ErrCodeResourceNotFoundException, "table not found", nil)
	}
	m.tables[name] = append(m.tables[name], input.Item)
	return &dynamodb.PutItemOutput{}, nil
}

// Query returns items whose WorkflowID attribute equals the :wid value.
// Only the key condition shape the history store issues is supported.
func (m *MockDynamoDBAPI) Query(input *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name := aws.StringValue(input.TableName)
	items, ok := m.tables[name]
	if !ok {
		return nil, awserr.New(dynamodb.ErrCodeResourceNotFoundException, "table not found", nil)
	}

	want := input.ExpressionAttributeValues[":wid"]
	var matched []map[string]*dynamodb.AttributeValue
	for _, item := range items {
		got := item["WorkflowID"]
		if want != nil && got != nil && aws.StringValue(got.S) == aws.StringValue(want.S) {
			matched = append(matched, item)
		}
	}

	return &dynamodb.QueryOutput{
		Items: matched,
		Count: aws.Int64(int64(len(matched))),
	}, nil
}
