package store

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// Item is a raw DynamoDB item.
type Item map[string]types.AttributeValue

// DynamoAPI is the subset of the DynamoDB API the client depends on.
// *dynamodb.Client satisfies it.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client provides conditional single-item and atomic multi-item operations
// over DynamoDB tables.
type Client struct {
	api DynamoAPI
}

// New creates a new Client.
func New(api DynamoAPI) *Client {
	return &Client{api: api}
}

// Get retrieves an item by key, returning ErrNotFound if missing.
func (c *Client) Get(ctx context.Context, table string, key PK) (Item, error) {
	result, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       key,
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}
	return result.Item, nil
}

// Put writes an item unconditionally, replacing any existing item with the
// same key.
func (c *Client) Put(ctx context.Context, table string, item Item) error {
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	return err
}

// PutConditional writes an item guarded by a condition expression.
// Returns ErrConditionFailed if the condition does not hold.
func (c *Client) PutConditional(ctx context.Context, table string, item Item, condition string) error {
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(table),
		Item:                item,
		ConditionExpression: aws.String(condition),
	})
	return mapConditionError(err)
}

// DeleteConditional deletes an item guarded by a condition expression.
// An empty condition deletes unconditionally. Returns ErrConditionFailed if
// the condition does not hold.
func (c *Client) DeleteConditional(ctx context.Context, table string, key PK, condition string) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(table),
		Key:       key,
	}
	if condition != "" {
		input.ConditionExpression = aws.String(condition)
	}
	_, err := c.api.DeleteItem(ctx, input)
	return mapConditionError(err)
}

// Transact executes the given write items as a single all-or-nothing
// transaction. If any item's precondition fails, no item is applied and the
// returned error is a *TxConditionError identifying the losing item.
func (c *Client) Transact(ctx context.Context, items ...types.TransactWriteItem) error {
	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapTransactError(err)
}

// mapConditionError maps a ConditionalCheckFailedException to ErrConditionFailed.
func mapConditionError(err error) error {
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrConditionFailed
	}
	return err
}

// mapTransactError maps a TransactionCanceledException caused by a failed
// precondition to a *TxConditionError carrying the losing item's index.
func mapTransactError(err error) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return &TxConditionError{Index: i}
			}
		}
	}

	return err
}
