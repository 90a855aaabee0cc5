package store

import (
	"context"
	"iter"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// QueryInput defines parameters for querying a table or secondary index.
type QueryInput struct {
	// Table is the DynamoDB table to query.
	Table string

	// Index is the optional GSI/LSI to query.
	Index string

	// KeyCondition is the DynamoDB key condition expression.
	KeyCondition string

	// Filter is an optional filter expression.
	Filter string

	// Names maps expression attribute name placeholders.
	Names map[string]string

	// Values maps expression attribute value placeholders.
	Values map[string]types.AttributeValue

	// Limit is the maximum number of items to return (0 = no limit).
	Limit int32

	// Descending reverses the sort order of the index.
	Descending bool
}

// Query returns a lazy sequence of matching items in index order. Pages are
// fetched on demand as the sequence is consumed; the sequence is finite and
// cannot be restarted. A failed page fetch yields a nil item with the error
// and ends the sequence.
func (c *Client) Query(ctx context.Context, in QueryInput) iter.Seq2[Item, error] {
	queryInput := &dynamodb.QueryInput{
		TableName:                 aws.String(in.Table),
		KeyConditionExpression:    aws.String(in.KeyCondition),
		ExpressionAttributeValues: in.Values,
	}
	if in.Index != "" {
		queryInput.IndexName = aws.String(in.Index)
	}
	if in.Filter != "" {
		queryInput.FilterExpression = aws.String(in.Filter)
	}
	if len(in.Names) > 0 {
		queryInput.ExpressionAttributeNames = in.Names
	}
	if in.Limit > 0 {
		queryInput.Limit = aws.Int32(in.Limit)
	}
	if in.Descending {
		queryInput.ScanIndexForward = aws.Bool(false)
	}

	return func(yield func(Item, error) bool) {
		paginator := dynamodb.NewQueryPaginator(c.api, queryInput)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, raw := range page.Items {
				if !yield(raw, nil) {
					return
				}
			}
		}
	}
}

// QueryOne runs a query expected to match exactly one item. It returns
// ErrNotFound for zero matches and ErrAmbiguous for more than one.
func (c *Client) QueryOne(ctx context.Context, in QueryInput) (Item, error) {
	in.Limit = 2

	var found Item
	for item, err := range c.Query(ctx, in) {
		if err != nil {
			return nil, err
		}
		if found != nil {
			return nil, ErrAmbiguous
		}
		found = item
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}
