package store

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PutOp builds an unexecuted conditional put for use in a transaction.
// An empty condition produces an unconditional put.
func PutOp(table string, item Item, condition string) types.TransactWriteItem {
	put := &types.Put{
		TableName: aws.String(table),
		Item:      item,
	}
	if condition != "" {
		put.ConditionExpression = aws.String(condition)
	}
	return types.TransactWriteItem{Put: put}
}

// DeleteOp builds an unexecuted conditional delete for use in a transaction.
// An empty condition produces an unconditional delete.
func DeleteOp(table string, key PK, condition string) types.TransactWriteItem {
	del := &types.Delete{
		TableName: aws.String(table),
		Key:       key,
	}
	if condition != "" {
		del.ConditionExpression = aws.String(condition)
	}
	return types.TransactWriteItem{Delete: del}
}
