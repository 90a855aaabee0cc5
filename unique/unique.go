// Package unique emulates a global unique index on DynamoDB.
//
// DynamoDB has no cross-partition uniqueness constraint, so exclusivity of a
// value within a domain (an email address within "email") is proven by a
// synthetic row in an auxiliary table keyed by (value, domain). A claim is a
// conditional put of that row; it is never executed standalone but included
// in the same atomic transaction as the entity write it protects, so the
// entity and its claim can only ever commit or fail together.
package unique

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/picstream/picstream/store"
)

// DomainEmail scopes claims on user email addresses.
const DomainEmail = "email"

// notClaimedCondition guards a claim put: it fails at commit time when the
// (value, domain) row already exists.
const notClaimedCondition = "attribute_not_exists(pk)"

// Index builds claim and release operations against the unique-values table.
type Index struct {
	table string
}

// NewIndex creates an Index over the given table. The table's primary key is
// pk = claimed value, sk = domain.
func NewIndex(table string) *Index {
	return &Index{table: table}
}

// Claim returns an unexecuted conditional put asserting exclusive ownership
// of value within domain. Including it in a transaction makes the whole
// transaction fail with a precondition error if the value is already claimed.
func (i *Index) Claim(value, domain string) types.TransactWriteItem {
	return store.PutOp(i.table, store.Item{
		"pk": &types.AttributeValueMemberS{Value: value},
		"sk": &types.AttributeValueMemberS{Value: domain},
	}, notClaimedCondition)
}

// Release returns an unexecuted delete giving up the claim on value within
// domain. Deletes are unconditional: releasing an unclaimed value is a no-op.
func (i *Index) Release(value, domain string) types.TransactWriteItem {
	return store.DeleteOp(i.table, i.key(value, domain), "")
}

// IsClaimed reports whether value is currently claimed within domain.
//
// This read is inherently racy and exists only so callers can reject an
// already-claimed value with a precise error before attempting a write.
// Correctness always comes from including Claim in the transaction.
func (i *Index) IsClaimed(ctx context.Context, client *store.Client, value, domain string) (bool, error) {
	_, err := client.Get(ctx, i.table, i.key(value, domain))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (i *Index) key(value, domain string) store.PK {
	return store.PK{
		"pk": &types.AttributeValueMemberS{Value: value},
		"sk": &types.AttributeValueMemberS{Value: domain},
	}
}
