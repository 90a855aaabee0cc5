package account

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/picstream/picstream/store"
)

// Role is a user's access level.
type Role int

const (
	RoleAdmin Role = 1
	RoleUser  Role = 2
)

// CredentialRecord is the persisted shape of login credentials.
// Email is globally unique, enforced through the unique-values table.
type CredentialRecord struct {
	UserID   string `dynamodbav:"UserId"`
	Email    string `dynamodbav:"Email"`
	Password string `dynamodbav:"Password"`
}

// ProfileRecord is the persisted shape of a user profile.
type ProfileRecord struct {
	UserID    string `dynamodbav:"UserId"`
	FirstName string `dynamodbav:"FirstName"`
	LastName  string `dynamodbav:"LastName"`
	RoleID    int    `dynamodbav:"RoleId"`
	CreatedAt string `dynamodbav:"CreatedAt"`
}

// Credential is the projection returned to callers. PasswordHash is the
// stored hash; verifying it against a login attempt is the caller's concern.
type Credential struct {
	UserID       string
	Email        string
	PasswordHash string
}

// Profile is the projection returned to callers.
type Profile struct {
	UserID    string
	FirstName string
	LastName  string
	Role      Role
	CreatedAt time.Time
}

func credentialKey(userID string) store.PK {
	return store.PK{
		"UserId": &types.AttributeValueMemberS{Value: userID},
	}
}

func profileKey(userID string) store.PK {
	return store.PK{
		"UserId": &types.AttributeValueMemberS{Value: userID},
	}
}

func marshalCredential(r *CredentialRecord) (store.Item, error) {
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return nil, fmt.Errorf("marshal credential record: %w", err)
	}
	return item, nil
}

func unmarshalCredential(item store.Item) (*CredentialRecord, error) {
	var r CredentialRecord
	if err := attributevalue.UnmarshalMap(item, &r); err != nil {
		return nil, fmt.Errorf("unmarshal credential record: %w", err)
	}
	return &r, nil
}

func marshalProfileRecord(r *ProfileRecord) (store.Item, error) {
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return nil, fmt.Errorf("marshal profile record: %w", err)
	}
	return item, nil
}

func unmarshalProfile(item store.Item, r *ProfileRecord) error {
	if err := attributevalue.UnmarshalMap(item, r); err != nil {
		return fmt.Errorf("unmarshal profile record: %w", err)
	}
	return nil
}

func stringValue(placeholder, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		placeholder: &types.AttributeValueMemberS{Value: value},
	}
}

func buildProfile(r *ProfileRecord) *Profile {
	p := &Profile{
		UserID:    r.UserID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Role:      Role(r.RoleID),
	}
	if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
		p.CreatedAt = t
	}
	return p
}
