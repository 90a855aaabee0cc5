package post

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/picstream/picstream/store"
)

// Record is the persisted shape of a post in the posts table.
//
// ExpirationTime present means the post is pending: its row exists but the
// image upload has not been confirmed yet. The attribute is removed, never
// zeroed, when the upload is confirmed, so the CreatedAtIndex filter
// attribute_not_exists(ExpirationTime) selects exactly the confirmed posts.
type Record struct {
	UserID         string `dynamodbav:"UserId"`
	PostID         string `dynamodbav:"PostId"`
	ImageKey       string `dynamodbav:"ImageKey,omitempty"`
	Description    string `dynamodbav:"Description,omitempty"`
	ExpirationTime *int64 `dynamodbav:"ExpirationTime,omitempty"`
	CreatedAt      string `dynamodbav:"CreatedAt"`
	UpdatedAt      string `dynamodbav:"UpdatedAt"`
}

// Post is the projection returned to callers.
type Post struct {
	OwnerID       string
	PostID        string
	Description   string
	ImageURL      string
	PendingExpiry *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r *Record) key() store.PK {
	return recordKey(r.UserID, r.PostID)
}

func recordKey(ownerID, postID string) store.PK {
	return store.PK{
		"UserId": &types.AttributeValueMemberS{Value: ownerID},
		"PostId": &types.AttributeValueMemberS{Value: postID},
	}
}

func marshalRecord(r *Record) (store.Item, error) {
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return nil, fmt.Errorf("marshal post record: %w", err)
	}
	return item, nil
}

func unmarshalRecord(item store.Item) (*Record, error) {
	var r Record
	if err := attributevalue.UnmarshalMap(item, &r); err != nil {
		return nil, fmt.Errorf("unmarshal post record: %w", err)
	}
	return &r, nil
}

func (s *Service) buildPost(r *Record) *Post {
	p := &Post{
		OwnerID:     r.UserID,
		PostID:      r.PostID,
		Description: r.Description,
	}
	if r.ImageKey != "" {
		p.ImageURL = fmt.Sprintf("%s/%s/%s", s.config.BaseURL, s.config.Bucket, r.ImageKey)
	}
	if r.ExpirationTime != nil {
		expiry := time.Unix(*r.ExpirationTime, 0).UTC()
		p.PendingExpiry = &expiry
	}
	if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
		p.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, r.UpdatedAt); err == nil {
		p.UpdatedAt = t
	}
	return p
}
