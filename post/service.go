// Package post orchestrates the post lifecycle across the blob store and the
// table store.
//
// The two stores fail independently and share no transaction, so every
// operation that touches both follows a fixed ordering: on create the blob is
// written before the metadata row, on delete the metadata row is removed
// before the blob. Either order can be interrupted, but this one only ever
// strands an unreferenced blob; the reverse could leave a post pointing at an
// image that doesn't exist.
package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/picstream/picstream/apperr"
	"github.com/picstream/picstream/blob"
	"github.com/picstream/picstream/internal/imagekey"
	"github.com/picstream/picstream/store"
)

// Image is an uploaded image payload.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Config holds configuration for the post service.
type Config struct {
	// Table is the posts table name. Default: "posts"
	Table string

	// Bucket is the blob store bucket holding post images.
	// Default: "picstream-posts"
	Bucket string

	// BaseURL is the public base URL of the blob store, used to build
	// image URLs as {BaseURL}/{Bucket}/{ImageKey}.
	// Default: "https://s3.amazonaws.com"
	BaseURL string

	// DescriptionMaxLen caps post description length. Default: 500
	DescriptionMaxLen int

	// AllowedContentTypes lists accepted image content types.
	// Default: image/jpeg, image/png, image/gif
	AllowedContentTypes []string

	// PendingTTL is how long a deferred post may await its upload
	// confirmation. Default: 5m
	PendingTTL time.Duration

	// UploadURLTTL is the lifetime of presigned upload URLs. Default: 15m
	UploadURLTTL time.Duration
}

func (c *Config) validate() {
	if c.Table == "" {
		c.Table = "posts"
	}
	if c.Bucket == "" {
		c.Bucket = "picstream-posts"
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://s3.amazonaws.com"
	}
	if c.DescriptionMaxLen < 1 {
		c.DescriptionMaxLen = 500
	}
	if len(c.AllowedContentTypes) == 0 {
		c.AllowedContentTypes = []string{"image/jpeg", "image/png", "image/gif"}
	}
	if c.PendingTTL <= 0 {
		c.PendingTTL = 5 * time.Minute
	}
	if c.UploadURLTTL <= 0 {
		c.UploadURLTTL = 15 * time.Minute
	}
}

// Secondary indexes on the posts table.
const (
	imageKeyIndex  = "ImageKeyIndex"
	createdAtIndex = "CreatedAtIndex"
)

// Service is the post lifecycle manager.
type Service struct {
	store  *store.Client
	blobs  blob.Store
	config Config
	logger *slog.Logger
}

// NewService creates a post Service.
func NewService(st *store.Client, blobs blob.Store, config Config, logger *slog.Logger) *Service {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		blobs:  blobs,
		config: config,
		logger: logger,
	}
}

// Upload creates a post whose image content is already in hand: the image is
// written to the blob store first, then the post row is persisted. If the row
// write fails the blob is deleted again so no unreachable object survives a
// failed create.
func (s *Service) Upload(ctx context.Context, ownerID, description string, image Image) (*Post, error) {
	if ownerID == "" {
		return nil, errors.New("ownerID is empty")
	}
	if len(image.Data) == 0 {
		return nil, apperr.New(apperr.Validation, "cannot upload post without an image")
	}
	if err := s.validateDescription(description); err != nil {
		return nil, err
	}
	if !slices.Contains(s.config.AllowedContentTypes, image.ContentType) {
		return nil, apperr.New(apperr.Validation, "invalid image content type")
	}

	postID := uuid.NewString()
	now := time.Now().UTC()
	key := imagekey.Build(ownerID, postID, imagekey.Ext(image.Filename), now)

	if err := s.blobs.Put(ctx, key, image.Data, image.ContentType); err != nil {
		return nil, apperr.Wrap(apperr.BlobStore, "upload image", err)
	}

	record := &Record{
		UserID:      ownerID,
		PostID:      postID,
		ImageKey:    key,
		Description: description,
		CreatedAt:   now.Format(time.RFC3339),
		UpdatedAt:   now.Format(time.RFC3339),
	}

	if err := s.saveRecord(ctx, record); err != nil {
		// The blob is unreachable without the row; remove it. Failure
		// here leaves orphaned garbage, which is preferable to masking
		// the original error.
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to delete image after post save failure",
				"imageKey", key,
				"error", delErr,
			)
		}
		return nil, err
	}

	return s.buildPost(record), nil
}

// Create creates a deferred post: a pending row with an expiry and a
// precomputed image key, and returns a presigned URL the caller uploads to
// directly. The row stays pending until the upload notification arrives.
func (s *Service) Create(ctx context.Context, ownerID, description string) (string, *Post, error) {
	if ownerID == "" {
		return "", nil, errors.New("ownerID is empty")
	}
	if err := s.validateDescription(description); err != nil {
		return "", nil, err
	}

	postID := uuid.NewString()
	now := time.Now().UTC()
	key := imagekey.Build(ownerID, postID, "", now)

	uploadURL, err := s.blobs.PresignPut(ctx, key, s.config.UploadURLTTL)
	if err != nil {
		return "", nil, apperr.Wrap(apperr.BlobStore, "presign upload", err)
	}

	expiry := now.Add(s.config.PendingTTL).Unix()
	record := &Record{
		UserID:         ownerID,
		PostID:         postID,
		ImageKey:       key,
		Description:    description,
		ExpirationTime: &expiry,
		CreatedAt:      now.Format(time.RFC3339),
		UpdatedAt:      now.Format(time.RFC3339),
	}

	// Nothing has been uploaded yet, so there is no blob to compensate
	// for; a row write failure only surfaces the error.
	if err := s.saveRecord(ctx, record); err != nil {
		return "", nil, err
	}

	return uploadURL, s.buildPost(record), nil
}

// Update overwrites the description of an existing post.
func (s *Service) Update(ctx context.Context, ownerID, postID, description string) (*Post, error) {
	if err := s.validateDescription(description); err != nil {
		return nil, err
	}

	record, err := s.getRecord(ctx, ownerID, postID)
	if err != nil {
		return nil, err
	}

	record.Description = description
	record.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	if err := s.saveRecord(ctx, record); err != nil {
		return nil, err
	}
	return s.buildPost(record), nil
}

// Delete removes a post: the metadata row first, then the blob. A crash
// between the two strands the blob, never a dangling row.
func (s *Service) Delete(ctx context.Context, ownerID, postID string) error {
	record, err := s.getRecord(ctx, ownerID, postID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteConditional(ctx, s.config.Table, record.key(), ""); err != nil {
		return apperr.Wrap(apperr.Database, "delete post", err)
	}

	if record.ImageKey != "" {
		if err := s.blobs.Delete(ctx, record.ImageKey); err != nil {
			return apperr.Wrap(apperr.BlobStore, "delete image", err)
		}
	}
	return nil
}

// MarkUploaded transitions the post referencing imageKey from pending to
// confirmed. It is the only writer of that transition and is idempotent:
// duplicate or late notifications find no expiry to clear and no-op. An
// unknown image key is logged and ignored; so is an ambiguous one, since
// image keys must never be shared and guessing would confirm the wrong post.
func (s *Service) MarkUploaded(ctx context.Context, imageKey string) error {
	item, err := s.store.QueryOne(ctx, store.QueryInput{
		Table:        s.config.Table,
		Index:        imageKeyIndex,
		KeyCondition: "ImageKey = :key",
		Values: map[string]types.AttributeValue{
			":key": &types.AttributeValueMemberS{Value: imageKey},
		},
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.logger.Error("post not found by image key, cannot mark it as uploaded",
			"imageKey", imageKey,
		)
		return nil
	case errors.Is(err, store.ErrAmbiguous):
		s.logger.Error("multiple posts share image key, refusing to mark as uploaded",
			"imageKey", imageKey,
		)
		return nil
	case err != nil:
		return apperr.Wrap(apperr.Database, "find post by image key", err)
	}

	record, err := unmarshalRecord(item)
	if err != nil {
		return apperr.Wrap(apperr.Database, "read post", err)
	}

	if record.ExpirationTime == nil {
		s.logger.Debug("post already marked as uploaded, skipping",
			"imageKey", imageKey,
		)
		return nil
	}

	record.ExpirationTime = nil
	record.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	return s.saveRecord(ctx, record)
}

// ListByOwner returns all of an owner's posts, newest first, pending ones
// included.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]*Post, error) {
	return s.listByOwner(ctx, ownerID, false)
}

// ListConfirmed returns the owner's confirmed posts, newest first.
func (s *Service) ListConfirmed(ctx context.Context, ownerID string) ([]*Post, error) {
	return s.listByOwner(ctx, ownerID, true)
}

func (s *Service) listByOwner(ctx context.Context, ownerID string, confirmedOnly bool) ([]*Post, error) {
	in := store.QueryInput{
		Table:        s.config.Table,
		Index:        createdAtIndex,
		KeyCondition: "UserId = :uid AND CreatedAt < :now",
		Values: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: ownerID},
			":now": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		Descending: true,
	}
	if confirmedOnly {
		in.Filter = "attribute_not_exists(ExpirationTime)"
	}

	var posts []*Post
	for item, err := range s.store.Query(ctx, in) {
		if err != nil {
			return nil, apperr.Wrap(apperr.Database, "list posts", err)
		}
		record, err := unmarshalRecord(item)
		if err != nil {
			return nil, apperr.Wrap(apperr.Database, "read post", err)
		}
		posts = append(posts, s.buildPost(record))
	}
	return posts, nil
}

func (s *Service) validateDescription(description string) error {
	if len(description) > s.config.DescriptionMaxLen {
		return apperr.New(apperr.Validation,
			fmt.Sprintf("description exceeds character limit of %d", s.config.DescriptionMaxLen))
	}
	return nil
}

func (s *Service) getRecord(ctx context.Context, ownerID, postID string) (*Record, error) {
	item, err := s.store.Get(ctx, s.config.Table, recordKey(ownerID, postID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.Validation, "invalid post ID")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, "get post", err)
	}
	return unmarshalRecord(item)
}

func (s *Service) saveRecord(ctx context.Context, record *Record) error {
	item, err := marshalRecord(record)
	if err != nil {
		return apperr.Wrap(apperr.Database, "save post", err)
	}
	if err := s.store.Put(ctx, s.config.Table, item); err != nil {
		return apperr.Wrap(apperr.Database, "save post", err)
	}
	return nil
}
