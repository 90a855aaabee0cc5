package post

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picstream/picstream/apperr"
	"github.com/picstream/picstream/blob"
	"github.com/picstream/picstream/blob/memory"
	"github.com/picstream/picstream/store"
)

// fakeDynamo is a scripted store.DynamoAPI recording every call.
type fakeDynamo struct {
	getOutputs []*dynamodb.GetItemOutput
	getErrs    []error

	putErrs   []error
	putInputs []*dynamodb.PutItemInput

	deleteErrs   []error
	deleteInputs []*dynamodb.DeleteItemInput

	queryOutputs []*dynamodb.QueryOutput
	queryErrs    []error
	queryInputs  []*dynamodb.QueryInput
}

func popNext[T any](queue *[]T) T {
	var out T
	if len(*queue) > 0 {
		out = (*queue)[0]
		*queue = (*queue)[1:]
	}
	return out
}

func (f *fakeDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if err := popNext(&f.getErrs); err != nil {
		return nil, err
	}
	if out := popNext(&f.getOutputs); out != nil {
		return out, nil
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.putInputs = append(f.putInputs, params)
	if err := popNext(&f.putErrs); err != nil {
		return nil, err
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.deleteInputs = append(f.deleteInputs, params)
	if err := popNext(&f.deleteErrs); err != nil {
		return nil, err
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryInputs = append(f.queryInputs, params)
	if err := popNext(&f.queryErrs); err != nil {
		return nil, err
	}
	if out := popNext(&f.queryOutputs); out != nil {
		return out, nil
	}
	return &dynamodb.QueryOutput{}, nil
}

func (f *fakeDynamo) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

// failingBlobs wraps a blob.Store with scripted failures.
type failingBlobs struct {
	blob.Store
	putErr     error
	deleteErr  error
	presignErr error
}

func (f *failingBlobs) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.Store.Put(ctx, key, data, contentType)
}

func (f *failingBlobs) Delete(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Store.Delete(ctx, key)
}

func (f *failingBlobs) PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return f.Store.PresignPut(ctx, key, expiry)
}

func itemString(item map[string]types.AttributeValue, attr string) string {
	if s, ok := item[attr].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func testImage() Image {
	return Image{
		Filename:    "photo.jpg",
		ContentType: "image/jpeg",
		Data:        []byte("jpeg-bytes"),
	}
}

func recordItem(r *Record) map[string]types.AttributeValue {
	item, err := marshalRecord(r)
	if err != nil {
		panic(err)
	}
	return item
}

// --- Upload Tests ---

func TestUpload_Success(t *testing.T) {
	fake := &fakeDynamo{}
	blobs := memory.New()
	svc := NewService(store.New(fake), blobs, Config{}, nil)

	created, err := svc.Upload(context.Background(), "owner-1", "beach day", testImage())
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.Equal(t, "owner-1", created.OwnerID)
	assert.NotEmpty(t, created.PostID)
	assert.Equal(t, "beach day", created.Description)
	assert.Nil(t, created.PendingExpiry)

	// The blob lands under the canonical key layout.
	require.Len(t, fake.putInputs, 1)
	key := itemString(fake.putInputs[0].Item, "ImageKey")
	now := time.Now().UTC()
	expectedPrefix := fmt.Sprintf("owner-1/%d/%d/", now.Year(), int(now.Month()))
	assert.True(t, strings.HasPrefix(key, expectedPrefix), "key %q", key)
	assert.True(t, strings.HasSuffix(key, ".jpg"), "key %q", key)

	data, ok := blobs.Object(key)
	require.True(t, ok, "expected blob stored under %q", key)
	assert.Equal(t, []byte("jpeg-bytes"), data)

	// Immediate uploads are confirmed from the start.
	assert.NotContains(t, fake.putInputs[0].Item, "ExpirationTime")

	assert.Equal(t, "https://s3.amazonaws.com/picstream-posts/"+key, created.ImageURL)
}

func TestUpload_WithoutImage(t *testing.T) {
	svc := NewService(store.New(&fakeDynamo{}), memory.New(), Config{}, nil)

	_, err := svc.Upload(context.Background(), "owner-1", "text only", Image{})
	assert.True(t, apperr.IsValidation(err))
}

func TestUpload_UnsupportedContentType(t *testing.T) {
	svc := NewService(store.New(&fakeDynamo{}), memory.New(), Config{}, nil)

	image := testImage()
	image.ContentType = "application/pdf"

	_, err := svc.Upload(context.Background(), "owner-1", "", image)
	assert.True(t, apperr.IsValidation(err))
}

func TestUpload_DescriptionTooLong(t *testing.T) {
	blobs := memory.New()
	svc := NewService(store.New(&fakeDynamo{}), blobs, Config{DescriptionMaxLen: 10}, nil)

	_, err := svc.Upload(context.Background(), "owner-1", "this is far too long", testImage())
	assert.True(t, apperr.IsValidation(err))
	assert.Zero(t, blobs.Len())
}

func TestUpload_RowFailureDeletesBlob(t *testing.T) {
	fake := &fakeDynamo{putErrs: []error{errors.New("throttled")}}
	blobs := memory.New()
	svc := NewService(store.New(fake), blobs, Config{}, nil)

	_, err := svc.Upload(context.Background(), "owner-1", "", testImage())
	require.Error(t, err)
	assert.Equal(t, apperr.Database, apperr.KindOf(err))

	// The image was written first, then removed when the row failed.
	assert.Zero(t, blobs.Len())
}

func TestUpload_BlobFailureWritesNoRow(t *testing.T) {
	fake := &fakeDynamo{}
	blobs := &failingBlobs{Store: memory.New(), putErr: errors.New("bucket gone")}
	svc := NewService(store.New(fake), blobs, Config{}, nil)

	_, err := svc.Upload(context.Background(), "owner-1", "", testImage())
	require.Error(t, err)
	assert.Equal(t, apperr.BlobStore, apperr.KindOf(err))
	assert.Empty(t, fake.putInputs)
}

// --- Create Tests ---

func TestCreate_Success(t *testing.T) {
	fake := &fakeDynamo{}
	blobs := memory.New()
	svc := NewService(store.New(fake), blobs, Config{}, nil)

	uploadURL, created, err := svc.Create(context.Background(), "owner-1", "coming soon")
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.True(t, strings.HasPrefix(uploadURL, "memory://owner-1/"), "url %q", uploadURL)

	// The row is pending until the upload notification arrives.
	require.NotNil(t, created.PendingExpiry)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), *created.PendingExpiry, 10*time.Second)

	require.Len(t, fake.putInputs, 1)
	assert.Contains(t, fake.putInputs[0].Item, "ExpirationTime")

	// Nothing was uploaded; the caller uploads through the URL.
	assert.Zero(t, blobs.Len())
}

func TestCreate_PresignFailure(t *testing.T) {
	fake := &fakeDynamo{}
	blobs := &failingBlobs{Store: memory.New(), presignErr: errors.New("signer down")}
	svc := NewService(store.New(fake), blobs, Config{}, nil)

	_, _, err := svc.Create(context.Background(), "owner-1", "")
	require.Error(t, err)
	assert.Equal(t, apperr.BlobStore, apperr.KindOf(err))
	assert.Empty(t, fake.putInputs)
}

func TestCreate_RowFailureSurfacesErrorOnly(t *testing.T) {
	fake := &fakeDynamo{putErrs: []error{errors.New("throttled")}}
	svc := NewService(store.New(fake), memory.New(), Config{}, nil)

	_, _, err := svc.Create(context.Background(), "owner-1", "")
	require.Error(t, err)
	assert.Equal(t, apperr.Database, apperr.KindOf(err))
}

// --- Update Tests ---

func TestUpdate_OverwritesDescription(t *testing.T) {
	existing := &Record{
		UserID:      "owner-1",
		PostID:      "post-1",
		ImageKey:    "owner-1/2025/1/post-1.jpg",
		Description: "old",
		CreatedAt:   "2025-01-02T03:04:05Z",
		UpdatedAt:   "2025-01-02T03:04:05Z",
	}
	fake := &fakeDynamo{
		getOutputs: []*dynamodb.GetItemOutput{{Item: recordItem(existing)}},
	}
	svc := NewService(store.New(fake), memory.New(), Config{}, nil)

	updated, err := svc.Update(context.Background(), "owner-1", "post-1", "new description")
	require.NoError(t, err)
	assert.Equal(t, "new description", updated.Description)

	require.Len(t, fake.putInputs, 1)
	assert.Equal(t, "new description", itemString(fake.putInputs[0].Item, "Description"))
	assert.NotEqual(t, "2025-01-02T03:04:05Z", itemString(fake.putInputs[0].Item, "UpdatedAt"))
	assert.Equal(t, "2025-01-02T03:04:05Z", itemString(fake.putInputs[0].Item, "CreatedAt"))
}

func TestUpdate_UnknownPost(t *testing.T) {
	svc := NewService(store.New(&fakeDynamo{}), memory.New(), Config{}, nil)

	_, err := svc.Update(context.Background(), "owner-1", "ghost", "new")
	assert.True(t, apperr.IsValidation(err))
}

// --- Delete Tests ---

func TestDelete_RemovesRowThenBlob(t *testing.T) {
	key := "owner-1/2025/1/post-1.jpg"
	existing := &Record{
		UserID:    "owner-1",
		PostID:    "post-1",
		ImageKey:  key,
		CreatedAt: "2025-01-02T03:04:05Z",
		UpdatedAt: "2025-01-02T03:04:05Z",
	}
	fake := &fakeDynamo{
		getOutputs: []*dynamodb.GetItemOutput{{Item: recordItem(existing)}},
	}
	blobs := memory.New()
	require.NoError(t, blobs.Put(context.Background(), key, []byte("jpeg"), "image/jpeg"))

	svc := NewService(store.New(fake), blobs, Config{}, nil)

	err := svc.Delete(context.Background(), "owner-1", "post-1")
	require.NoError(t, err)

	require.Len(t, fake.deleteInputs, 1)
	assert.Equal(t, "posts", aws.ToString(fake.deleteInputs[0].TableName))
	assert.Equal(t, "post-1", itemString(fake.deleteInputs[0].Key, "PostId"))
	assert.Zero(t, blobs.Len())
}

func TestDelete_RowFailureLeavesBlob(t *testing.T) {
	key := "owner-1/2025/1/post-1.jpg"
	existing := &Record{
		UserID:   "owner-1",
		PostID:   "post-1",
		ImageKey: key,
	}
	fake := &fakeDynamo{
		getOutputs: []*dynamodb.GetItemOutput{{Item: recordItem(existing)}},
		deleteErrs: []error{errors.New("throttled")},
	}
	blobs := memory.New()
	require.NoError(t, blobs.Put(context.Background(), key, []byte("jpeg"), "image/jpeg"))

	svc := NewService(store.New(fake), blobs, Config{}, nil)

	err := svc.Delete(context.Background(), "owner-1", "post-1")
	require.Error(t, err)
	assert.Equal(t, apperr.Database, apperr.KindOf(err))

	// The row still references the image, so the blob must survive.
	assert.Equal(t, 1, blobs.Len())
}

func TestDelete_BlobFailureSurfaces(t *testing.T) {
	existing := &Record{
		UserID:   "owner-1",
		PostID:   "post-1",
		ImageKey: "owner-1/2025/1/post-1.jpg",
	}
	fake := &fakeDynamo{
		getOutputs: []*dynamodb.GetItemOutput{{Item: recordItem(existing)}},
	}
	blobs := &failingBlobs{Store: memory.New(), deleteErr: errors.New("bucket gone")}
	svc := NewService(store.New(fake), blobs, Config{}, nil)

	err := svc.Delete(context.Background(), "owner-1", "post-1")
	require.Error(t, err)
	assert.Equal(t, apperr.BlobStore, apperr.KindOf(err))
}

func TestDelete_PendingPostWithoutBlob(t *testing.T) {
	existing := &Record{
		UserID: "owner-1",
		PostID: "post-1",
	}
	fake := &fakeDynamo{
		getOutputs: []*dynamodb.GetItemOutput{{Item: recordItem(existing)}},
	}
	svc := NewService(store.New(fake), memory.New(), Config{}, nil)

	err := svc.Delete(context.Background(), "owner-1", "post-1")
	require.NoError(t, err)
	require.Len(t, fake.deleteInputs, 1)
}

// --- MarkUploaded Tests ---

func pendingRecord(key string) *Record {
	expiry := time.Now().Add(5 * time.Minute).Unix()
	return &Record{
		UserID:         "owner-1",
		PostID:         "post-1",
		ImageKey:       key,
		ExpirationTime: &expiry,
		CreatedAt:      "2025-01-02T03:04:05Z",
		UpdatedAt:      "2025-01-02T03:04:05Z",
	}
}

func TestMarkUploaded_ClearsExpiry(t *testing.T) {
	key := "owner-1/2025/1/post-1.jpg"
	fake := &fakeDynamo{
		queryOutputs: []*dynamodb.QueryOutput{
			{Items: []map[string]types.AttributeValue{recordItem(pendingRecord(key))}},
		},
	}
	svc := NewService(store.New(fake), memory.New(), Config{}, nil)

	err := svc.MarkUploaded(context.Background(), key)
	require.NoError(t, err)

	require.Len(t, fake.queryInputs, 1)
	assert.Equal(t, "ImageKeyIndex", aws.ToString(fake.queryInputs[0].IndexName))

	require.Len(t, fake.putInputs, 1)
	assert.NotContains(t, fake.putInputs[0].Item, "ExpirationTime")
	assert.NotEqual(t, "2025-01-02T03:04:05Z", itemString(fake.putInputs[0].Item, "UpdatedAt"))
}

func TestMarkUploaded_UnknownKeyIsNoOp(t *testing.T) {
	fake := &fakeDynamo{}
	svc := NewService(store.New(fake), memory.New(), Config{}, nil)

	err := svc.MarkUploaded(context.Background(), "owner-9/2025/1/ghost.jpg")
	require.NoError(t, err)
	assert.Empty(t, fake.putInputs)
}

func TestMarkUploaded_AlreadyConfirmedIsNoOp(t *testing.T) {
	key := "owner-1/2025/1/post-1.jpg"
	confirmed := pendingRecord(key)
	confirmed.ExpirationTime = nil

	fake := &fakeDynamo{
		queryOutputs: []*dynamodb.QueryOutput{
			{Items: []map[string]types.AttributeValue{recordItem(confirmed)}},
		},
	}
	svc := NewService(store.New(fake), memory.New(), Config{}, nil)

	err := svc.MarkUploaded(context.Background(), key)
	require.NoError(t, err)
	assert.Empty(t, fake.putInputs)
}

func TestMarkUploaded_AmbiguousKeyIsNoOp(t *testing.T) {
	key := "owner-1/2025/1/post-1.jpg"
	row := recordItem(pendingRecord(key))
	fake := &fakeDynamo{
		queryOutputs: []*dynamodb.QueryOutput{
			{Items: []map[string]types.AttributeValue{row, row}},
		},
	}
	svc := NewService(store.New(fake), memory.New(), Config{}, nil)

	err := svc.MarkUploaded(context.Background(), key)
	require.NoError(t, err)
	assert.Empty(t, fake.putInputs)
}

func TestMarkUploaded_QueryErrorSurfaces(t *testing.T) {
	fake := &fakeDynamo{queryErrs: []error{errors.New("throttled")}}
	svc := NewService(store.New(fake), memory.New(), Config{}, nil)

	err := svc.MarkUploaded(context.Background(), "owner-1/2025/1/post-1.jpg")
	require.Error(t, err)
	assert.Equal(t, apperr.Database, apperr.KindOf(err))
}

// --- List Tests ---

func TestListByOwner_NewestFirstIncludesPending(t *testing.T) {
	fake := &fakeDynamo{
		queryOutputs: []*dynamodb.QueryOutput{
			{Items: []map[string]types.AttributeValue{
				recordItem(pendingRecord("owner-1/2025/1/post-2.jpg")),
				recordItem(&Record{UserID: "owner-1", PostID: "post-1", CreatedAt: "2025-01-01T00:00:00Z", UpdatedAt: "2025-01-01T00:00:00Z"}),
			}},
		},
	}
	svc := NewService(store.New(fake), memory.New(), Config{}, nil)

	posts, err := svc.ListByOwner(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.NotNil(t, posts[0].PendingExpiry)

	in := fake.queryInputs[0]
	assert.Equal(t, "CreatedAtIndex", aws.ToString(in.IndexName))
	assert.Nil(t, in.FilterExpression)
	require.NotNil(t, in.ScanIndexForward)
	assert.False(t, *in.ScanIndexForward)
}

func TestListConfirmed_FiltersPending(t *testing.T) {
	fake := &fakeDynamo{}
	svc := NewService(store.New(fake), memory.New(), Config{}, nil)

	posts, err := svc.ListConfirmed(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Empty(t, posts)

	in := fake.queryInputs[0]
	assert.Equal(t, "attribute_not_exists(ExpirationTime)", aws.ToString(in.FilterExpression))
}

func TestListByOwner_QueryErrorSurfaces(t *testing.T) {
	fake := &fakeDynamo{queryErrs: []error{errors.New("throttled")}}
	svc := NewService(store.New(fake), memory.New(), Config{}, nil)

	_, err := svc.ListByOwner(context.Background(), "owner-1")
	require.Error(t, err)
	assert.Equal(t, apperr.Database, apperr.KindOf(err))
}
