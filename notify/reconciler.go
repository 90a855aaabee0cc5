// Package notify reconciles pending posts with out-of-band upload
// notifications.
//
// The blob store publishes an event per stored object to an SQS queue; each
// SQS message body is an S3 event notification carrying the bucket and object
// key. The transport guarantees neither ordering nor delivery count, so the
// handler leans entirely on the idempotence of the pending-to-confirmed
// transition: duplicates and unknown keys are no-ops, and only table store
// failures are returned so the queue redrives the batch.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/aws/aws-lambda-go/events"
)

// objectCreatedByPut is the only event that confirms an upload. Other
// ObjectCreated sub-types (copies, multipart completions) don't originate
// from presigned upload URLs and are ignored.
const objectCreatedByPut = "ObjectCreated:Put"

// PostConfirmer transitions the post referencing an image key from pending
// to confirmed.
type PostConfirmer interface {
	MarkUploaded(ctx context.Context, imageKey string) error
}

// Config holds configuration for the reconciler.
type Config struct {
	// Workers bounds concurrent notification handling.
	// Default: 4, max: 10
	Workers int
}

func (c *Config) validate() {
	if c.Workers < 1 {
		c.Workers = 4
	}
	if c.Workers > 10 {
		c.Workers = 10
	}
}

// Handler processes upload notifications.
type Handler struct {
	posts   PostConfirmer
	workers int
	logger  *slog.Logger
}

// NewHandler creates a notification Handler.
func NewHandler(posts PostConfirmer, config Config, logger *slog.Logger) *Handler {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		posts:   posts,
		workers: config.Workers,
		logger:  logger,
	}
}

// HandleSQS processes a batch of SQS-delivered notifications with bounded
// parallelism. This function is designed to be used as an AWS Lambda
// handler. It returns the joined errors of all failed messages; a non-nil
// return makes the queue redeliver the batch, which is safe because every
// per-message action is idempotent.
func (h *Handler) HandleSQS(ctx context.Context, event events.SQSEvent) error {
	workers := h.workers
	if len(event.Records) < workers {
		workers = len(event.Records)
	}
	if workers == 0 {
		return nil
	}

	jobs := make(chan events.SQSMessage)
	errs := make([]error, len(event.Records))

	var wg sync.WaitGroup
	var next int
	var mu sync.Mutex

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range jobs {
				err := h.processMessage(ctx, msg)
				if err != nil {
					mu.Lock()
					errs[next] = err
					next++
					mu.Unlock()
				}
			}
		}()
	}

	for _, msg := range event.Records {
		jobs <- msg
	}
	close(jobs)
	wg.Wait()

	return errors.Join(errs...)
}

// processMessage handles a single SQS message. Messages that don't parse as
// S3 event notifications are logged and dropped rather than returned as
// errors; redelivering them could never succeed.
func (h *Handler) processMessage(ctx context.Context, msg events.SQSMessage) error {
	var notification events.S3Event
	if err := json.Unmarshal([]byte(msg.Body), &notification); err != nil {
		h.logger.Error("failed to parse notification, dropping it",
			"messageID", msg.MessageId,
			"error", err,
		)
		return nil
	}

	for _, record := range notification.Records {
		if record.EventName != objectCreatedByPut {
			continue
		}

		key := record.S3.Object.Key
		h.logger.Info("received upload notification",
			"eventName", record.EventName,
			"bucket", record.S3.Bucket.Name,
			"objectKey", key,
		)

		if err := h.posts.MarkUploaded(ctx, key); err != nil {
			h.logger.Error("failed to mark post as uploaded",
				"objectKey", key,
				"error", err,
			)
			return err
		}
	}
	return nil
}
