package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueRecordings is the Redis list key for recording jobs.
	QueueRecordings = "worker:recordings"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	// JobTypeRecordingCreate creates the pending recording row when a stream
	// with recording enabled ends. Hand-off from the stream lifecycle fold;
	// never a reentrant call into the recording writer.
	JobTypeRecordingCreate JobType = "recording_create"
	// JobTypeRecordingMirror downloads a ready provider asset and mirrors it
	// into S3.
	JobTypeRecordingMirror JobType = "recording_mirror"
)

// RecordingCreatePayload is the payload for recording creation jobs.
type RecordingCreatePayload struct {
	StreamID uuid.UUID `json:"stream_id"`
}

// RecordingMirrorPayload is the payload for VOD mirror jobs.
type RecordingMirrorPayload struct {
	RecordingID uuid.UUID `json:"recording_id"`
	StreamID    uuid.UUID `json:"stream_id"`
	AssetURL    string    `json:"asset_url"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueRecordingCreate enqueues a recording creation job for an ended stream.
func (q *Queue) EnqueueRecordingCreate(ctx context.Context, payload RecordingCreatePayload) error {
	if err := q.enqueue(ctx, JobTypeRecordingCreate, payload); err != nil {
		return err
	}
	q.logger.Debug("enqueued recording create job", zap.String("stream_id", payload.StreamID.String()))
	return nil
}

// EnqueueRecordingMirror enqueues a VOD mirror job for a ready asset.
func (q *Queue) EnqueueRecordingMirror(ctx context.Context, payload RecordingMirrorPayload) error {
	if err := q.enqueue(ctx, JobTypeRecordingMirror, payload); err != nil {
		return err
	}
	q.logger.Debug("enqueued recording mirror job", zap.String("recording_id", payload.RecordingID.String()))
	return nil
}

func (q *Queue) enqueue(ctx context.Context, jobType JobType, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueRecordings, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return nil
}

// Dequeue blocks until a job is available or ctx is done. Returns job and key (queue name).
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, 0, QueueRecordings).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, QueueRecordings, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
