package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// KeyJobs is the Redis list that holds pending jobs.
	KeyJobs = "apgc:jobs"
	// KeyDLQ receives jobs that exhausted their retries.
	KeyDLQ = "apgc:jobs:dlq"

	MaxRetries = 5
)

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	LastError string          `json:"lastError,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Queue enqueues and dequeues jobs via Redis lists.
type Queue struct {
	client *redis.Client
	key    string
	dlq    string
	logger *slog.Logger
}

func New(client *redis.Client, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{client: client, key: KeyJobs, dlq: KeyDLQ, logger: logger}
}

// Enqueue wraps payload in a job envelope and appends it to the list.
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}
	if err := q.push(ctx, q.key, job); err != nil {
		return "", err
	}
	q.logger.Debug("job_enqueued", "job_id", job.ID, "type", jobType)
	return job.ID, nil
}

// Dequeue blocks for up to wait. It returns (nil, nil) when nothing arrived.
func (q *Queue) Dequeue(ctx context.Context, wait time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, wait, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("job_invalid_payload", "error", err)
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues the job with an incremented attempt, or parks it in the
// dead-letter list once MaxRetries is reached. It reports whether the job was
// dead-lettered.
func (q *Queue) Retry(ctx context.Context, job *Job, cause error) (bool, error) {
	job.Attempt++
	if cause != nil {
		job.LastError = cause.Error()
	}
	if job.Attempt >= MaxRetries {
		if err := q.push(ctx, q.dlq, *job); err != nil {
			return false, err
		}
		q.logger.Warn("job_dead_lettered", "job_id", job.ID, "attempt", job.Attempt, "error", job.LastError)
		return true, nil
	}
	if err := q.push(ctx, q.key, *job); err != nil {
		return false, err
	}
	q.logger.Info("job_retried", "job_id", job.ID, "attempt", job.Attempt)
	return false, nil
}

// Backoff returns the delay before attempt n is processed again.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Second << attempt
}

func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

func (q *Queue) push(ctx context.Context, key string, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return nil
}
