package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Job states as stored alongside the queue. A job is "processing" from the
// moment it is enqueued until a worker writes its outcome.
const (
	StateProcessing = "processing"
	StateDone       = "done"
	StateFailed     = "failed"
)

var ErrJobNotFound = errors.New("job not found")

// Job is one gain-estimation task for a pending purchase.
type Job struct {
	JobID     string `json:"job_id"`
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	Symbol    string `json:"symbol"`
	Quantity  int64  `json:"quantity"`
}

// Result is the stored outcome of a job, readable until its TTL expires.
type Result struct {
	JobID         string `json:"job_id"`
	State         string `json:"state"`
	Symbol        string `json:"symbol,omitempty"`
	Quantity      int64  `json:"quantity,omitempty"`
	EstimatedGain string `json:"estimated_gain,omitempty"`
	Error         string `json:"error,omitempty"`
}

// RedisQueue is a single-list work queue with per-job result keys.
type RedisQueue struct {
	client    *redis.Client
	queueKey  string
	resultTTL time.Duration
}

func NewRedisQueue(client *redis.Client, queueKey string, resultTTL time.Duration) *RedisQueue {
	return &RedisQueue{client: client, queueKey: queueKey, resultTTL: resultTTL}
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Enqueue pushes the job and records it as processing so its state is
// visible before any worker picks it up.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.SetResult(ctx, Result{JobID: job.JobID, State: StateProcessing}); err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.queueKey, payload).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout waiting for the next job. A nil job with a
// nil error means the wait timed out.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	vals, err := q.client.BRPop(ctx, timeout, q.queueKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue job: %w", err)
	}
	// BRPOP returns [key, value].
	var job Job
	if err := json.Unmarshal([]byte(vals[1]), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

func (q *RedisQueue) SetResult(ctx context.Context, result Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := q.client.Set(ctx, q.resultKey(result.JobID), payload, q.resultTTL).Err(); err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

func (q *RedisQueue) GetResult(ctx context.Context, jobID string) (*Result, error) {
	raw, err := q.client.Get(ctx, q.resultKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load result: %w", err)
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &result, nil
}

func (q *RedisQueue) resultKey(jobID string) string {
	return q.queueKey + ":result:" + jobID
}
