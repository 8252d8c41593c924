// Package queue implements the Redis-backed FIFO job queue: payload is
// SET under the job id, then the id is RPUSH'd onto the list, so a
// consumer's BLPOP can never observe an id whose payload isn't there yet.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/csic-platform/eth-indexer/internal/domain"
)

// RedisQueue is the Redis-backed implementation of ports.Queue.
type RedisQueue struct {
	client           *redis.Client
	blockJobList     string
	logJobList       string
	payloadKeyPrefix string
	payloadTTL       time.Duration
}

// Config configures list/key names and payload TTL.
type Config struct {
	BlockJobList     string
	LogJobList       string
	PayloadKeyPrefix string
	PayloadTTL       time.Duration
}

// New builds a RedisQueue over an existing client.
func New(client *redis.Client, cfg Config) *RedisQueue {
	return &RedisQueue{
		client:           client,
		blockJobList:     cfg.BlockJobList,
		logJobList:       cfg.LogJobList,
		payloadKeyPrefix: cfg.PayloadKeyPrefix,
		payloadTTL:       cfg.PayloadTTL,
	}
}

func (q *RedisQueue) payloadKey(jobID string) string {
	return q.payloadKeyPrefix + jobID
}

// PushBlockJob stores the job payload then appends its id to the block
// job list.
func (q *RedisQueue) PushBlockJob(ctx context.Context, job domain.BlockJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal block job: %w", err)
	}
	if err := q.client.Set(ctx, q.payloadKey(job.JobID), data, q.payloadTTL).Err(); err != nil {
		return fmt.Errorf("set block job payload: %w", err)
	}
	if err := q.client.RPush(ctx, q.blockJobList, job.JobID).Err(); err != nil {
		return fmt.Errorf("rpush block job id: %w", err)
	}
	return nil
}

// PushLogJob stores the job payload then appends its id to the log job
// list.
func (q *RedisQueue) PushLogJob(ctx context.Context, job domain.LogJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal log job: %w", err)
	}
	if err := q.client.Set(ctx, q.payloadKey(job.JobID), data, q.payloadTTL).Err(); err != nil {
		return fmt.Errorf("set log job payload: %w", err)
	}
	if err := q.client.RPush(ctx, q.logJobList, job.JobID).Err(); err != nil {
		return fmt.Errorf("rpush log job id: %w", err)
	}
	return nil
}

// PopBlockJob blocks for up to timeoutSeconds waiting for a block job id,
// then fetches its payload. Returns (nil, nil) on timeout.
func (q *RedisQueue) PopBlockJob(ctx context.Context, timeoutSeconds int) (*domain.BlockJob, error) {
	jobID, err := q.blpop(ctx, q.blockJobList, timeoutSeconds)
	if err != nil || jobID == "" {
		return nil, err
	}
	data, err := q.client.Get(ctx, q.payloadKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("block job %s: payload missing or expired", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("get block job payload: %w", err)
	}
	var job domain.BlockJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal block job: %w", err)
	}
	if job.JobID == "" {
		job.JobID = jobID
	}
	return &job, nil
}

// PopLogJob blocks for up to timeoutSeconds waiting for a log job id,
// then fetches its payload. Returns (nil, nil) on timeout.
func (q *RedisQueue) PopLogJob(ctx context.Context, timeoutSeconds int) (*domain.LogJob, error) {
	jobID, err := q.blpop(ctx, q.logJobList, timeoutSeconds)
	if err != nil || jobID == "" {
		return nil, err
	}
	data, err := q.client.Get(ctx, q.payloadKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("log job %s: payload missing or expired", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("get log job payload: %w", err)
	}
	var job domain.LogJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal log job: %w", err)
	}
	if job.JobID == "" {
		job.JobID = jobID
	}
	return &job, nil
}

func (q *RedisQueue) blpop(ctx context.Context, list string, timeoutSeconds int) (string, error) {
	res, err := q.client.BLPop(ctx, time.Duration(timeoutSeconds)*time.Second, list).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("blpop %s: %w", list, err)
	}
	if len(res) != 2 {
		return "", fmt.Errorf("blpop %s: unexpected reply shape", list)
	}
	return res[1], nil
}

// Ack deletes the job's payload, marking it as consumed. A job must only
// be acked after its transaction has committed.
func (q *RedisQueue) Ack(ctx context.Context, jobID string) error {
	if err := q.client.Del(ctx, q.payloadKey(jobID)).Err(); err != nil {
		return fmt.Errorf("ack job %s: %w", jobID, err)
	}
	return nil
}
