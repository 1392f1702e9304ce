package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dekalouis/v0-drive/pkg/apperrors"
	"github.com/dekalouis/v0-drive/pkg/logger"
)

const (
	completedRetention = 100
	failedRetention    = 1000
	terminalHashTTL    = 24 * time.Hour
)

// RedisQueue implements Queue on plain Redis structures:
//
//	queue:{name}:wait      LIST of job IDs ready to run
//	queue:{name}:job:{id}  HASH holding the serialized job
//	queue:{name}:active    ZSET job ID -> last heartbeat (unix ms)
//	queue:{name}:delayed   ZSET job ID -> run-at (unix ms)
//	queue:{name}:completed LIST of recent terminal jobs, trimmed
//	queue:{name}:failed    LIST of recent terminal jobs, trimmed
//	queue:{name}:ids       SET of live idempotency keys
type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func waitKey(name string) string      { return fmt.Sprintf("queue:%s:wait", name) }
func jobKey(name, id string) string   { return fmt.Sprintf("queue:%s:job:%s", name, id) }
func activeKey(name string) string    { return fmt.Sprintf("queue:%s:active", name) }
func delayedKey(name string) string   { return fmt.Sprintf("queue:%s:delayed", name) }
func completedKey(name string) string { return fmt.Sprintf("queue:%s:completed", name) }
func failedKey(name string) string    { return fmt.Sprintf("queue:%s:failed", name) }
func idsKey(name string) string       { return fmt.Sprintf("queue:%s:ids", name) }

func (q *RedisQueue) Enqueue(ctx context.Context, queueName string, job *Job) (bool, error) {
	if job.IdempotencyKey != "" {
		added, err := q.client.SAdd(ctx, idsKey(queueName), job.IdempotencyKey).Result()
		if err != nil {
			return false, wrapRedis("enqueue idempotency check", err)
		}
		if added == 0 {
			logger.Queue("enqueue", "duplicate job skipped", map[string]interface{}{
				"queue": queueName, "key": job.IdempotencyKey,
			})
			return false, nil
		}
	}

	if err := q.storeJob(ctx, queueName, job); err != nil {
		return false, err
	}
	if err := q.client.LPush(ctx, waitKey(queueName), job.ID).Err(); err != nil {
		return false, wrapRedis("enqueue push", err)
	}

	logger.Queue("enqueue", "job enqueued", map[string]interface{}{
		"queue": queueName, "job_id": job.ID, "type": job.Type,
	})
	return true, nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, queueName string, block time.Duration) (*Job, error) {
	res, err := q.client.BRPop(ctx, block, waitKey(queueName)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, wrapRedis("dequeue", err)
	}

	jobID := res[1]
	job, err := q.loadJob(ctx, queueName, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		// Hash expired or was cleaned up; nothing to run.
		return nil, nil
	}

	now := float64(time.Now().UnixMilli())
	if err := q.client.ZAdd(ctx, activeKey(queueName), redis.Z{Score: now, Member: jobID}).Err(); err != nil {
		return nil, wrapRedis("dequeue activate", err)
	}
	return job, nil
}

func (q *RedisQueue) Heartbeat(ctx context.Context, queueName string, jobID string) error {
	now := float64(time.Now().UnixMilli())
	err := q.client.ZAdd(ctx, activeKey(queueName), redis.Z{Score: now, Member: jobID}).Err()
	return wrapRedis("heartbeat", err)
}

func (q *RedisQueue) Complete(ctx context.Context, queueName string, job *Job) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, activeKey(queueName), job.ID)
	pipe.LPush(ctx, completedKey(queueName), job.ID)
	pipe.LTrim(ctx, completedKey(queueName), 0, completedRetention-1)
	q.finalizeJob(ctx, pipe, queueName, job)
	_, err := pipe.Exec(ctx)
	return wrapRedis("complete", err)
}

func (q *RedisQueue) Fail(ctx context.Context, queueName string, job *Job, reason string) (bool, error) {
	job.Attempts++

	if job.Attempts < job.MaxAttempts {
		runAt := time.Now().Add(Backoff(job.Attempts))
		if err := q.storeJob(ctx, queueName, job); err != nil {
			return false, err
		}
		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, activeKey(queueName), job.ID)
		pipe.ZAdd(ctx, delayedKey(queueName), redis.Z{
			Score:  float64(runAt.UnixMilli()),
			Member: job.ID,
		})
		if _, err := pipe.Exec(ctx); err != nil {
			return false, wrapRedis("fail delay", err)
		}
		logger.Queue("fail", "job scheduled for retry", map[string]interface{}{
			"queue": queueName, "job_id": job.ID, "attempt": job.Attempts, "reason": reason,
		})
		return true, nil
	}

	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, activeKey(queueName), job.ID)
	pipe.HSet(ctx, jobKey(queueName, job.ID), "failed_reason", reason)
	pipe.LPush(ctx, failedKey(queueName), job.ID)
	pipe.LTrim(ctx, failedKey(queueName), 0, failedRetention-1)
	q.finalizeJob(ctx, pipe, queueName, job)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, wrapRedis("fail terminal", err)
	}
	logger.QueueError("fail", "job failed permanently", errors.New(reason), map[string]interface{}{
		"queue": queueName, "job_id": job.ID, "attempts": job.Attempts,
	})
	return false, nil
}

func (q *RedisQueue) PromoteDelayed(ctx context.Context, queueName string, limit int) (int, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	ids, err := q.client.ZRangeByScore(ctx, delayedKey(queueName), &redis.ZRangeBy{
		Min: "-inf", Max: now, Count: int64(limit),
	}).Result()
	if err != nil {
		return 0, wrapRedis("promote scan", err)
	}

	promoted := 0
	for _, id := range ids {
		removed, err := q.client.ZRem(ctx, delayedKey(queueName), id).Result()
		if err != nil {
			return promoted, wrapRedis("promote remove", err)
		}
		if removed == 0 {
			continue // someone else promoted it first
		}
		if err := q.client.LPush(ctx, waitKey(queueName), id).Err(); err != nil {
			return promoted, wrapRedis("promote push", err)
		}
		promoted++
	}
	return promoted, nil
}

func (q *RedisQueue) RecoverStalled(ctx context.Context, queueName string, olderThan time.Duration) ([]Job, error) {
	cutoff := strconv.FormatInt(time.Now().Add(-olderThan).UnixMilli(), 10)
	ids, err := q.client.ZRangeByScore(ctx, activeKey(queueName), &redis.ZRangeBy{
		Min: "-inf", Max: cutoff,
	}).Result()
	if err != nil {
		return nil, wrapRedis("recover scan", err)
	}

	var recovered []Job
	for _, id := range ids {
		job, err := q.loadJob(ctx, queueName, id)
		if err != nil {
			return recovered, err
		}
		if job == nil {
			q.client.ZRem(ctx, activeKey(queueName), id)
			continue
		}
		if _, err := q.Fail(ctx, queueName, job, "worker restart recovery"); err != nil {
			return recovered, err
		}
		recovered = append(recovered, *job)
	}
	return recovered, nil
}

func (q *RedisQueue) Counts(ctx context.Context, queueName string) (Counts, error) {
	pipe := q.client.Pipeline()
	waiting := pipe.LLen(ctx, waitKey(queueName))
	active := pipe.ZCard(ctx, activeKey(queueName))
	delayed := pipe.ZCard(ctx, delayedKey(queueName))
	completed := pipe.LLen(ctx, completedKey(queueName))
	failed := pipe.LLen(ctx, failedKey(queueName))
	if _, err := pipe.Exec(ctx); err != nil {
		return Counts{}, wrapRedis("counts", err)
	}
	return Counts{
		Waiting:   waiting.Val(),
		Active:    active.Val(),
		Delayed:   delayed.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
	}, nil
}

func (q *RedisQueue) storeJob(ctx context.Context, queueName string, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return apperrors.Wrap(apperrors.KindQueueUnavailable, "failed to serialize job", err)
	}
	err = q.client.HSet(ctx, jobKey(queueName, job.ID), "data", data).Err()
	return wrapRedis("store job", err)
}

func (q *RedisQueue) loadJob(ctx context.Context, queueName, jobID string) (*Job, error) {
	data, err := q.client.HGet(ctx, jobKey(queueName, jobID), "data").Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapRedis("load job", err)
	}
	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, apperrors.Wrap(apperrors.KindQueueUnavailable, "corrupt job payload", err)
	}
	return &job, nil
}

// finalizeJob releases the idempotency key and lets the job hash age out.
func (q *RedisQueue) finalizeJob(ctx context.Context, pipe redis.Pipeliner, queueName string, job *Job) {
	if job.IdempotencyKey != "" {
		pipe.SRem(ctx, idsKey(queueName), job.IdempotencyKey)
	}
	pipe.Expire(ctx, jobKey(queueName, job.ID), terminalHashTTL)
}

func wrapRedis(op string, err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.KindQueueUnavailable, "redis "+op+" failed", err)
}
