package queue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tickd/internal/logging"
)

const (
	defaultTickQueueKey = "gsi_ticks"
	retrySuffix         = ":retry"
	dlqSuffix           = ":dlq"
	retryCounterSuffix  = ":retry-count:"
	maxRetryAttempts    = 3

	// brPopBlock bounds how long one BRPOP blocks, and with it the worst-case
	// shutdown latency when the client does not interrupt in-flight blocking
	// commands on context cancellation.
	brPopBlock = time.Second
)

// Handler processes one job payload. A non-nil error schedules a retry; the
// payload lands on the dead-letter list after maxRetryAttempts failures.
type Handler func(payload []byte) error

// RedisQueue delivers tick jobs through Redis lists. The retry list is
// drained with priority over the main list so failed ticks for a player are
// reprocessed before newer ones.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a Redis-backed queue helper.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client, key: defaultTickQueueKey}
}

// Enqueue pushes one job payload onto the queue. Exposed for producers and
// for backfill tooling.
func (q *RedisQueue) Enqueue(ctx context.Context, queueName string, payload []byte) error {
	if queueName == "" {
		queueName = q.key
	}
	return q.client.LPush(ctx, queueName, payload).Err()
}

// Consume feeds jobs to a pool of workers until the context is canceled.
// workerCount of 1 gives strictly serial processing.
func (q *RedisQueue) Consume(ctx context.Context, queueName string, workerCount, bufferSize int, handler Handler) error {
	logger := logging.Logger()
	if queueName == "" {
		queueName = q.key
	}
	if workerCount < 1 {
		workerCount = 1
	}
	if bufferSize < 1 {
		bufferSize = 1
	}
	retryKey := queueName + retrySuffix
	dlqKey := queueName + dlqSuffix

	jobs := make(chan []byte, bufferSize)
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for payload := range jobs {
				if err := handler(payload); err != nil {
					logger.Warnf("worker %d: handler error, scheduling retry: %v", workerID, err)
					if err := q.handleRetry(ctx, queueName, retryKey, dlqKey, payload); err != nil {
						logger.Errorf("worker %d: retry handling failed: %v", workerID, err)
					}
					continue
				}
				_ = q.clearRetryCounter(ctx, queueName, payload)
			}
		}(i)
	}

	logger.Infof("consuming queue %s with %d worker(s)", queueName, workerCount)

	drain := func(err error) error {
		close(jobs)
		wg.Wait()
		return err
	}

	for {
		if ctx.Err() != nil {
			logger.Warnf("redis consumer exiting: %v", ctx.Err())
			return drain(ctx.Err())
		}

		result, err := q.client.BRPop(ctx, brPopBlock, retryKey, queueName).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				logger.Warnf("redis BRPOP canceled: %v", ctx.Err())
				return drain(ctx.Err())
			}
			logger.Warnf("redis BRPOP error: %v", err)
			continue
		}
		if len(result) < 2 {
			continue
		}

		select {
		case jobs <- []byte(result[1]):
		case <-ctx.Done():
			return drain(ctx.Err())
		}
	}
}

func (q *RedisQueue) handleRetry(ctx context.Context, baseQueue, retryKey, dlqKey string, payload []byte) error {
	logger := logging.Logger()
	attempt, err := q.incrementRetryCounter(ctx, baseQueue, payload)
	if err != nil {
		return err
	}
	if attempt > maxRetryAttempts {
		logger.Warnf("moving job to DLQ after %d attempts", attempt-1)
		_ = q.client.LPush(ctx, dlqKey, payload).Err()
		_ = q.clearRetryCounter(ctx, baseQueue, payload)
		return nil
	}
	return q.client.LPush(ctx, retryKey, payload).Err()
}

func (q *RedisQueue) incrementRetryCounter(ctx context.Context, queueName string, payload []byte) (int64, error) {
	key := retryCounterKey(queueName, payload)
	count, err := q.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = q.client.Expire(ctx, key, 24*time.Hour).Err()
	return count, nil
}

func (q *RedisQueue) clearRetryCounter(ctx context.Context, queueName string, payload []byte) error {
	key := retryCounterKey(queueName, payload)
	return q.client.Del(ctx, key).Err()
}

func retryCounterKey(queue string, payload []byte) string {
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("%s%s%s", queue, retryCounterSuffix, hex.EncodeToString(sum[:]))
}
