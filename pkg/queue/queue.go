// Package queue implements the redis work queue the pipeline pods share.
//
// The queue-maker fills it with batches of origin bucket keys, workers drain
// it, and the poll pod reports its length. Entries are JSON arrays of object
// keys so one queue entry is one unit of worker work.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/andrewasheridan/kaleidoscope/pkg/manifest"
)

const (
	// PendingList is the redis list holding unworked batches.
	PendingList = "kaleidoscope:pending"
	// TotalKey records how many batches were queued in total, so progress
	// can be reported as remaining out of total.
	TotalKey = "kaleidoscope:total"

	// DefaultBatchSize is the number of image keys per queue entry.
	DefaultBatchSize = 100 * 64
)

// Queue wraps the redis connection shared by the pipeline processes
type Queue struct {
	client redis.Cmdable
}

// New connects to the redis instance behind the pipeline's redis service
func New(host string) *Queue {
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", host, manifest.RedisPort),
	})
	return &Queue{client: client}
}

// NewWithClient wraps an existing redis client
func NewWithClient(client redis.Cmdable) *Queue {
	return &Queue{client: client}
}

// Fill splits keys into batches and pushes them onto the pending list.
// It records the batch total and returns the number of batches queued.
func (q *Queue) Fill(ctx context.Context, keys []string, batchSize int) (int, error) {
	// an empty run would record total=0 and poll would never see it drain
	if len(keys) == 0 {
		return 0, fmt.Errorf("no keys to queue, the origin bucket is empty")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	queued := 0
	for _, batch := range batches(keys, batchSize) {
		entry, err := json.Marshal(batch)
		if err != nil {
			return queued, fmt.Errorf("failed to encode batch: %w", err)
		}
		if err := q.client.RPush(ctx, PendingList, entry).Err(); err != nil {
			return queued, fmt.Errorf("failed to push batch: %w", err)
		}
		queued++
	}

	if err := q.client.Set(ctx, TotalKey, queued, 0).Err(); err != nil {
		return queued, fmt.Errorf("failed to record batch total: %w", err)
	}

	log.Printf("[QUEUE] Queued %d batches of up to %d keys", queued, batchSize)
	return queued, nil
}

// Pop takes the next batch off the pending list. A nil batch with no error
// means the queue is empty.
func (q *Queue) Pop(ctx context.Context) ([]string, error) {
	entry, err := q.client.LPop(ctx, PendingList).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop batch: %w", err)
	}

	var batch []string
	if err := json.Unmarshal([]byte(entry), &batch); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}
	return batch, nil
}

// Counts returns the remaining and total batch counts
func (q *Queue) Counts(ctx context.Context) (remaining, total int64, err error) {
	remaining, err = q.client.LLen(ctx, PendingList).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read queue length: %w", err)
	}

	total, err = q.client.Get(ctx, TotalKey).Int64()
	if err == redis.Nil {
		total = 0
		err = nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read batch total: %w", err)
	}
	return remaining, total, nil
}

// batches splits keys into chunks of at most size
func batches(keys []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		out = append(out, keys[start:end])
	}
	return out
}
