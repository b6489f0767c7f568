package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix prefixes the redis list of each queue
const KeyPrefix = "docstore:"

// RedisQueue keeps one redis list per queue id. Entries are pushed on the
// left and popped from the right so each list is processed in order.
type RedisQueue struct {
	client redis.UniversalClient
}

// NewRedisQueue creates a queue on an existing client
func NewRedisQueue(client redis.UniversalClient) *RedisQueue {
	return &RedisQueue{client: client}
}

// Key returns the redis key of a queue
func Key(queueID string) string {
	return KeyPrefix + queueID
}

// Enqueue pushes the JSON encoded entry onto its queue
func (q *RedisQueue) Enqueue(ctx context.Context, e Entry) error {
	if e.QueueID == "" {
		return fmt.Errorf("doc store entry for %s has no queue id", e.BeanType)
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal doc store entry: %w", err)
	}
	if err := q.client.LPush(ctx, Key(e.QueueID), data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue doc store entry: %w", err)
	}
	return nil
}

// Dequeue pops the oldest entry of a queue. ok is false when the queue is empty.
func (q *RedisQueue) Dequeue(ctx context.Context, queueID string) (e Entry, ok bool, err error) {
	data, err := q.client.RPop(ctx, Key(queueID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to dequeue doc store entry: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&e); err != nil {
		return Entry{}, false, fmt.Errorf("failed to unmarshal doc store entry: %w", err)
	}
	return e, true, nil
}

// Len returns the number of entries waiting on a queue
func (q *RedisQueue) Len(ctx context.Context, queueID string) (int64, error) {
	n, err := q.client.LLen(ctx, Key(queueID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read doc store queue length: %w", err)
	}
	return n, nil
}

// Drain applies every queued entry of queueID to u, returning the number applied.
// An entry that fails is pushed back and the error returned.
func (q *RedisQueue) Drain(ctx context.Context, queueID string, u Updater) (int, error) {
	n := 0
	for {
		e, ok, err := q.Dequeue(ctx, queueID)
		if err != nil || !ok {
			return n, err
		}
		if err := u.Update(ctx, e); err != nil {
			if data, mErr := json.Marshal(e); mErr == nil {
				q.client.RPush(ctx, Key(queueID), data)
			}
			return n, fmt.Errorf("failed to apply doc store entry %v: %w", e.ID, err)
		}
		n++
	}
}
