package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) (*RedisQueue, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), ContextTimeoutEnabled: true})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisQueue(client), client
}

func TestConsumeDeliversPayload(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan []byte, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Consume(ctx, "jobs", 1, 4, func(payload []byte) error {
			got <- payload
			return nil
		})
	}()

	if err := q.Enqueue(ctx, "jobs", []byte(`{"n":1}`)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case payload := <-got:
		if string(payload) != `{"n":1}` {
			t.Fatalf("wrong payload: %s", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("payload never delivered")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("consumer did not stop on cancel")
	}
}

func TestConsumeRetriesThenDeadLetters(t *testing.T) {
	q, client := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Consume(ctx, "jobs", 1, 4, func(payload []byte) error {
			calls.Add(1)
			return errors.New("boom")
		})
	}()

	payload := []byte(`{"steam_id":"x"}`)
	if err := q.Enqueue(ctx, "jobs", payload); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// First delivery plus maxRetryAttempts redeliveries, then the DLQ.
	deadline := time.After(10 * time.Second)
	for {
		entries, err := client.LRange(context.Background(), "jobs:dlq", 0, -1).Result()
		if err != nil {
			t.Fatalf("LRange: %v", err)
		}
		if len(entries) == 1 {
			if entries[0] != string(payload) {
				t.Fatalf("wrong payload in DLQ: %s", entries[0])
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("payload never reached the DLQ (handler calls: %d)", calls.Load())
		case <-time.After(20 * time.Millisecond):
		}
	}

	if got := calls.Load(); got != int64(maxRetryAttempts)+1 {
		t.Fatalf("expected %d handler calls, got %d", maxRetryAttempts+1, got)
	}

	// The retry counter is cleaned up once the payload is dead-lettered.
	keys, err := client.Keys(context.Background(), "jobs"+retryCounterSuffix+"*").Result()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("retry counter leaked: %v", keys)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("consumer did not stop on cancel")
	}
}

func TestConsumeStopsWhenContextCanceled(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- q.Consume(ctx, "jobs", 2, 4, func([]byte) error { return nil })
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("consumer did not return after cancel")
	}
}
