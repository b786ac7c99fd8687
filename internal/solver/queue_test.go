package solver

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryQueueDeliversInOrder(t *testing.T) {
	queue := NewMemoryQueue(8)
	defer queue.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	go func() {
		_ = queue.Consume(ctx, 1, func(_ context.Context, orderID string) error {
			mu.Lock()
			got = append(got, orderID)
			if len(got) == 3 {
				close(done)
			}
			mu.Unlock()
			return nil
		})
	}()

	for _, id := range []string{"a", "b", "c"} {
		if err := queue.Publish(ctx, id); err != nil {
			t.Fatalf("publish %s: %v", id, err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("handler never received all orders")
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected delivery order: %v", got)
	}
}

func TestMemoryQueuePublishAfterClose(t *testing.T) {
	queue := NewMemoryQueue(1)
	if err := queue.Close(); err != nil {
		t.Fatalf("close queue: %v", err)
	}
	if err := queue.Publish(context.Background(), "a"); err == nil {
		t.Fatalf("expected error after close")
	}
	// 重复关闭是幂等的。
	if err := queue.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestMemoryQueueConsumeStopsOnCancel(t *testing.T) {
	queue := NewMemoryQueue(1)
	defer queue.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- queue.Consume(ctx, 2, func(context.Context, string) error { return nil })
	}()

	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("consume did not stop after cancel")
	}
}
