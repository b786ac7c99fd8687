package solver

import (
	"context"
	"errors"
	"sync"
)

// Handler 处理一条已入队的订单 ID。
type Handler func(ctx context.Context, orderID string) error

// Queue 抽象已验签订单向求解器网络投递的队列。
type Queue interface {
	Publish(ctx context.Context, orderID string) error
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// MemoryQueue 是基于 channel 的进程内队列实现，用于开发与测试。
type MemoryQueue struct {
	ch     chan string
	closed sync.Once
	done   chan struct{}
}

// NewMemoryQueue 创建内存队列。
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryQueue{
		ch:   make(chan string, capacity),
		done: make(chan struct{}),
	}
}

// Publish 将订单 ID 投递到内存队列。
func (q *MemoryQueue) Publish(ctx context.Context, orderID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return errors.New("队列已关闭")
	case q.ch <- orderID:
		return nil
	}
}

// Consume 启动若干 worker 消费队列，直到上下文取消。
func (q *MemoryQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-q.done:
					return
				case orderID, ok := <-q.ch:
					if !ok {
						return
					}
					_ = handler(ctx, orderID)
				}
			}
		}()
	}
	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Close 关闭内存队列。
func (q *MemoryQueue) Close() error {
	q.closed.Do(func() {
		close(q.done)
	})
	return nil
}

var _ Queue = (*MemoryQueue)(nil)
