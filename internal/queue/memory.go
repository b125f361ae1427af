package queue

import (
	"context"
	"fmt"
	"sync"

	"stakevoice/internal/logger"
)

// Memory is an in-process queue for single-instance deployments and tests.
type Memory struct {
	mu     sync.Mutex
	queues map[string]chan []byte
	size   int
}

func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 64
	}
	return &Memory{queues: make(map[string]chan []byte), size: size}
}

func (m *Memory) queue(name string) chan []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[name]
	if !ok {
		q = make(chan []byte, m.size)
		m.queues[name] = q
	}
	return q
}

// Publish blocks while the queue is full, until ctx ends.
func (m *Memory) Publish(ctx context.Context, queueName string, body []byte) error {
	select {
	case m.queue(queueName) <- append([]byte(nil), body...):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", queueName, ctx.Err())
	}
}

// Consumer returns a consumer of one memory queue.
func (m *Memory) Consumer(queueName string, workers int) *MemoryConsumer {
	return &MemoryConsumer{q: m.queue(queueName), name: queueName, workers: max(workers, 1)}
}

type MemoryConsumer struct {
	q       chan []byte
	name    string
	workers int
}

func (c *MemoryConsumer) Consume(ctx context.Context, handler Handler) error {
	log := logger.Component("queue").WithField("queue", c.name)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case body := <-c.q:
					if err := handler(ctx, body); err != nil {
						log.WithError(err).Error("job failed")
					}
				}
			}
		}()
	}
	wg.Wait()
	return nil
}
