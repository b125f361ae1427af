// Package app wires configured backends for the binaries.
package app

import (
	"context"
	"fmt"

	"stakevoice/internal/config"
	"stakevoice/internal/db"
	"stakevoice/internal/fsstore"
	"stakevoice/internal/logger"
	"stakevoice/internal/queue"
	"stakevoice/internal/store"
)

// OpenStore connects the configured document store. Postgres is migrated
// on open.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		database, err := db.NewDB(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, err
		}
		return database, nil
	case config.BackendFirestore:
		fs, err := fsstore.New(ctx, cfg.FirestoreProject)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case config.BackendMemory:
		logger.Component("app").Warn("using in-memory store, data is lost on restart")
		return store.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// Queues is the job transport: RabbitMQ when configured, else in-process.
type Queues struct {
	Publisher queue.Publisher

	url     string
	memory  *queue.Memory
	closers []func()
}

func OpenQueues(cfg config.RabbitMQConfig) (*Queues, error) {
	if cfg.URL == "" {
		mem := queue.NewMemory(0)
		return &Queues{Publisher: mem, memory: mem}, nil
	}
	producer, err := queue.NewProducer(cfg.URL)
	if err != nil {
		return nil, err
	}
	return &Queues{Publisher: producer, url: cfg.URL, closers: []func(){producer.Close}}, nil
}

// Consumer opens a consumer of name with the given number of workers.
func (q *Queues) Consumer(name string, workers int) (queue.Consumer, error) {
	if q.memory != nil {
		return q.memory.Consumer(name, workers), nil
	}
	c, err := queue.NewConsumer(q.url, name, workers)
	if err != nil {
		return nil, err
	}
	q.closers = append(q.closers, c.Close)
	return c, nil
}

func (q *Queues) Close() {
	for i := len(q.closers) - 1; i >= 0; i-- {
		q.closers[i]()
	}
}
