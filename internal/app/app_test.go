package app_test

import (
	"context"
	"testing"
	"time"

	"stakevoice/internal/app"
	"stakevoice/internal/config"

	"github.com/stretchr/testify/require"
)

func TestOpenStore(t *testing.T) {
	st, err := app.OpenStore(context.Background(), config.StoreConfig{Backend: config.BackendMemory})
	require.NoError(t, err)
	require.NoError(t, st.Ping(context.Background()))

	_, err = app.OpenStore(context.Background(), config.StoreConfig{Backend: "mongo"})
	require.Error(t, err)
}

func TestMemoryQueues(t *testing.T) {
	q, err := app.OpenQueues(config.RabbitMQConfig{})
	require.NoError(t, err)
	defer q.Close()

	c, err := q.Consumer("jobs", 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got := make(chan string, 1)
	go c.Consume(ctx, func(_ context.Context, body []byte) error {
		got <- string(body)
		return nil
	})

	require.NoError(t, q.Publisher.Publish(ctx, "jobs", []byte("hi")))
	select {
	case b := <-got:
		require.Equal(t, "hi", b)
	case <-ctx.Done():
		t.Fatal("job not delivered")
	}
}
