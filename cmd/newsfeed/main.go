package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"stakevoice/internal/app"
	"stakevoice/internal/config"
	"stakevoice/internal/logger"
	"stakevoice/internal/newsfeed"
)

func main() {
	configPath := flag.String("config", "", "path to config.json")
	flag.Parse()

	logger.Init()
	defer logger.Log.Info("News ingest stopped")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Log.Fatalf("Config load error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Log.Fatalf("Invalid config: %v", err)
	}
	if len(cfg.Newsfeed.Feeds) == 0 {
		logger.Log.Fatal("No feeds configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := app.OpenStore(ctx, cfg.Store)
	if err != nil {
		logger.Log.Fatalf("Store error: %v", err)
	}
	defer st.Close()

	queues, err := app.OpenQueues(cfg.RabbitMQ)
	if err != nil {
		logger.Log.Fatalf("RabbitMQ error: %v", err)
	}
	defer queues.Close()

	consumer, err := queues.Consumer(cfg.RabbitMQ.NewsfeedQueue, cfg.Newsfeed.Workers)
	if err != nil {
		logger.Log.Fatalf("RabbitMQ consumer error: %v", err)
	}

	wrk := newsfeed.NewWorker(newsfeed.NewFetcher(nil), st)
	go func() {
		if err := consumer.Consume(ctx, wrk.HandleTask); err != nil {
			logger.Log.Errorf("Consumer error: %v", err)
			stop()
		}
	}()

	newsfeed.StartPolling(
		ctx,
		queues.Publisher,
		cfg.RabbitMQ.NewsfeedQueue,
		cfg.Newsfeed.Feeds,
		time.Duration(cfg.Newsfeed.PollInterval)*time.Minute,
	)
}
