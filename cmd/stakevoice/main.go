package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stakevoice/internal/app"
	"stakevoice/internal/config"
	"stakevoice/internal/detail"
	"stakevoice/internal/directory"
	"stakevoice/internal/download"
	"stakevoice/internal/feedback"
	"stakevoice/internal/logger"
	"stakevoice/internal/models"
	"stakevoice/internal/server"
	"stakevoice/internal/session"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to config.json")
	flag.Parse()

	logger.Init()
	defer logger.Log.Info("Application stopped")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Log.Fatalf("Config load error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Log.Fatalf("Invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := app.OpenStore(ctx, cfg.Store)
	if err != nil {
		logger.Log.Fatalf("Store error: %v", err)
	}
	defer st.Close()

	revocations := session.Revocations(session.NewMemoryRevocations())
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Log.Fatalf("Redis error: %v", err)
		}
		defer rdb.Close()
		revocations = session.NewRedisRevocations(rdb)
	}

	queues, err := app.OpenQueues(cfg.RabbitMQ)
	if err != nil {
		logger.Log.Fatalf("RabbitMQ error: %v", err)
	}
	defer queues.Close()

	downloads, err := queues.Consumer(cfg.RabbitMQ.DownloadQueue, cfg.Download.Workers)
	if err != nil {
		logger.Log.Fatalf("RabbitMQ consumer error: %v", err)
	}

	dir := directory.New(st)
	sub, err := dir.Subscribe(ctx, func(cs []models.Company) {
		logger.Log.WithField("companies", len(cs)).Debug("directory updated")
	})
	if err != nil {
		logger.Log.Fatalf("Directory subscription error: %v", err)
	}
	defer sub.Release()

	svc := feedback.NewService(st, cfg.Feedback.Categories)
	srv := server.NewServer(server.Deps{
		Store: st,
		Sessions: session.NewManager(st, revocations, session.Options{
			Secret:            cfg.Auth.JWTSecret,
			TTL:               time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute,
			MinPasswordLength: cfg.Auth.MinPasswordLength,
		}),
		Directory:  dir,
		Detail:     detail.NewLoader(st),
		Feedback:   svc,
		History:    feedback.NewHistory(st),
		Downloader: download.NewDownloader(queues.Publisher, cfg.RabbitMQ.DownloadQueue),
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wrk := download.NewWorker(cfg.Download.Dir, nil, download.LogNotifier{})
		return downloads.Consume(gctx, wrk.HandleTask)
	})
	g.Go(func() error {
		logger.Log.Infof("Starting HTTP server on %s", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Log.Errorf("Server error: %v", err)
		os.Exit(1)
	}
}
