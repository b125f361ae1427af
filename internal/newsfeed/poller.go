package newsfeed

import (
	"context"
	"encoding/json"
	"time"

	"stakevoice/internal/config"
	"stakevoice/internal/logger"
	"stakevoice/internal/queue"
)

// Job asks a worker to ingest one company feed.
type Job struct {
	CompanyID string `json:"company_id"`
	URL       string `json:"url"`
}

// StartPolling queues every feed right away and then once per interval,
// until ctx ends.
func StartPolling(ctx context.Context, pub queue.Publisher, queueName string, feeds []config.Feed, interval time.Duration) {
	log := logger.Component("poller").WithFields(logger.Fields{
		"interval": interval.String(),
		"feeds":    len(feeds),
	})

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		log.Info("starting polling cycle")
		for _, f := range feeds {
			body, err := json.Marshal(Job{CompanyID: f.CompanyID, URL: f.URL})
			if err != nil {
				log.WithError(err).Error("encode job")
				continue
			}
			if err := pub.Publish(ctx, queueName, body); err != nil {
				log.WithError(err).WithField("url", f.URL).Error("queue feed")
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			log.Info("stopping poller")
			return
		}
	}
}
