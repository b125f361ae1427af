package newsfeed

import (
	"context"
	"encoding/json"
	"fmt"

	"stakevoice/internal/logger"
	"stakevoice/internal/metrics"
	"stakevoice/internal/models"
	"stakevoice/internal/store"
)

type Worker struct {
	fetcher *Fetcher
	news    store.NewsWriter
}

func NewWorker(f *Fetcher, news store.NewsWriter) *Worker {
	return &Worker{fetcher: f, news: news}
}

// HandleTask ingests the feed named by body. Items already stored under
// the company are skipped.
func (w *Worker) HandleTask(ctx context.Context, body []byte) error {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("decode job: %w", err)
	}

	log := logger.Component("newsfeed").WithFields(logger.Fields{"company_id": job.CompanyID, "url": job.URL})
	log.Info("processing feed")

	items, err := w.fetcher.Fetch(ctx, job.URL)
	if err != nil {
		log.WithError(err).Error("fetch failed")
		return err
	}

	added := 0
	for _, it := range items {
		ok, err := w.news.AddNews(ctx, models.News{
			CompanyID: job.CompanyID,
			Title:     it.Title,
			Content:   it.Content,
			Link:      it.Link,
		})
		switch {
		case err != nil:
			metrics.NewsIngested.WithLabelValues("failed").Inc()
			log.WithError(err).Warn("save item failed")
		case ok:
			added++
			metrics.NewsIngested.WithLabelValues("added").Inc()
		default:
			metrics.NewsIngested.WithLabelValues("duplicate").Inc()
		}
	}

	log.WithField("added", added).Infof("processed %d items", len(items))
	return nil
}
