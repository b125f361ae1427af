// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stakevoice_http_requests_total",
		Help: "HTTP requests by route pattern and status code.",
	}, []string{"route", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stakevoice_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	FeedbackSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stakevoice_feedback_submissions_total",
		Help: "Feedback submissions by result (ok, invalid, failed).",
	}, []string{"result"})

	Downloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stakevoice_report_downloads_total",
		Help: "Report downloads by result (queued, saved, failed).",
	}, []string{"result"})

	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stakevoice_directory_subscriptions",
		Help: "Open company directory subscriptions.",
	})

	DirectoryCompanies = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stakevoice_directory_companies",
		Help: "Companies in the latest directory snapshot.",
	})

	NewsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stakevoice_news_ingested_total",
		Help: "Feed items processed by the news ingest, by result (added, duplicate, failed).",
	}, []string{"result"})
)
