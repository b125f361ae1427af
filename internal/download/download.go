// Package download saves ESG report files in the background.
package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"stakevoice/internal/apperr"
	"stakevoice/internal/logger"
	"stakevoice/internal/metrics"
	"stakevoice/internal/queue"
)

const (
	MsgNoReport = "Selecione um relatório"
	MsgStarted  = "Download iniciado..."
	MsgBadURL   = "Endereço do relatório inválido"
	MsgFailed   = "Erro ao iniciar download"
)

const defaultExt = ".pdf"

// Job is one queued download.
type Job struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Downloader hands download jobs to the worker pool.
type Downloader struct {
	pub   queue.Publisher
	queue string
	log   *logger.Entry
}

func NewDownloader(pub queue.Publisher, queueName string) *Downloader {
	return &Downloader{pub: pub, queue: queueName, log: logger.Component("download")}
}

// Download queues fileURL to be saved as displayName. It returns once the
// job is queued; the worker reports the outcome through its Notifier.
func (d *Downloader) Download(ctx context.Context, fileURL, displayName string) error {
	fileURL = strings.TrimSpace(fileURL)
	if fileURL == "" {
		return apperr.Validation(MsgNoReport)
	}
	u, err := url.Parse(fileURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.Validation(MsgBadURL)
	}

	body, err := json.Marshal(Job{URL: fileURL, Name: displayName})
	if err != nil {
		return err
	}
	if err := d.pub.Publish(ctx, d.queue, body); err != nil {
		return apperr.Write(MsgFailed, fmt.Errorf("queue download: %w", err))
	}
	metrics.Downloads.WithLabelValues("queued").Inc()
	d.log.WithFields(logger.Fields{"url": fileURL, "name": displayName}).Info("download queued")
	return nil
}

// Result is the outcome of one job.
type Result struct {
	Job  Job
	Path string
	Err  error
}

type Notifier interface {
	Notify(ctx context.Context, r Result)
}

// LogNotifier reports finished downloads in the log and the metrics.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, r Result) {
	log := logger.Component("download").WithFields(logger.Fields{"url": r.Job.URL, "name": r.Job.Name})
	if r.Err != nil {
		metrics.Downloads.WithLabelValues("failed").Inc()
		log.WithError(r.Err).Error("download failed")
		return
	}
	metrics.Downloads.WithLabelValues("saved").Inc()
	log.WithField("path", r.Path).Info("download completed")
}

// Worker fetches queued reports into a fixed directory.
type Worker struct {
	dir    string
	client *http.Client
	notify Notifier
}

func NewWorker(dir string, client *http.Client, n Notifier) *Worker {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	if n == nil {
		n = LogNotifier{}
	}
	return &Worker{dir: dir, client: client, notify: n}
}

// HandleTask runs one job. Its error only marks the message as failed;
// the job is not retried.
func (w *Worker) HandleTask(ctx context.Context, body []byte) error {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		err = fmt.Errorf("decode job: %w", err)
		w.notify.Notify(ctx, Result{Err: err})
		return err
	}

	p, err := w.fetch(ctx, job)
	w.notify.Notify(ctx, Result{Job: job, Path: p, Err: err})
	return err
}

func (w *Worker) fetch(ctx context.Context, job Job) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", job.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("get %s: unexpected status %s", job.URL, resp.Status)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(w.dir, ".download-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("save %s: %w", job.URL, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	return keep(tmp.Name(), filepath.Join(w.dir, FileName(job.Name, job.URL)))
}

// keep links src under dst, or under dst with a -1, -2, ... suffix when
// that name is taken. Earlier downloads are never overwritten.
func keep(src, dst string) (string, error) {
	ext := filepath.Ext(dst)
	base := strings.TrimSuffix(dst, ext)
	for i := 0; ; i++ {
		p := dst
		if i > 0 {
			p = fmt.Sprintf("%s-%d%s", base, i, ext)
		}
		err := os.Link(src, p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
}

// FileName builds a safe file name from the report title, taking the
// extension from the URL path.
func FileName(displayName, fileURL string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == ' ', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, displayName)
	name = strings.Trim(name, " ._")
	if name == "" {
		name = "relatorio"
	}

	ext := defaultExt
	if u, err := url.Parse(fileURL); err == nil {
		if e := path.Ext(u.Path); len(e) > 1 && len(e) <= 5 {
			ext = strings.ToLower(e)
		}
	}
	if strings.HasSuffix(strings.ToLower(name), ext) {
		return name
	}
	return name + ext
}
