// Package directory keeps a live view of the company collection.
package directory

import (
	"context"
	"sync"

	"stakevoice/internal/apperr"
	"stakevoice/internal/logger"
	"stakevoice/internal/metrics"
	"stakevoice/internal/models"
	"stakevoice/internal/store"
)

const MsgLoadFailed = "Erro ao carregar empresas"

// Watcher is the part of the store the directory listens to.
type Watcher interface {
	WatchCompanies(ctx context.Context) (<-chan store.CompanySnapshot, error)
}

type Directory struct {
	src Watcher
	log *logger.Entry

	mu     sync.RWMutex
	latest []models.Company
	ready  bool
}

func New(src Watcher) *Directory {
	return &Directory{src: src, log: logger.Component("directory")}
}

// Subscription is one live listener. It stops on Release or when the
// context given to Subscribe ends.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Release stops delivery. It is safe to call more than once and from
// inside the update callback.
func (s *Subscription) Release() { s.cancel() }

// Done is closed once the subscription has delivered its last snapshot.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Subscribe calls onUpdate with the full company list on start and after
// every change. Snapshots that fail are logged and skipped.
func (d *Directory) Subscribe(ctx context.Context, onUpdate func([]models.Company)) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	ch, err := d.src.WatchCompanies(ctx)
	if err != nil {
		cancel()
		return nil, apperr.Fetch(MsgLoadFailed, err)
	}

	sub := &Subscription{cancel: cancel, done: make(chan struct{})}
	metrics.ActiveSubscriptions.Inc()

	go func() {
		defer close(sub.done)
		defer metrics.ActiveSubscriptions.Dec()
		for snap := range ch {
			if snap.Err != nil {
				d.log.WithError(snap.Err).Warn("company snapshot failed")
				continue
			}
			d.keep(snap.Companies)
			if ctx.Err() != nil {
				continue
			}
			onUpdate(snap.Companies)
		}
	}()
	return sub, nil
}

// Latest returns the last good snapshot, and false before the first one.
func (d *Directory) Latest() ([]models.Company, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Company, len(d.latest))
	copy(out, d.latest)
	return out, d.ready
}

func (d *Directory) keep(companies []models.Company) {
	d.mu.Lock()
	d.latest = companies
	d.ready = true
	d.mu.Unlock()
	metrics.DirectoryCompanies.Set(float64(len(companies)))
}
