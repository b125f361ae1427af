// Package detail loads one company with its news and reports.
package detail

import (
	"context"
	"errors"
	"strings"

	"stakevoice/internal/apperr"
	"stakevoice/internal/logger"
	"stakevoice/internal/models"
	"stakevoice/internal/store"

	"golang.org/x/sync/errgroup"
)

const (
	MsgLoadFailed = "Erro ao carregar empresa"
	MsgNotFound   = "Empresa não encontrada"
)

// Source is the read side of the company store.
type Source interface {
	Company(ctx context.Context, id string) (models.Company, error)
	News(ctx context.Context, companyID string) ([]models.News, error)
	Reports(ctx context.Context, companyID string) ([]models.Report, error)
}

// Detail is the company screen data.
type Detail struct {
	Company models.Company
	News    []models.News
	Reports []models.Report
}

type Loader struct {
	src Source
	log *logger.Entry
}

func NewLoader(src Source) *Loader {
	return &Loader{src: src, log: logger.Component("detail")}
}

func (l *Loader) LoadCompany(ctx context.Context, id string) (models.Company, error) {
	if strings.TrimSpace(id) == "" {
		return models.Company{}, apperr.NotFound(MsgNotFound, store.ErrNotFound)
	}
	c, err := l.src.Company(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Company{}, apperr.NotFound(MsgNotFound, err)
	}
	if err != nil {
		return models.Company{}, apperr.Fetch(MsgLoadFailed, err)
	}
	return c, nil
}

func (l *Loader) LoadNews(ctx context.Context, companyID string) ([]models.News, error) {
	return l.src.News(ctx, companyID)
}

func (l *Loader) LoadReports(ctx context.Context, companyID string) ([]models.Report, error) {
	return l.src.Reports(ctx, companyID)
}

// Load fetches the three parts concurrently. Only a failed company fetch
// fails the load; news and report failures leave those lists empty.
func (l *Loader) Load(ctx context.Context, id string) (Detail, error) {
	var (
		d Detail
		g errgroup.Group
	)
	log := l.log.WithField("company_id", id)

	g.Go(func() error {
		c, err := l.LoadCompany(ctx, id)
		d.Company = c
		return err
	})
	g.Go(func() error {
		news, err := l.LoadNews(ctx, id)
		if err != nil {
			log.WithError(err).Warn("news fetch failed")
			return nil
		}
		d.News = news
		return nil
	})
	g.Go(func() error {
		reports, err := l.LoadReports(ctx, id)
		if err != nil {
			log.WithError(err).Warn("reports fetch failed")
			return nil
		}
		d.Reports = reports
		return nil
	})

	if err := g.Wait(); err != nil {
		return Detail{}, err
	}
	if d.News == nil {
		d.News = []models.News{}
	}
	if d.Reports == nil {
		d.Reports = []models.Report{}
	}
	return d, nil
}
