// Package store defines the document store the app reads and writes.
//
// The layout follows the hosted backend: a companies collection whose
// documents own news, reports and feedbacks sub-collections, plus users.
package store

import (
	"context"
	"errors"

	"stakevoice/internal/models"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned when a unique document already exists.
	ErrExists = errors.New("document already exists")
)

// CompanySnapshot is a full replacement of the companies collection.
// Err is set instead of Companies when the backend failed to produce it.
type CompanySnapshot struct {
	Companies []models.Company
	Err       error
}

type Users interface {
	// CreateUser stores u and returns it with its id. ErrExists when the email is taken.
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id string) (models.User, error)
}

type Companies interface {
	ListCompanies(ctx context.Context) ([]models.Company, error)
	// WatchCompanies emits the current snapshot and one more on every change.
	// The channel is closed once ctx is done.
	WatchCompanies(ctx context.Context) (<-chan CompanySnapshot, error)
	Company(ctx context.Context, id string) (models.Company, error)
	News(ctx context.Context, companyID string) ([]models.News, error)
	Reports(ctx context.Context, companyID string) ([]models.Report, error)
}

type Feedbacks interface {
	// AddFeedback appends fb to its company's feedbacks. When fb carries a
	// submission token already used on that company, the stored record is
	// returned and nothing is written.
	AddFeedback(ctx context.Context, fb models.Feedback) (models.Feedback, error)
	// FeedbackByUser queries feedbacks of every company by author id.
	FeedbackByUser(ctx context.Context, userID string) ([]models.Feedback, error)
}

// NewsWriter is used by the out-of-band news ingest only.
type NewsWriter interface {
	// AddNews appends n unless a news item with the same link exists.
	// It reports whether n was written.
	AddNews(ctx context.Context, n models.News) (bool, error)
}

// Store is the full backend used by the server.
type Store interface {
	Users
	Companies
	Feedbacks
	NewsWriter
	Ping(ctx context.Context) error
	Close() error
}
