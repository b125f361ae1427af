// Package fsstore is the Firestore backend of the document store.
package fsstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"stakevoice/internal/models"
	"stakevoice/internal/store"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	usersCollection     = "users"
	companiesCollection = "companies"
	newsCollection      = "news"
	reportsCollection   = "reports"
	feedbackCollection  = "feedbacks"
)

// Store talks to the companies/users collections of one Firestore project.
type Store struct {
	client *firestore.Client
}

var _ store.Store = (*Store)(nil)

// New connects to projectID. FIRESTORE_EMULATOR_HOST is honored by the SDK.
func New(ctx context.Context, projectID string) (*Store, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.Collection(companiesCollection).Limit(1).Documents(ctx).GetAll()
	return err
}

type userDoc struct {
	Email        string    `firestore:"email"`
	EmailKey     string    `firestore:"email_key"`
	PasswordHash string    `firestore:"password_hash"`
	CreatedAt    time.Time `firestore:"created_at"`
}

func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	users := s.client.Collection(usersCollection)
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	key := strings.ToLower(u.Email)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(users.Where("email_key", "==", key).Limit(1)).GetAll()
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return store.ErrExists
		}
		return tx.Create(users.Doc(u.ID), userDoc{
			Email:        u.Email,
			EmailKey:     key,
			PasswordHash: u.PasswordHash,
			CreatedAt:    u.CreatedAt,
		})
	})
	if errors.Is(err, store.ErrExists) {
		return models.User{}, store.ErrExists
	}
	if err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (models.User, error) {
	docs, err := s.client.Collection(usersCollection).
		Where("email_key", "==", strings.ToLower(email)).
		Limit(1).
		Documents(ctx).GetAll()
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	if len(docs) == 0 {
		return models.User{}, store.ErrNotFound
	}
	return userFrom(docs[0])
}

func (s *Store) UserByID(ctx context.Context, id string) (models.User, error) {
	if id == "" {
		return models.User{}, store.ErrNotFound
	}
	snap, err := s.client.Collection(usersCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return models.User{}, store.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return userFrom(snap)
}

func userFrom(snap *firestore.DocumentSnapshot) (models.User, error) {
	var d userDoc
	if err := snap.DataTo(&d); err != nil {
		return models.User{}, fmt.Errorf("decode user %s: %w", snap.Ref.ID, err)
	}
	return models.User{ID: snap.Ref.ID, Email: d.Email, PasswordHash: d.PasswordHash, CreatedAt: d.CreatedAt}, nil
}

// --- Companies ---

func (s *Store) ListCompanies(ctx context.Context) ([]models.Company, error) {
	docs, err := s.client.Collection(companiesCollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return companiesFrom(docs)
}

// WatchCompanies wraps a snapshot listener on the companies collection.
// The SDK retries transient failures itself, so an error it surfaces ends
// the watch.
func (s *Store) WatchCompanies(ctx context.Context) (<-chan store.CompanySnapshot, error) {
	it := s.client.Collection(companiesCollection).Snapshots(ctx)
	ch := make(chan store.CompanySnapshot, 1)

	go func() {
		defer close(ch)
		defer it.Stop()
		for {
			qs, err := it.Next()
			if ctx.Err() != nil || status.Code(err) == codes.Canceled || errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				offer(ch, store.CompanySnapshot{Err: err})
				return
			}
			docs, err := qs.Documents.GetAll()
			if err != nil {
				offer(ch, store.CompanySnapshot{Err: err})
				continue
			}
			companies, err := companiesFrom(docs)
			offer(ch, store.CompanySnapshot{Companies: companies, Err: err})
		}
	}()
	return ch, nil
}

func (s *Store) Company(ctx context.Context, id string) (models.Company, error) {
	if id == "" {
		return models.Company{}, store.ErrNotFound
	}
	snap, err := s.client.Collection(companiesCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return models.Company{}, store.ErrNotFound
	}
	if err != nil {
		return models.Company{}, fmt.Errorf("get company %s: %w", id, err)
	}
	return companyFrom(snap)
}

func (s *Store) News(ctx context.Context, companyID string) ([]models.News, error) {
	docs, err := s.sub(companyID, newsCollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	news := make([]models.News, 0, len(docs))
	for _, snap := range docs {
		var d models.NewsDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("decode news %s: %w", snap.Ref.ID, err)
		}
		d.ID, d.CompanyID = snap.Ref.ID, companyID
		news = append(news, d.Resolve())
	}
	return news, nil
}

func (s *Store) Reports(ctx context.Context, companyID string) ([]models.Report, error) {
	docs, err := s.sub(companyID, reportsCollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	reports := make([]models.Report, 0, len(docs))
	for _, snap := range docs {
		var d models.ReportDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("decode report %s: %w", snap.Ref.ID, err)
		}
		d.ID, d.CompanyID = snap.Ref.ID, companyID
		reports = append(reports, d.Resolve())
	}
	return reports, nil
}

func (s *Store) sub(companyID, name string) *firestore.CollectionRef {
	return s.client.Collection(companiesCollection).Doc(companyID).Collection(name)
}

func companyFrom(snap *firestore.DocumentSnapshot) (models.Company, error) {
	var d models.CompanyDoc
	if err := snap.DataTo(&d); err != nil {
		return models.Company{}, fmt.Errorf("decode company %s: %w", snap.Ref.ID, err)
	}
	d.ID = snap.Ref.ID
	return d.Resolve(), nil
}

func companiesFrom(docs []*firestore.DocumentSnapshot) ([]models.Company, error) {
	companies := make([]models.Company, 0, len(docs))
	for _, snap := range docs {
		c, err := companyFrom(snap)
		if err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, nil
}

// --- Feedbacks ---

// AddFeedback uses a document id derived from the submission token, so a
// repeated submit collides on Create instead of adding a second record.
func (s *Store) AddFeedback(ctx context.Context, fb models.Feedback) (models.Feedback, error) {
	feedbacks := s.sub(fb.CompanyID, feedbackCollection)

	if fb.SubmissionToken == "" {
		ref, _, err := feedbacks.Add(ctx, fb.Doc())
		if err != nil {
			return models.Feedback{}, fmt.Errorf("add feedback: %w", err)
		}
		fb.ID = ref.ID
		return fb, nil
	}

	ref := feedbacks.Doc(hashID(fb.UserID + ":" + fb.SubmissionToken))
	_, err := ref.Create(ctx, fb.Doc())
	if status.Code(err) == codes.AlreadyExists {
		snap, err := ref.Get(ctx)
		if err != nil {
			return models.Feedback{}, fmt.Errorf("get feedback: %w", err)
		}
		return feedbackFrom(snap)
	}
	if err != nil {
		return models.Feedback{}, fmt.Errorf("add feedback: %w", err)
	}
	fb.ID = ref.ID
	return fb, nil
}

// FeedbackByUser runs a collection group query over every company.
func (s *Store) FeedbackByUser(ctx context.Context, userID string) ([]models.Feedback, error) {
	it := s.client.CollectionGroup(feedbackCollection).Where("user_id", "==", userID).Documents(ctx)
	defer it.Stop()

	out := []models.Feedback{}
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query feedbacks: %w", err)
		}
		fb, err := feedbackFrom(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, nil
}

func feedbackFrom(snap *firestore.DocumentSnapshot) (models.Feedback, error) {
	var d models.FeedbackDoc
	if err := snap.DataTo(&d); err != nil {
		return models.Feedback{}, fmt.Errorf("decode feedback %s: %w", snap.Ref.ID, err)
	}
	d.ID = snap.Ref.ID
	if company := snap.Ref.Parent.Parent; company != nil {
		d.CompanyID = company.ID
	}
	return d.Resolve(), nil
}

// --- News ingest ---

func (s *Store) AddNews(ctx context.Context, n models.News) (bool, error) {
	doc := models.NewsDoc{
		Title:   models.Ptr(n.Title),
		Content: models.Ptr(n.Content),
		Stars:   models.Ptr(int64(n.Stars)),
	}
	news := s.sub(n.CompanyID, newsCollection)
	if n.Link == "" {
		if _, _, err := news.Add(ctx, doc); err != nil {
			return false, fmt.Errorf("add news: %w", err)
		}
		return true, nil
	}

	doc.Link = models.Ptr(n.Link)
	_, err := news.Doc(hashID(n.Link)).Create(ctx, doc)
	if status.Code(err) == codes.AlreadyExists {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("add news: %w", err)
	}
	return true, nil
}

func hashID(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func offer(ch chan store.CompanySnapshot, snap store.CompanySnapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
