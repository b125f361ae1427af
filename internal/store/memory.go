package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"stakevoice/internal/models"

	"github.com/google/uuid"
)

// Memory is an in-process Store used for development and tests.
type Memory struct {
	mu        sync.Mutex
	users     map[string]models.User
	companies map[string]models.CompanyDoc
	news      map[string][]models.NewsDoc
	reports   map[string][]models.ReportDoc
	feedbacks map[string][]models.FeedbackDoc
	watchers  map[chan CompanySnapshot]struct{}
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:     make(map[string]models.User),
		companies: make(map[string]models.CompanyDoc),
		news:      make(map[string][]models.NewsDoc),
		reports:   make(map[string][]models.ReportDoc),
		feedbacks: make(map[string][]models.FeedbackDoc),
		watchers:  make(map[chan CompanySnapshot]struct{}),
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

// --- seeding, the out-of-band side of the backend ---

// PutCompany creates or replaces a company document and notifies watchers.
func (m *Memory) PutCompany(doc models.CompanyDoc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[doc.ID] = doc
	m.broadcastLocked()
}

// DeleteCompany removes a company document and notifies watchers.
func (m *Memory) DeleteCompany(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.companies, id)
	m.broadcastLocked()
}

func (m *Memory) PutNews(doc models.NewsDoc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	m.news[doc.CompanyID] = append(m.news[doc.CompanyID], doc)
}

func (m *Memory) PutReport(doc models.ReportDoc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	m.reports[doc.CompanyID] = append(m.reports[doc.CompanyID], doc)
}

// FeedbackCount returns how many feedbacks are stored under a company.
func (m *Memory) FeedbackCount(companyID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.feedbacks[companyID])
}

// --- Users ---

func (m *Memory) CreateUser(_ context.Context, u models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return models.User{}, ErrExists
		}
	}
	u.ID = uuid.NewString()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (m *Memory) UserByID(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

// --- Companies ---

func (m *Memory) ListCompanies(context.Context) ([]models.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(), nil
}

func (m *Memory) WatchCompanies(ctx context.Context) (<-chan CompanySnapshot, error) {
	ch := make(chan CompanySnapshot, 1)

	m.mu.Lock()
	m.watchers[ch] = struct{}{}
	ch <- CompanySnapshot{Companies: m.snapshotLocked()}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers, ch)
		close(ch)
		m.mu.Unlock()
	}()
	return ch, nil
}

func (m *Memory) Company(_ context.Context, id string) (models.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.companies[id]
	if !ok {
		return models.Company{}, ErrNotFound
	}
	return doc.Resolve(), nil
}

func (m *Memory) News(_ context.Context, companyID string) ([]models.News, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.News, 0, len(m.news[companyID]))
	for _, d := range m.news[companyID] {
		out = append(out, d.Resolve())
	}
	return out, nil
}

func (m *Memory) Reports(_ context.Context, companyID string) ([]models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Report, 0, len(m.reports[companyID]))
	for _, d := range m.reports[companyID] {
		out = append(out, d.Resolve())
	}
	return out, nil
}

// --- Feedbacks ---

func (m *Memory) AddFeedback(_ context.Context, fb models.Feedback) (models.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fb.SubmissionToken != "" {
		for _, d := range m.feedbacks[fb.CompanyID] {
			if d.SubmissionToken != nil && *d.SubmissionToken == fb.SubmissionToken &&
				d.UserID != nil && *d.UserID == fb.UserID {
				return d.Resolve(), nil
			}
		}
	}
	fb.ID = uuid.NewString()
	m.feedbacks[fb.CompanyID] = append(m.feedbacks[fb.CompanyID], fb.Doc())
	return fb, nil
}

func (m *Memory) FeedbackByUser(_ context.Context, userID string) ([]models.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Feedback
	for _, docs := range m.feedbacks {
		for _, d := range docs {
			if d.UserID != nil && *d.UserID == userID {
				out = append(out, d.Resolve())
			}
		}
	}
	return out, nil
}

// --- News ingest ---

func (m *Memory) AddNews(_ context.Context, n models.News) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.Link != "" {
		for _, d := range m.news[n.CompanyID] {
			if d.Link != nil && *d.Link == n.Link {
				return false, nil
			}
		}
	}
	m.news[n.CompanyID] = append(m.news[n.CompanyID], models.NewsDoc{
		ID:        uuid.NewString(),
		CompanyID: n.CompanyID,
		Title:     models.Ptr(n.Title),
		Content:   models.Ptr(n.Content),
		Stars:     models.Ptr(int64(n.Stars)),
		Link:      models.Ptr(n.Link),
	})
	return true, nil
}

func (m *Memory) snapshotLocked() []models.Company {
	out := make([]models.Company, 0, len(m.companies))
	for _, d := range m.companies {
		out = append(out, d.Resolve())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// broadcastLocked hands every watcher the newest snapshot, replacing one
// it has not consumed yet.
func (m *Memory) broadcastLocked() {
	snap := CompanySnapshot{Companies: m.snapshotLocked()}
	for ch := range m.watchers {
		for {
			select {
			case ch <- snap:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}
