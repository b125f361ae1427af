package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stakevoice/internal/logger"
	"stakevoice/internal/models"
	"stakevoice/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const companiesChannel = "companies_changed"

// Database is the PostgreSQL backend of the document store.
type Database struct {
	Pool *pgxpool.Pool

	// RetryDelay is how long WatchCompanies waits before listening again
	// after the notification connection broke.
	RetryDelay time.Duration
}

var _ store.Store = (*Database)(nil)

// NewDB creates a connection pool for connString and returns a Database.
func NewDB(ctx context.Context, connString string) (*Database, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return &Database{Pool: pool, RetryDelay: time.Second}, nil
}

// Close closes the pool.
func (db *Database) Close() error {
	db.Pool.Close()
	return nil
}

func (db *Database) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Migrate creates the tables and the change trigger of the companies table.
func (db *Database) Migrate(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Schema mirrors the document layout: sub-collections carry company_id and
// every document field is nullable.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (lower(email));

CREATE TABLE IF NOT EXISTS companies (
	id TEXT PRIMARY KEY,
	name TEXT,
	sector TEXT,
	note INTEGER,
	image_url TEXT
);

CREATE TABLE IF NOT EXISTS news (
	id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	title TEXT,
	content TEXT,
	stars INTEGER,
	link TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS news_company_link_key ON news (company_id, link) WHERE link IS NOT NULL;

CREATE TABLE IF NOT EXISTS reports (
	id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	title TEXT,
	file_url TEXT
);

CREATE TABLE IF NOT EXISTS feedbacks (
	id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	sent_by TEXT,
	category TEXT,
	report TEXT,
	is_anonymous BOOLEAN,
	created_at BIGINT,
	rating INTEGER,
	user_id TEXT,
	submission_token TEXT
);
CREATE INDEX IF NOT EXISTS feedbacks_user_id_idx ON feedbacks (user_id);
DROP INDEX IF EXISTS feedbacks_submission_key;
CREATE UNIQUE INDEX IF NOT EXISTS feedbacks_author_submission_key ON feedbacks (company_id, user_id, submission_token) WHERE submission_token IS NOT NULL;

CREATE OR REPLACE FUNCTION notify_companies_changed() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('companies_changed', '');
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS companies_changed ON companies;
CREATE TRIGGER companies_changed
	AFTER INSERT OR UPDATE OR DELETE OR TRUNCATE ON companies
	FOR EACH STATEMENT EXECUTE FUNCTION notify_companies_changed();
`

// --- Users ---

func (db *Database) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	u.ID = uuid.NewString()
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO users (id, email, password_hash)
        VALUES ($1, $2, $3)
        RETURNING created_at
    `, u.ID, u.Email, u.PasswordHash).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.User{}, store.ErrExists
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (db *Database) UserByEmail(ctx context.Context, email string) (models.User, error) {
	return db.user(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE lower(email) = lower($1)`, email)
}

func (db *Database) UserByID(ctx context.Context, id string) (models.User, error) {
	return db.user(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id = $1`, id)
}

func (db *Database) user(ctx context.Context, query string, arg string) (models.User, error) {
	var u models.User
	err := db.Pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, store.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// --- Companies ---

func (db *Database) ListCompanies(ctx context.Context) ([]models.Company, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT id, name, sector, note, image_url
        FROM companies
        ORDER BY id
    `)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	companies := []models.Company{}
	for rows.Next() {
		var d models.CompanyDoc
		if err := rows.Scan(&d.ID, &d.Name, &d.Sector, &d.Note, &d.ImageURL); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		companies = append(companies, d.Resolve())
	}
	return companies, rows.Err()
}

func (db *Database) Company(ctx context.Context, id string) (models.Company, error) {
	var d models.CompanyDoc
	err := db.Pool.QueryRow(ctx, `
        SELECT id, name, sector, note, image_url
        FROM companies
        WHERE id = $1
    `, id).Scan(&d.ID, &d.Name, &d.Sector, &d.Note, &d.ImageURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Company{}, store.ErrNotFound
	}
	if err != nil {
		return models.Company{}, fmt.Errorf("get company %s: %w", id, err)
	}
	return d.Resolve(), nil
}

func (db *Database) News(ctx context.Context, companyID string) ([]models.News, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT id, company_id, title, content, stars, link
        FROM news
        WHERE company_id = $1
        ORDER BY id
    `, companyID)
	if err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	defer rows.Close()

	news := []models.News{}
	for rows.Next() {
		var d models.NewsDoc
		if err := rows.Scan(&d.ID, &d.CompanyID, &d.Title, &d.Content, &d.Stars, &d.Link); err != nil {
			return nil, fmt.Errorf("scan news: %w", err)
		}
		news = append(news, d.Resolve())
	}
	return news, rows.Err()
}

func (db *Database) Reports(ctx context.Context, companyID string) ([]models.Report, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT id, company_id, title, file_url
        FROM reports
        WHERE company_id = $1
        ORDER BY id
    `, companyID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		var d models.ReportDoc
		if err := rows.Scan(&d.ID, &d.CompanyID, &d.Title, &d.FileURL); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, d.Resolve())
	}
	return reports, rows.Err()
}

// WatchCompanies listens on the companies_changed channel and re-reads the
// whole table on every notification. A broken listener connection is
// reported as an error snapshot and re-established after RetryDelay.
func (db *Database) WatchCompanies(ctx context.Context) (<-chan store.CompanySnapshot, error) {
	conn, err := db.listen(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan store.CompanySnapshot, 1)
	go func() {
		defer close(ch)
		log := logger.Component("db").WithField("channel", companiesChannel)

		for {
			db.emit(ctx, ch)
			var err error
			for err == nil {
				if _, err = conn.Conn().WaitForNotification(ctx); err == nil {
					db.emit(ctx, ch)
				}
			}
			// The connection still holds LISTEN state, keep it out of the pool.
			_ = conn.Hijack().Close(context.Background())
			if ctx.Err() != nil {
				return
			}

			log.Warnf("Listener connection lost: %v", err)
			offer(ch, store.CompanySnapshot{Err: err})

			conn = nil
			for conn == nil {
				select {
				case <-ctx.Done():
					return
				case <-time.After(db.RetryDelay):
				}
				if conn, err = db.listen(ctx); err != nil {
					offer(ch, store.CompanySnapshot{Err: err})
				}
			}
		}
	}()
	return ch, nil
}

func (db *Database) listen(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listener: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+companiesChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", companiesChannel, err)
	}
	return conn, nil
}

func (db *Database) emit(ctx context.Context, ch chan store.CompanySnapshot) {
	companies, err := db.ListCompanies(ctx)
	if ctx.Err() != nil {
		return
	}
	offer(ch, store.CompanySnapshot{Companies: companies, Err: err})
}

// offer replaces a pending snapshot the reader has not taken yet.
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

// --- Feedbacks ---

func (db *Database) AddFeedback(ctx context.Context, fb models.Feedback) (models.Feedback, error) {
	var token *string
	if fb.SubmissionToken != "" {
		token = &fb.SubmissionToken
	}

	fb.ID = uuid.NewString()
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO feedbacks (id, company_id, sent_by, category, report, is_anonymous, created_at, rating, user_id, submission_token)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (company_id, user_id, submission_token) WHERE submission_token IS NOT NULL DO NOTHING
    `, fb.ID, fb.CompanyID, string(fb.SentBy), fb.Category, fb.Report, fb.IsAnonymous, fb.CreatedAt, fb.Rating, fb.UserID, token)
	if err != nil {
		return models.Feedback{}, fmt.Errorf("insert feedback: %w", err)
	}
	if token == nil {
		return fb, nil
	}

	// Either our row or the one that won the conflict.
	rows, err := db.Pool.Query(ctx, feedbackSelect+` WHERE company_id = $1 AND user_id = $2 AND submission_token = $3`, fb.CompanyID, fb.UserID, *token)
	if err != nil {
		return models.Feedback{}, fmt.Errorf("get feedback: %w", err)
	}
	list, err := scanFeedbacks(rows)
	if err != nil {
		return models.Feedback{}, err
	}
	if len(list) == 0 {
		return models.Feedback{}, store.ErrNotFound
	}
	return list[0], nil
}

func (db *Database) FeedbackByUser(ctx context.Context, userID string) ([]models.Feedback, error) {
	rows, err := db.Pool.Query(ctx, feedbackSelect+` WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query feedbacks: %w", err)
	}
	return scanFeedbacks(rows)
}

const feedbackSelect = `
        SELECT id, company_id, sent_by, category, report, is_anonymous, created_at, rating, user_id, submission_token
        FROM feedbacks`

func scanFeedbacks(rows pgx.Rows) ([]models.Feedback, error) {
	defer rows.Close()
	out := []models.Feedback{}
	for rows.Next() {
		var d models.FeedbackDoc
		if err := rows.Scan(&d.ID, &d.CompanyID, &d.SentBy, &d.Category, &d.Report,
			&d.IsAnonymous, &d.CreatedAt, &d.Rating, &d.UserID, &d.SubmissionToken); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		out = append(out, d.Resolve())
	}
	return out, rows.Err()
}

// --- News ingest ---

// AddNews saves one news item; an item whose link is already stored for the
// company is skipped.
func (db *Database) AddNews(ctx context.Context, n models.News) (bool, error) {
	var link *string
	if n.Link != "" {
		link = &n.Link
	}
	tag, err := db.Pool.Exec(ctx, `
        INSERT INTO news (id, company_id, title, content, stars, link)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (company_id, link) WHERE link IS NOT NULL DO NOTHING
    `, uuid.NewString(), n.CompanyID, n.Title, n.Content, n.Stars, link)
	if err != nil {
		return false, fmt.Errorf("insert news: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
