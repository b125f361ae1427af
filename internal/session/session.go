// Package session signs users in and out and issues identity tokens.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stakevoice/internal/apperr"
	"stakevoice/internal/logger"
	"stakevoice/internal/models"
	"stakevoice/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User-visible auth messages.
const (
	MsgMissingFields  = "Preencha todos os campos"
	MsgBadEmail       = "O endereço de e-mail está mal formatado."
	MsgBadCredentials = "E-mail ou senha inválidos."
	MsgEmailInUse     = "Este e-mail já está em uso por outra conta."
	MsgWeakPassword   = "A senha é muito curta."
	MsgUnavailable    = "Não foi possível autenticar. Tente novamente."
)

var ErrInvalidToken = errors.New("invalid token")

// Session is the outcome of a successful sign-in.
type Session struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type Options struct {
	Secret            string
	TTL               time.Duration
	MinPasswordLength int
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

type Manager struct {
	users     store.Users
	revoked   Revocations
	secret    []byte
	ttl       time.Duration
	minLength int
	cost      int
	validate  *validator.Validate
	now       func() time.Time
	log       *logger.Entry
}

func NewManager(users store.Users, revoked Revocations, opts Options) *Manager {
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Manager{
		users:     users,
		revoked:   revoked,
		secret:    []byte(opts.Secret),
		ttl:       opts.TTL,
		minLength: opts.MinPasswordLength,
		cost:      cost,
		validate:  validator.New(),
		now:       time.Now,
		log:       logger.Component("session"),
	}
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (m *Manager) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if err := m.checkInput(email, password); err != nil {
		return Session{}, err
	}

	u, err := m.users.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, apperr.Auth(MsgBadCredentials, nil)
	}
	if err != nil {
		return Session{}, apperr.Auth(MsgUnavailable, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Session{}, apperr.Auth(MsgBadCredentials, nil)
	}

	s, err := m.issue(u)
	if err != nil {
		return Session{}, apperr.Auth(MsgUnavailable, err)
	}
	m.log.WithField("user_id", u.ID).Info("signed in")
	return s, nil
}

// SignUp creates the account and then signs in with the same pair.
func (m *Manager) SignUp(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if err := m.checkInput(email, password); err != nil {
		return Session{}, err
	}
	if len(password) < m.minLength {
		return Session{}, apperr.Auth(MsgWeakPassword, nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return Session{}, apperr.Auth(MsgUnavailable, err)
	}
	u, err := m.users.CreateUser(ctx, models.User{Email: email, PasswordHash: string(hash)})
	if errors.Is(err, store.ErrExists) {
		return Session{}, apperr.AccountExists(MsgEmailInUse, err)
	}
	if err != nil {
		return Session{}, apperr.Auth(MsgUnavailable, err)
	}
	m.log.WithField("user_id", u.ID).Info("account created")

	return m.SignIn(ctx, email, password)
}

// SignOut revokes the token until it would have expired anyway.
func (m *Manager) SignOut(ctx context.Context, token string) error {
	c, err := m.parse(token)
	if err != nil {
		return nil
	}
	ttl := c.ExpiresAt.Time.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	if err := m.revoked.Revoke(ctx, c.ID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	m.log.WithField("user_id", c.Subject).Info("signed out")
	return nil
}

// CurrentUser resolves a token to its user. Expired, revoked or
// malformed tokens yield false.
func (m *Manager) CurrentUser(ctx context.Context, token string) (models.User, bool) {
	c, err := m.parse(token)
	if err != nil {
		return models.User{}, false
	}
	revoked, err := m.revoked.IsRevoked(ctx, c.ID)
	if err != nil {
		m.log.WithError(err).Warn("revocation lookup failed")
		return models.User{}, false
	}
	if revoked {
		return models.User{}, false
	}
	u, err := m.users.UserByID(ctx, c.Subject)
	if err != nil {
		return models.User{}, false
	}
	return u, true
}

func (m *Manager) checkInput(email, password string) error {
	if email == "" || password == "" {
		return apperr.Auth(MsgMissingFields, nil)
	}
	if err := m.validate.Var(email, "email"); err != nil {
		return apperr.Auth(MsgBadEmail, nil)
	}
	return nil
}

func (m *Manager) issue(u models.User) (Session, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: signed, User: u, ExpiresAt: exp}, nil
}

func (m *Manager) parse(token string) (*claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	var c claims
	tok, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return &c, nil
}

type ctxKey struct{}

// WithUser stores the signed-in user on ctx.
func WithUser(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the signed-in user, or nil.
func UserFrom(ctx context.Context) *models.User {
	u, ok := ctx.Value(ctxKey{}).(models.User)
	if !ok {
		return nil
	}
	return &u
}
