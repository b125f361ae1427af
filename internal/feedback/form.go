package feedback

import (
	"context"
	"sync"
	"time"

	"stakevoice/internal/apperr"
	"stakevoice/internal/models"
	"stakevoice/internal/nav"

	"github.com/google/uuid"
)

type State int

const (
	Editing State = iota
	Submitting
)

func (s State) String() string {
	if s == Submitting {
		return "submitting"
	}
	return "editing"
}

// Outcome is what a successful submit shows the user.
type Outcome struct {
	Feedback models.Feedback `json:"feedback"`
	Message  string          `json:"message"`
	Navigate string          `json:"navigate"`
}

// Form is one open create-feedback screen. Each form carries a submission
// token that survives failed attempts of the same draft, so a retry after a
// lost response does not store the feedback twice. Changing the draft after
// a failure starts a new token.
type Form struct {
	svc       *Service
	companyID string

	mu        sync.Mutex
	state     State
	draft     Draft
	token     string
	attempted *Draft
	touched   time.Time
}

func (s *Service) NewForm(companyID string) *Form {
	return &Form{svc: s, companyID: companyID, draft: s.NewDraft(), token: uuid.NewString()}
}

func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Form) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// Edit replaces the draft, and the submission token when one is given.
// Not allowed while a submit is running.
func (f *Form) Edit(d Draft, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Submitting {
		return apperr.Validation(MsgInProgress)
	}
	switch {
	case token != "":
		f.token = token
	case f.attempted != nil && *f.attempted != d:
		f.token = uuid.NewString()
		f.attempted = nil
	}
	f.draft = d
	return nil
}

// Submit sends the current draft. Success clears the form; failure keeps
// it for another try.
func (f *Form) Submit(ctx context.Context, user *models.User) (Outcome, error) {
	f.mu.Lock()
	if f.state == Submitting {
		f.mu.Unlock()
		return Outcome{}, apperr.Validation(MsgInProgress)
	}
	f.state = Submitting
	draft, token := f.draft, f.token
	f.mu.Unlock()

	fb, err := f.svc.Submit(ctx, user, f.companyID, draft, token)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = Editing
	if err != nil {
		f.attempted = &draft
		return Outcome{}, err
	}
	f.draft = f.svc.NewDraft()
	f.token = uuid.NewString()
	f.attempted = nil
	return Outcome{Feedback: fb, Message: MsgSent, Navigate: nav.Back}, nil
}

// DefaultFormIdle is how long an untouched form is kept.
const DefaultFormIdle = 30 * time.Minute

// Forms tracks the open form of each user and company so concurrent
// submits from the same user hit the same guard. Forms idle for longer
// than the idle timeout are dropped on the next Open.
type Forms struct {
	svc  *Service
	idle time.Duration

	mu    sync.Mutex
	forms map[formKey]*Form
}

type formKey struct{ userID, companyID string }

// NewForms returns an empty registry; idle ≤ 0 means DefaultFormIdle.
func NewForms(svc *Service, idle time.Duration) *Forms {
	if idle <= 0 {
		idle = DefaultFormIdle
	}
	return &Forms{svc: svc, idle: idle, forms: make(map[formKey]*Form)}
}

// Open returns the user's form for companyID, creating it on first use.
func (fs *Forms) Open(userID, companyID string) *Form {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	now := time.Now()
	fs.sweep(now)

	k := formKey{userID, companyID}
	f, ok := fs.forms[k]
	if !ok {
		f = fs.svc.NewForm(companyID)
		fs.forms[k] = f
	}
	f.mu.Lock()
	f.touched = now
	f.mu.Unlock()
	return f
}

// Draft returns the draft of an open form, or a fresh one without
// registering a form.
func (fs *Forms) Draft(userID, companyID string) Draft {
	fs.mu.Lock()
	f, ok := fs.forms[formKey{userID, companyID}]
	fs.mu.Unlock()
	if !ok {
		return fs.svc.NewDraft()
	}
	return f.Draft()
}

// Close forgets the form, typically after a successful submit.
func (fs *Forms) Close(userID, companyID string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.forms, formKey{userID, companyID})
}

func (fs *Forms) Len() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.forms)
}

// sweep drops idle forms. A form in the middle of a submit is kept.
func (fs *Forms) sweep(now time.Time) {
	for k, f := range fs.forms {
		f.mu.Lock()
		stale := f.state == Editing && now.Sub(f.touched) > fs.idle
		f.mu.Unlock()
		if stale {
			delete(fs.forms, k)
		}
	}
}
