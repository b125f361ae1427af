// Package feedback validates and stores stakeholder feedback and lists a
// user's own submissions.
package feedback

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"stakevoice/internal/apperr"
	"stakevoice/internal/logger"
	"stakevoice/internal/metrics"
	"stakevoice/internal/models"
	"stakevoice/internal/view"

	"github.com/go-playground/validator/v10"
)

const (
	MsgUnauthenticated = "Erro: Usuário não autenticado!"
	MsgNoCompany       = "Erro: Empresa não encontrada!"
	MsgBadSender       = "Selecione quem está enviando o feedback"
	MsgBadCategory     = "Selecione uma categoria"
	MsgSubmitFailed    = "Erro ao enviar feedback"
	MsgSent            = "Feedback enviado!"
	MsgInProgress      = "Enviando feedback..."
)

// DefaultCategory is the only category the form offers out of the box.
const DefaultCategory = "Sustentabilidade"

// Draft is what the user has typed into the form so far.
type Draft struct {
	SentBy      models.SenderRole `json:"sent_by" validate:"sender_role"`
	Category    string            `json:"category" validate:"required"`
	Report      string            `json:"report"`
	IsAnonymous bool              `json:"is_anonymous"`
}

// Writer appends a feedback under its company.
type Writer interface {
	AddFeedback(ctx context.Context, fb models.Feedback) (models.Feedback, error)
}

type Service struct {
	w          Writer
	categories []string
	validate   *validator.Validate
	now        func() time.Time
	log        *logger.Entry
}

func NewService(w Writer, categories []string) *Service {
	if len(categories) == 0 {
		categories = []string{DefaultCategory}
	}
	v := validator.New()
	_ = v.RegisterValidation("sender_role", func(fl validator.FieldLevel) bool {
		return models.SenderRole(fl.Field().String()).Valid()
	})
	return &Service{
		w:          w,
		categories: slices.Clone(categories),
		validate:   v,
		now:        time.Now,
		log:        logger.Component("feedback"),
	}
}

func (s *Service) Categories() []string { return slices.Clone(s.categories) }

// NewDraft is the form as first shown: supplier, first category, no text.
func (s *Service) NewDraft() Draft {
	return Draft{SentBy: models.Supplier, Category: s.categories[0]}
}

// Submit stores the draft as a feedback by user on companyID. A non-empty
// token makes the call idempotent per company.
func (s *Service) Submit(ctx context.Context, user *models.User, companyID string, d Draft, token string) (models.Feedback, error) {
	if user == nil {
		metrics.FeedbackSubmissions.WithLabelValues("invalid").Inc()
		return models.Feedback{}, apperr.Validation(MsgUnauthenticated)
	}
	if strings.TrimSpace(companyID) == "" {
		metrics.FeedbackSubmissions.WithLabelValues("invalid").Inc()
		return models.Feedback{}, apperr.Validation(MsgNoCompany)
	}
	if err := s.check(d); err != nil {
		metrics.FeedbackSubmissions.WithLabelValues("invalid").Inc()
		return models.Feedback{}, err
	}

	fb, err := s.w.AddFeedback(ctx, models.Feedback{
		CompanyID:       companyID,
		SentBy:          d.SentBy,
		Category:        d.Category,
		Report:          d.Report,
		IsAnonymous:     d.IsAnonymous,
		CreatedAt:       s.now().UnixMilli(),
		Rating:          0,
		UserID:          user.ID,
		SubmissionToken: token,
	})
	if err != nil {
		metrics.FeedbackSubmissions.WithLabelValues("failed").Inc()
		s.log.WithError(err).WithField("company_id", companyID).Error("feedback write failed")
		return models.Feedback{}, apperr.Write(MsgSubmitFailed+": "+err.Error(), err)
	}

	metrics.FeedbackSubmissions.WithLabelValues("ok").Inc()
	s.log.WithFields(logger.Fields{"company_id": companyID, "feedback_id": fb.ID}).Info("feedback stored")
	return fb, nil
}

func (s *Service) check(d Draft) error {
	if err := s.validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Field() == "SentBy" {
					return apperr.Validation(MsgBadSender)
				}
			}
		}
		return apperr.Validation(MsgBadCategory)
	}
	if !slices.Contains(s.categories, d.Category) {
		return apperr.Validation(MsgBadCategory)
	}
	return nil
}

// Reader finds feedback across every company.
type Reader interface {
	FeedbackByUser(ctx context.Context, userID string) ([]models.Feedback, error)
}

type History struct {
	r   Reader
	log *logger.Entry
}

func NewHistory(r Reader) *History {
	return &History{r: r, log: logger.Component("history")}
}

// LoadMine lists the user's feedback, newest first. Without a user no
// query runs and the view stays loading.
func (h *History) LoadMine(ctx context.Context, user *models.User) view.FeedbackHistory {
	if user == nil {
		return view.Loading()
	}
	fbs, err := h.r.FeedbackByUser(ctx, user.ID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", user.ID).Error("feedback query failed")
		return view.Empty(view.MsgHistoryFailed)
	}
	slices.SortStableFunc(fbs, func(a, b models.Feedback) int {
		switch {
		case a.CreatedAt > b.CreatedAt:
			return -1
		case a.CreatedAt < b.CreatedAt:
			return 1
		}
		return 0
	})
	return view.History(fbs)
}
