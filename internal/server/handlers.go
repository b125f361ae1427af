package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"stakevoice/internal/apperr"
	"stakevoice/internal/download"
	"stakevoice/internal/feedback"
	"stakevoice/internal/models"
	"stakevoice/internal/nav"
	"stakevoice/internal/session"
	"stakevoice/internal/view"
)

const msgNotSignedIn = "Usuário não autenticado"

type navResponse struct {
	Navigate string `json:"navigate"`
	Message  string `json:"message,omitempty"`
}

// Start tells the client which screen to open first.
func (s *Server) Start(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, navResponse{Navigate: nav.Start(session.UserFrom(r.Context()) != nil)}, http.StatusOK)
}

// --- Auth ---

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	session.Session
	Navigate string `json:"navigate"`
}

type authFunc func(ctx context.Context, email, password string) (session.Session, error)

func (s *Server) SignIn(w http.ResponseWriter, r *http.Request) {
	s.signInWith(w, r, s.Sessions.SignIn, http.StatusOK)
}

func (s *Server) SignUp(w http.ResponseWriter, r *http.Request) {
	s.signInWith(w, r, s.Sessions.SignUp, http.StatusCreated)
}

func (s *Server) signInWith(w http.ResponseWriter, r *http.Request, fn authFunc, code int) {
	var c credentials
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := fn(r.Context(), c.Email, c.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, sessionResponse{Session: sess, Navigate: nav.Home}, code)
}

func (s *Server) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.SignOut(r.Context(), bearerToken(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, navResponse{Navigate: nav.Login}, http.StatusOK)
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	u := session.UserFrom(r.Context())
	if u == nil {
		writeError(w, r, apperr.Auth(msgNotSignedIn, session.ErrInvalidToken))
		return
	}
	writeJSON(w, u, http.StatusOK)
}

// --- Companies ---

type companiesResponse struct {
	Companies []view.CompanyCard `json:"companies"`
}

// ListCompanies serves the live directory, reading the store directly
// until the first snapshot arrives.
func (s *Server) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, ok := s.Directory.Latest()
	if !ok {
		var err error
		companies, err = s.Store.ListCompanies(r.Context())
		if err != nil {
			writeError(w, r, apperr.Fetch("Erro ao carregar empresas", err))
			return
		}
	}
	writeJSON(w, companiesResponse{Companies: view.Cards(companies)}, http.StatusOK)
}

// StreamCompanies pushes the full company list as server-sent events
// until the client goes away.
func (s *Server) StreamCompanies(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates := make(chan []models.Company, 1)
	sub, err := s.Directory.Subscribe(r.Context(), func(cs []models.Company) {
		select {
		case <-updates:
		default:
		}
		updates <- cs
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer sub.Release()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.Done():
			return
		case cs := <-updates:
			data, err := json.Marshal(companiesResponse{Companies: view.Cards(cs)})
			if err != nil {
				s.log.WithError(err).Error("encode snapshot")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: companies\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) CompanyDetail(w http.ResponseWriter, r *http.Request) {
	d, err := s.Detail.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, view.Detail(d.Company, d.News, d.Reports), http.StatusOK)
}

func (s *Server) DownloadReport(w http.ResponseWriter, r *http.Request) {
	companyID, reportID := r.PathValue("id"), r.PathValue("reportID")

	reports, err := s.Detail.LoadReports(r.Context(), companyID)
	if err != nil {
		writeError(w, r, apperr.Fetch("Erro ao carregar relatórios", err))
		return
	}
	var picked models.Report
	for _, rep := range reports {
		if rep.ID == reportID {
			picked = rep
			break
		}
	}

	if err := s.Downloader.Download(r.Context(), picked.FileURL, picked.Title); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, navResponse{Message: download.MsgStarted}, http.StatusAccepted)
}

// --- Feedback ---

func (s *Server) FeedbackForm(w http.ResponseWriter, r *http.Request) {
	companyID := r.PathValue("id")
	c, err := s.Detail.LoadCompany(r.Context(), companyID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	draft := s.Feedback.NewDraft()
	if u := session.UserFrom(r.Context()); u != nil {
		draft = s.forms.Draft(u.ID, companyID)
	}
	writeJSON(w, view.Form(c, s.Feedback.Categories(), draft), http.StatusOK)
}

type feedbackRequest struct {
	SentBy          string `json:"sent_by"`
	Category        string `json:"category"`
	Report          string `json:"report"`
	IsAnonymous     bool   `json:"is_anonymous"`
	SubmissionToken string `json:"submission_token"`
}

func (r feedbackRequest) draft() feedback.Draft {
	role, err := models.ParseSenderRole(r.SentBy)
	if err != nil {
		role = models.SenderRole(r.SentBy)
	}
	return feedback.Draft{SentBy: role, Category: r.Category, Report: r.Report, IsAnonymous: r.IsAnonymous}
}

func (s *Server) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	companyID := r.PathValue("id")

	u := session.UserFrom(r.Context())
	if u == nil {
		_, err := s.Feedback.Submit(r.Context(), nil, companyID, req.draft(), req.SubmissionToken)
		writeError(w, r, err)
		return
	}

	form := s.forms.Open(u.ID, companyID)
	if err := form.Edit(req.draft(), req.SubmissionToken); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := form.Submit(r.Context(), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.forms.Close(u.ID, companyID)
	writeJSON(w, out, http.StatusCreated)
}

func (s *Server) MyFeedbacks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.History.LoadMine(r.Context(), session.UserFrom(r.Context())), http.StatusOK)
}
