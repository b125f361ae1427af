// Package server exposes the app screens and actions as a JSON HTTP API.
package server

import (
	"embed"
	"io/fs"
	"net/http"

	"stakevoice/internal/detail"
	"stakevoice/internal/directory"
	"stakevoice/internal/download"
	"stakevoice/internal/feedback"
	"stakevoice/internal/logger"
	"stakevoice/internal/session"
	"stakevoice/internal/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed static
var staticFS embed.FS

// Deps are the components behind the handlers.
type Deps struct {
	Store      store.Store
	Sessions   *session.Manager
	Directory  *directory.Directory
	Detail     *detail.Loader
	Feedback   *feedback.Service
	History    *feedback.History
	Downloader *download.Downloader
}

// Server holds the handler dependencies.
type Server struct {
	Deps
	forms *feedback.Forms
	log   *logger.Entry
	mux   *http.ServeMux
}

func NewServer(d Deps) *Server {
	s := &Server{
		Deps:  d,
		forms: feedback.NewForms(d.Feedback, 0),
		log:   logger.Component("server"),
		mux:   http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.handle("GET /api/start", s.Start)

	s.handle("POST /api/auth/signin", s.SignIn)
	s.handle("POST /api/auth/signup", s.SignUp)
	s.handle("POST /api/auth/signout", s.SignOut)
	s.handle("GET /api/auth/me", s.Me)

	s.handle("GET /api/companies", s.ListCompanies)
	s.handle("GET /api/companies/stream", s.StreamCompanies)
	s.handle("GET /api/companies/{id}", s.CompanyDetail)
	s.handle("POST /api/companies/{id}/reports/{reportID}/download", s.DownloadReport)
	s.handle("GET /api/companies/{id}/feedback-form", s.FeedbackForm)
	s.handle("POST /api/companies/{id}/feedbacks", s.SubmitFeedback)
	s.handle("GET /api/me/feedbacks", s.MyFeedbacks)

	s.handle("GET /health", s.HealthCheck)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	static, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, instrument(pattern, authenticate(s.Sessions, h)))
}

// Handler is the mux with request id and logging applied.
func (s *Server) Handler() http.Handler {
	return RequestIDMiddleware(LoggingMiddleware(s.mux))
}

// HealthCheck answers 200 OK when the store is reachable, else 503.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		s.log.WithError(err).Warn("health check failed")
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("OK"))
}
