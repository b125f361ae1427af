package server_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stakevoice/internal/detail"
	"stakevoice/internal/directory"
	"stakevoice/internal/download"
	"stakevoice/internal/feedback"
	"stakevoice/internal/models"
	"stakevoice/internal/queue"
	"stakevoice/internal/server"
	"stakevoice/internal/session"
	"stakevoice/internal/store"
	"stakevoice/internal/view"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	mem     *store.Memory
	queue   *queue.Memory
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	mem.PutCompany(models.CompanyDoc{ID: "c1", Name: models.Ptr("Acme"), Sector: models.Ptr("Energy"), Note: models.Ptr(int64(3))})
	mem.PutReport(models.ReportDoc{ID: "r1", CompanyID: "c1", Title: models.Ptr("ESG 2024"), FileURL: models.Ptr("https://cdn.example.com/esg.pdf")})
	mem.PutReport(models.ReportDoc{ID: "r2", CompanyID: "c1", Title: models.Ptr("Sem arquivo")})

	q := queue.NewMemory(8)
	svc := feedback.NewService(mem, nil)
	srv := server.NewServer(server.Deps{
		Store: mem,
		Sessions: session.NewManager(mem, session.NewMemoryRevocations(), session.Options{
			Secret:     "test",
			TTL:        time.Hour,
			BcryptCost: bcrypt.MinCost,
		}),
		Directory:  directory.New(mem),
		Detail:     detail.NewLoader(mem),
		Feedback:   svc,
		History:    feedback.NewHistory(mem),
		Downloader: download.NewDownloader(q, "report_downloads"),
	})
	return &fixture{mem: mem, queue: q, handler: srv.Handler()}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func (f *fixture) signUp(t *testing.T, email string) string {
	t.Helper()
	w := f.do(t, "POST", "/api/auth/signup", "", map[string]string{"email": email, "password": "pw123"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Token    string `json:"token"`
		Navigate string `json:"navigate"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "homeScreen", resp.Navigate)
	return resp.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type apiError struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func TestAuthFlow(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "GET", "/api/start", "", nil)
	require.Equal(t, "login", decode[map[string]string](t, w)["navigate"])

	token := f.signUp(t, "a@b.com")
	require.NotEmpty(t, w.Header().Get(server.RequestIDHeader))

	w = f.do(t, "POST", "/api/auth/signin", "", map[string]string{"email": "a@b.com", "password": "pw123"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, "GET", "/api/start", token, nil)
	require.Equal(t, "homeScreen", decode[map[string]string](t, w)["navigate"])

	w = f.do(t, "GET", "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "a@b.com", decode[models.User](t, w).Email)

	w = f.do(t, "POST", "/api/auth/signout", token, nil)
	require.Equal(t, "login", decode[map[string]string](t, w)["navigate"])

	w = f.do(t, "GET", "/api/auth/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthErrors(t *testing.T) {
	f := newFixture(t)
	f.signUp(t, "a@b.com")

	w := f.do(t, "POST", "/api/auth/signup", "", map[string]string{"email": "a@b.com", "password": "pw123"})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, session.MsgEmailInUse, decode[apiError](t, w).Error)

	w = f.do(t, "POST", "/api/auth/signin", "", map[string]string{"email": "a@b.com", "password": "nope"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, session.MsgBadCredentials, decode[apiError](t, w).Error)

	w = f.do(t, "POST", "/api/auth/signin", "", nil)
	require.Equal(t, session.MsgMissingFields, decode[apiError](t, w).Error)
}

func TestCompanies(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "GET", "/api/companies", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		Companies []view.CompanyCard `json:"companies"`
	}](t, w)
	require.Len(t, resp.Companies, 1)
	require.Equal(t, "Setor: Energy", resp.Companies[0].SectorLabel)
	require.Equal(t, "companyDetails/c1", resp.Companies[0].Navigate)
}

func TestCompanyDetail(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "GET", "/api/companies/c1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	d := decode[view.CompanyDetail](t, w)
	require.Equal(t, "Acme", d.Name)
	require.Equal(t, "Setor: Energy", d.SectorLabel)
	require.Equal(t, 3, d.Stars)
	require.Equal(t, view.PlaceholderImage, d.Image)
	require.Len(t, d.Reports, 2)
	require.Empty(t, d.News)

	w = f.do(t, "GET", "/api/companies/missing", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, detail.MsgNotFound, decode[apiError](t, w).Error)
}

func TestFeedbackSubmission(t *testing.T) {
	f := newFixture(t)
	body := map[string]any{"sent_by": "client", "category": "Sustentabilidade", "report": "", "is_anonymous": true}

	w := f.do(t, "POST", "/api/companies/c1/feedbacks", "", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, feedback.MsgUnauthenticated, decode[apiError](t, w).Error)
	require.Zero(t, f.mem.FeedbackCount("c1"))

	token := f.signUp(t, "a@b.com")

	w = f.do(t, "GET", "/api/companies/c1/feedback-form", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	form := decode[view.FeedbackForm](t, w)
	require.Equal(t, view.PlaceholderImage, form.Image)
	require.Len(t, form.Senders, 2)

	w = f.do(t, "POST", "/api/companies/c1/feedbacks", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	out := decode[feedback.Outcome](t, w)
	require.Equal(t, feedback.MsgSent, out.Message)
	require.Equal(t, "back", out.Navigate)
	require.Equal(t, models.Client, out.Feedback.SentBy)
	require.Equal(t, 1, f.mem.FeedbackCount("c1"))

	w = f.do(t, "GET", "/api/me/feedbacks", token, nil)
	h := decode[view.FeedbackHistory](t, w)
	require.Equal(t, view.StateLoaded, h.State)
	require.Len(t, h.Items, 1)
	require.Equal(t, "Anônimo: Sim", h.Items[0].Anonymous)

	w = f.do(t, "POST", "/api/companies/c1/feedbacks", token, map[string]any{"sent_by": "Investidor", "category": "Sustentabilidade"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, feedback.MsgBadSender, decode[apiError](t, w).Error)
}

func TestFeedbackSubmissionToken(t *testing.T) {
	f := newFixture(t)
	token := f.signUp(t, "a@b.com")
	body := map[string]any{"sent_by": "Fornecedor", "category": "Sustentabilidade", "submission_token": "tap-1"}

	for i := 0; i < 2; i++ {
		w := f.do(t, "POST", "/api/companies/c1/feedbacks", token, body)
		require.Equal(t, http.StatusCreated, w.Code)
	}
	require.Equal(t, 1, f.mem.FeedbackCount("c1"))
}

func TestSubmissionTokenDoesNotCrossUsers(t *testing.T) {
	f := newFixture(t)
	alice := f.signUp(t, "alice@b.com")
	bob := f.signUp(t, "bob@b.com")

	w := f.do(t, "POST", "/api/companies/c1/feedbacks", alice, map[string]any{
		"sent_by": "Fornecedor", "category": "Sustentabilidade", "report": "alice secret", "is_anonymous": true, "submission_token": "tok",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	fromAlice := decode[feedback.Outcome](t, w).Feedback

	w = f.do(t, "POST", "/api/companies/c1/feedbacks", bob, map[string]any{
		"sent_by": "Cliente", "category": "Sustentabilidade", "report": "bob text", "submission_token": "tok",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	fromBob := decode[feedback.Outcome](t, w).Feedback
	require.NotEqual(t, fromAlice.ID, fromBob.ID)
	require.NotEqual(t, fromAlice.UserID, fromBob.UserID)
	require.Equal(t, "bob text", fromBob.Report)
	require.Equal(t, 2, f.mem.FeedbackCount("c1"))

	w = f.do(t, "GET", "/api/me/feedbacks", bob, nil)
	h := decode[view.FeedbackHistory](t, w)
	require.Len(t, h.Items, 1)
}

func TestMyFeedbacksStates(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "GET", "/api/me/feedbacks", "", nil)
	require.Equal(t, view.StateLoading, decode[view.FeedbackHistory](t, w).State)

	token := f.signUp(t, "a@b.com")
	w = f.do(t, "GET", "/api/me/feedbacks", token, nil)
	h := decode[view.FeedbackHistory](t, w)
	require.Equal(t, view.StateEmpty, h.State)
	require.Equal(t, view.MsgHistoryEmpty, h.Message)
}

func TestDownloadReport(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "POST", "/api/companies/c1/reports/r1/download", "", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, download.MsgStarted, decode[map[string]string](t, w)["message"])

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	jobs := make(chan download.Job, 1)
	go f.queue.Consumer("report_downloads", 1).Consume(ctx, func(_ context.Context, body []byte) error {
		var j download.Job
		if err := json.Unmarshal(body, &j); err != nil {
			return err
		}
		jobs <- j
		return nil
	})
	select {
	case j := <-jobs:
		require.Equal(t, download.Job{URL: "https://cdn.example.com/esg.pdf", Name: "ESG 2024"}, j)
	case <-ctx.Done():
		t.Fatal("job not queued")
	}

	for _, path := range []string{"/api/companies/c1/reports/r2/download", "/api/companies/c1/reports/nope/download"} {
		w = f.do(t, "POST", path, "", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, download.MsgNoReport, decode[apiError](t, w).Error)
	}
}

func TestHealthAndStatic(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "GET", "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "OK", w.Body.String())

	w = f.do(t, "GET", view.PlaceholderImage, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "image/svg+xml")

	w = f.do(t, "GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "stakevoice_http_requests_total")
}

func TestStreamCompanies(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/companies/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string, 4)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
				events <- data
			}
		}
	}()

	next := func() []view.CompanyCard {
		select {
		case data := <-events:
			var v struct {
				Companies []view.CompanyCard `json:"companies"`
			}
			require.NoError(t, json.Unmarshal([]byte(data), &v))
			return v.Companies
		case <-ctx.Done():
			t.Fatal("no event")
			return nil
		}
	}

	require.Len(t, next(), 1)
	f.mem.PutCompany(models.CompanyDoc{ID: "c2", Name: models.Ptr("Beta")})
	require.Len(t, next(), 2)
}
