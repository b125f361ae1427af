package download_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"stakevoice/internal/apperr"
	"stakevoice/internal/download"
	"stakevoice/internal/queue"

	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu      sync.Mutex
	results []download.Result
}

func (n *recordingNotifier) Notify(_ context.Context, r download.Result) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, r)
}

func TestDownloadRequiresReport(t *testing.T) {
	d := download.NewDownloader(queue.NewMemory(1), "downloads")

	err := d.Download(context.Background(), "  ", "ESG 2024")
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	require.Equal(t, download.MsgNoReport, apperr.Message(err, ""))

	err = d.Download(context.Background(), "ftp://host/file.pdf", "ESG 2024")
	require.Equal(t, download.MsgBadURL, apperr.Message(err, ""))
}

type capture struct{ bodies [][]byte }

func (c *capture) Publish(_ context.Context, _ string, body []byte) error {
	c.bodies = append(c.bodies, body)
	return nil
}

func TestDownloadQueuesJob(t *testing.T) {
	pub := &capture{}
	d := download.NewDownloader(pub, "downloads")

	require.NoError(t, d.Download(context.Background(), "https://cdn.example.com/r.pdf", "ESG 2024"))
	require.Len(t, pub.bodies, 1)

	var job download.Job
	require.NoError(t, json.Unmarshal(pub.bodies[0], &job))
	require.Equal(t, download.Job{URL: "https://cdn.example.com/r.pdf", Name: "ESG 2024"}, job)
}

func TestWorkerSavesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 report"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	n := &recordingNotifier{}
	w := download.NewWorker(dir, srv.Client(), n)

	body, _ := json.Marshal(download.Job{URL: srv.URL + "/files/esg.pdf", Name: "Relatório ESG 2024"})
	require.NoError(t, w.HandleTask(context.Background(), body))

	want := filepath.Join(dir, "Relatório ESG 2024.pdf")
	data, err := os.ReadFile(want)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 report", string(data))

	require.Len(t, n.results, 1)
	require.NoError(t, n.results[0].Err)
	require.Equal(t, want, n.results[0].Path)
}

func TestWorkerKeepsEarlierDownloads(t *testing.T) {
	var n int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n++
		fmt.Fprintf(w, "versão %d", n)
	}))
	defer srv.Close()

	dir := t.TempDir()
	w := download.NewWorker(dir, srv.Client(), &recordingNotifier{})
	body, _ := json.Marshal(download.Job{URL: srv.URL + "/esg.pdf", Name: "ESG"})
	for i := 0; i < 3; i++ {
		require.NoError(t, w.HandleTask(context.Background(), body))
	}

	for name, want := range map[string]string{"ESG.pdf": "versão 1", "ESG-1.pdf": "versão 2", "ESG-2.pdf": "versão 3"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		require.Equal(t, want, string(data))
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}

func TestWorkerReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	dir := t.TempDir()
	n := &recordingNotifier{}
	w := download.NewWorker(dir, srv.Client(), n)

	body, _ := json.Marshal(download.Job{URL: srv.URL + "/missing.pdf", Name: "x"})
	require.Error(t, w.HandleTask(context.Background(), body))
	require.Len(t, n.results, 1)
	require.Error(t, n.results[0].Err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)

	require.Error(t, w.HandleTask(context.Background(), []byte("{not json")))
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name, url, want string
	}{
		{"ESG 2024", "https://x/r.pdf", "ESG 2024.pdf"},
		{"ESG 2024", "https://x/download?id=1", "ESG 2024.pdf"},
		{"Planilha", "https://x/data.XLSX", "Planilha.xlsx"},
		{"a/b\\c:d", "https://x/r.pdf", "a_b_c_d.pdf"},
		{"report.pdf", "https://x/r.pdf", "report.pdf"},
		{"../..", "https://x/r.pdf", "relatorio.pdf"},
		{"", "", "relatorio.pdf"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, download.FileName(tt.name, tt.url), tt.name)
	}
}
