package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CMSgov/denial-review-app/conf"
	"github.com/CMSgov/denial-review-app/denials/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ClientTestSuite struct {
	suite.Suite
	ts     *httptest.Server
	mux    *http.ServeMux
	client *Client
}

func (s *ClientTestSuite) SetupTest() {
	s.mux = http.NewServeMux()
	s.ts = httptest.NewServer(s.mux)
	s.client = NewClient(testConfig(s.ts.URL + "/api"))
}

func (s *ClientTestSuite) TearDownTest() {
	s.ts.Close()
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func testConfig(baseURL string) conf.Config {
	return conf.Config{
		BaseURL:       baseURL,
		HealthPath:    "/health",
		UploadTimeout: 5 * time.Second,
	}
}

func (s *ClientTestSuite) TestSendJSON() {
	s.mux.HandleFunc("/api/Denials/1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(s.T(), "application/json", r.Header.Get("Accept"))
		assert.NotEmpty(s.T(), r.Header.Get(requestIDHeader))
		assert.Empty(s.T(), r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		fmt.Fprint(w, `{"id": 1, "status": "New"}`)
	})

	resp, err := s.client.Send(context.Background(), http.MethodGet, "/Denials/1", nil)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), map[string]interface{}{"id": 1.0, "status": "New"}, resp.Data)
}

func (s *ClientTestSuite) TestSendNoContent() {
	s.mux.HandleFunc("/api/Denials/1/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	resp, err := s.client.Send(context.Background(), http.MethodPut, "/Denials/1/status", map[string]string{"status": "Resolved"})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), map[string]interface{}{}, resp.Data)
}

func (s *ClientTestSuite) TestSendText() {
	s.mux.HandleFunc("/api/notes", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("\xef\xbb\xbfplain notes"))
	})

	resp, err := s.client.Send(context.Background(), http.MethodGet, "/notes", nil)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "plain notes", resp.Data)
}

func (s *ClientTestSuite) TestSendErrorMessageFromBody() {
	s.mux.HandleFunc("/api/Denials/9", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Denial 9 not found"}`)
	})

	_, err := s.client.Send(context.Background(), http.MethodGet, "/Denials/9", nil)
	require.Error(s.T(), err)
	assert.IsType(s.T(), &RequestError{}, err)
	assert.Equal(s.T(), "Denial 9 not found", err.Error())
}

func (s *ClientTestSuite) TestSendErrorStatusLine() {
	s.mux.HandleFunc("/api/Denials/9", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `<html>boom</html>`)
	})

	_, err := s.client.Send(context.Background(), http.MethodGet, "/Denials/9", nil)
	require.Error(s.T(), err)
	assert.Equal(s.T(), "HTTP 500: Internal Server Error", err.Error())
}

func (s *ClientTestSuite) TestSendNetworkError() {
	c := NewClient(testConfig("http://127.0.0.1:1/api"))
	_, err := c.Send(context.Background(), http.MethodGet, "/Denials", nil)
	require.Error(s.T(), err)
	assert.Equal(s.T(), constants.NetworkErr, err.Error())
}

func (s *ClientTestSuite) TestSendContextTimeout() {
	s.mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.client.Ping(ctx)
	require.Error(s.T(), err)
	assert.Contains(s.T(), strings.ToLower(err.Error()), "timeout")
}

func (s *ClientTestSuite) TestListDenialsQuery() {
	s.mux.HandleFunc("/api/Denials", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(s.T(), "InReview,Resolved", q.Get("status"))
		assert.Equal(s.T(), "2024-01-01", q.Get("dateFrom"))
		assert.Equal(s.T(), "", q.Get("dateTo"))
		assert.Equal(s.T(), "North,South", q.Get("location"))
		_, hasPriority := q["priority"]
		assert.False(s.T(), hasPriority)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id": 1}]`)
	})

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data, err := s.client.ListDenials(context.Background(), Filter{
		Statuses:   []string{"InReview", "Resolved"},
		DateFrom:   &from,
		Locations:  []string{"North", " ", "South"},
		Priorities: []string{},
	})
	require.NoError(s.T(), err)
	assert.Len(s.T(), data, 1)
}

func (s *ClientTestSuite) TestUpdateStatusBody() {
	s.mux.HandleFunc("/api/Denials/42/status", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(s.T(), http.MethodPut, r.Method)
		var body map[string]string
		require.NoError(s.T(), json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(s.T(), "Appeal Filed", body["status"])
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "42", "status": "Appeal Filed"}`)
	})

	out, err := s.client.UpdateStatus(context.Background(), "42", "Appeal Filed")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Appeal Filed", out["status"])
}

func (s *ClientTestSuite) TestTriggerRCAAndAppeal() {
	s.mux.HandleFunc("/api/Denials/5/rca", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(s.T(), http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"rcaResult": {"analysis": "ok"}}`)
	})
	s.mux.HandleFunc("/api/Denials/5/appeal", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status": "Ready to Submit", "jobId": 3}`)
	})

	rca, err := s.client.TriggerRCA(context.Background(), "5")
	require.NoError(s.T(), err)
	assert.Contains(s.T(), rca, "rcaResult")

	appeal, err := s.client.GenerateAppeal(context.Background(), "5")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Ready to Submit", appeal["status"])
}

func (s *ClientTestSuite) TestGetDocument() {
	s.mux.HandleFunc("/api/documents/77", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="auth.pdf"`)
		w.Write([]byte("%PDF-1.4"))
	})

	doc, err := s.client.GetDocument(context.Background(), "77")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "application/pdf", doc.ContentType)
	assert.Equal(s.T(), "auth.pdf", doc.FileName)
	assert.Equal(s.T(), []byte("%PDF-1.4"), doc.Content)

	_, err = s.client.GetDocument(context.Background(), "missing")
	require.Error(s.T(), err)
	assert.Contains(s.T(), err.Error(), "404")
}

func (s *ClientTestSuite) TestUploadBundle() {
	content := bytes.Repeat([]byte("z"), 256*1024)
	s.mux.HandleFunc("/api/Denials", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(s.T(), http.MethodPost, r.Method)
		file, header, err := r.FormFile("file")
		require.NoError(s.T(), err)
		defer file.Close()
		got, _ := ioutil.ReadAll(file)
		assert.Equal(s.T(), "bundle.zip", header.Filename)
		assert.Equal(s.T(), len(content), len(got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 101, "status": "New"}`)
	})

	var seen []int
	out, err := s.client.UploadBundle(context.Background(), "bundle.zip", bytes.NewReader(content), int64(len(content)),
		func(p int) { seen = append(seen, p) })
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 101.0, out["id"])

	require.NotEmpty(s.T(), seen)
	assert.Equal(s.T(), 100, seen[len(seen)-1])
	for i := 1; i < len(seen); i++ {
		assert.Greater(s.T(), seen[i], seen[i-1])
	}
}

func (s *ClientTestSuite) TestUploadBundleRejected() {
	s.mux.HandleFunc("/api/Denials", func(w http.ResponseWriter, r *http.Request) {
		ioutil.ReadAll(r.Body)
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	})

	var seen []int
	_, err := s.client.UploadBundle(context.Background(), "bundle.zip", strings.NewReader("data"), 4,
		func(p int) { seen = append(seen, p) })
	require.Error(s.T(), err)
	assert.Contains(s.T(), err.Error(), "413")
	assert.NotContains(s.T(), seen, 100)
}

func (s *ClientTestSuite) TestUploadTimeout() {
	s.mux.HandleFunc("/api/Denials", func(w http.ResponseWriter, r *http.Request) {
		ioutil.ReadAll(r.Body)
		time.Sleep(300 * time.Millisecond)
	})

	cfg := testConfig(s.ts.URL + "/api")
	cfg.UploadTimeout = 50 * time.Millisecond
	c := NewClient(cfg)

	_, err := c.UploadBundle(context.Background(), "bundle.zip", strings.NewReader("data"), 4, nil)
	require.Error(s.T(), err)
	assert.Contains(s.T(), strings.ToLower(err.Error()), "timeout")
}

func (s *ClientTestSuite) TestUploadTimeoutWhileReadingBody() {
	s.mux.HandleFunc("/api/Denials", func(w http.ResponseWriter, r *http.Request) {
		ioutil.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": `)
		w.(http.Flusher).Flush()
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	})

	cfg := testConfig(s.ts.URL + "/api")
	cfg.UploadTimeout = 100 * time.Millisecond
	c := NewClient(cfg)

	var reported []int
	_, err := c.UploadBundle(context.Background(), "bundle.zip", strings.NewReader("data"), 4, func(p int) {
		reported = append(reported, p)
	})
	require.Error(s.T(), err)
	assert.IsType(s.T(), &RequestError{}, err)
	assert.Equal(s.T(), fmt.Sprintf(constants.UploadTimeoutErr, cfg.UploadTimeout), err.Error())
	assert.NotContains(s.T(), reported, 100)
}

func (s *ClientTestSuite) TestAttachDocument() {
	s.mux.HandleFunc("/api/Denials/5/documents", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(s.T(), r.ParseMultipartForm(1<<20))
		assert.Equal(s.T(), "medical_records", r.FormValue("type"))
		_, header, err := r.FormFile("file")
		require.NoError(s.T(), err)
		assert.Equal(s.T(), "chart.pdf", header.Filename)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "d1"}`)
	})

	out, err := s.client.AttachDocument(context.Background(), "5", "medical_records", "chart.pdf", strings.NewReader("pdf"), 3)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "d1", out["id"])
}

func TestProgressReporterDeduplicates(t *testing.T) {
	var seen []int
	p := newProgressReporter(func(pct int) { seen = append(seen, pct) })
	p.bytes(10, 100)
	p.bytes(10, 100)
	p.bytes(5, 100)
	p.bytes(100, 100)
	p.bytes(100, 100)
	p.complete()
	p.complete()
	assert.Equal(t, []int{10, 99, 100}, seen)
}
