// Package testutils provides fixtures and an in-memory backend for exercising the gateway,
// view controllers and HTTP surface without a real denials API.
package testutils

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/CMSgov/denial-review-app/conf"
	"github.com/go-chi/chi/v5"
)

// Backend is a fake denials API served by httptest. Routes live under /api, matching the
// real backend's layout.
type Backend struct {
	Server *httptest.Server

	mu        sync.Mutex
	records   map[string]map[string]interface{}
	order     []string
	documents map[string][]byte
	failures  map[string]int
	requests  []string
	nextID    int
}

func NewBackend(records ...map[string]interface{}) *Backend {
	b := &Backend{
		records:   make(map[string]map[string]interface{}),
		documents: make(map[string][]byte),
		failures:  make(map[string]int),
		nextID:    1000,
	}
	for _, r := range records {
		b.Put(r)
	}

	r := chi.NewRouter()
	r.Use(b.record)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", b.health)
		r.Get("/Denials", b.list)
		r.Post("/Denials", b.upload)
		r.Get("/Denials/{id}", b.get)
		r.Put("/Denials/{id}/status", b.updateStatus)
		r.Post("/Denials/{id}/documents", b.attach)
		r.Post("/Denials/{id}/rca", b.rca)
		r.Post("/Denials/{id}/appeal", b.appeal)
		r.Get("/documents/{id}", b.document)
	})
	b.Server = httptest.NewServer(r)
	return b
}

// URL is the API base URL, including the /api prefix.
func (b *Backend) URL() string {
	return b.Server.URL + "/api"
}

// Config returns an application config pointing at b.
func (b *Backend) Config() conf.Config {
	cfg := conf.Default()
	cfg.BaseURL = b.URL()
	cfg.SuccessDelay = 10 * time.Millisecond
	cfg.HealthInterval = 50 * time.Millisecond
	cfg.HealthTimeout = time.Second
	return cfg
}

func (b *Backend) Close() {
	b.Server.Close()
}

// Put stores or replaces a record keyed by its "id".
func (b *Backend) Put(record map[string]interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := fmt.Sprint(record["id"])
	if _, ok := b.records[id]; !ok {
		b.order = append(b.order, id)
	}
	b.records[id] = record
}

// Record returns a copy of the stored record.
func (b *Backend) Record(id string) map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]interface{})
	for k, v := range b.records[id] {
		out[k] = v
	}
	return out
}

// PutDocument stores raw bytes served at /documents/{id}.
func (b *Backend) PutDocument(id string, content []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.documents[id] = content
}

// Fail makes the named operation answer with status until Recover is called. Operation
// names are health, list, get, status, upload, documents, rca, appeal and document.
func (b *Backend) Fail(op string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = status
}

func (b *Backend) Recover(op string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, op)
}

// Requests lists "METHOD path?query" for every request received.
func (b *Backend) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		entry := r.Method + " " + r.URL.Path
		if r.URL.RawQuery != "" {
			entry += "?" + r.URL.RawQuery
		}
		b.requests = append(b.requests, entry)
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) failed(w http.ResponseWriter, op string) bool {
	b.mu.Lock()
	status, ok := b.failures[op]
	b.mu.Unlock()
	if !ok {
		return false
	}
	w.WriteHeader(status)
	return true
}

func (b *Backend) health(w http.ResponseWriter, r *http.Request) {
	if b.failed(w, "health") {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (b *Backend) list(w http.ResponseWriter, r *http.Request) {
	if b.failed(w, "list") {
		return
	}
	var statuses []string
	if s := r.URL.Query().Get("status"); s != "" {
		statuses = strings.Split(s, ",")
	}

	b.mu.Lock()
	out := []map[string]interface{}{}
	for _, id := range b.order {
		rec := b.records[id]
		if len(statuses) == 0 || contains(statuses, fmt.Sprint(rec["status"])) {
			out = append(out, rec)
		}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) get(w http.ResponseWriter, r *http.Request) {
	if b.failed(w, "get") {
		return
	}
	rec, ok := b.lookup(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Denial not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (b *Backend) updateStatus(w http.ResponseWriter, r *http.Request) {
	if b.failed(w, "status") {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "status is required"})
		return
	}

	id := chi.URLParam(r, "id")
	b.mu.Lock()
	rec, ok := b.records[id]
	if ok {
		rec["status"] = body.Status
	}
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Denial not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (b *Backend) upload(w http.ResponseWriter, r *http.Request) {
	if b.failed(w, "upload") {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "file is required"})
		return
	}
	defer file.Close()
	if _, err := ioutil.ReadAll(file); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	b.mu.Lock()
	b.nextID++
	id := fmt.Sprintf("D-%d", b.nextID)
	b.mu.Unlock()

	rec := RandomRecord(id, "New")
	rec["sourceFile"] = header.Filename
	b.Put(rec)
	writeJSON(w, http.StatusCreated, rec)
}

func (b *Backend) attach(w http.ResponseWriter, r *http.Request) {
	if b.failed(w, "documents") {
		return
	}
	id := chi.URLParam(r, "id")
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "file is required"})
		return
	}
	defer file.Close()
	content, _ := ioutil.ReadAll(file)

	b.mu.Lock()
	rec, ok := b.records[id]
	if !ok {
		b.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Denial not found"})
		return
	}
	b.nextID++
	docID := fmt.Sprintf("DOC-%d", b.nextID)
	b.documents[docID] = content
	doc := map[string]interface{}{
		"id":         docID,
		"fileName":   header.Filename,
		"type":       r.FormValue("type"),
		"uploadedAt": time.Now().UTC().Format(time.RFC3339),
	}
	docs, _ := rec["documents"].([]interface{})
	rec["documents"] = append(docs, doc)
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, doc)
}

func (b *Backend) rca(w http.ResponseWriter, r *http.Request) {
	if b.failed(w, "rca") {
		return
	}
	rec, ok := b.lookup(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Denial not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rcaResult": map[string]interface{}{
			"analysis":        fmt.Sprintf("Claim %v was denied: %v", rec["claimNumber"], rec["denialReason"]),
			"recommendations": "Correct the claim and resubmit with supporting documentation.",
			"status":          "completed",
			"jobId":           b.nextID,
			"completedAt":     time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (b *Backend) appeal(w http.ResponseWriter, r *http.Request) {
	if b.failed(w, "appeal") {
		return
	}
	rec, ok := b.lookup(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Denial not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":               "Ready to Submit",
		"emailDraft":           fmt.Sprintf("Appeal for claim %v on behalf of %v.", rec["claimNumber"], rec["patientName"]),
		"supportDocumentLinks": []string{},
		"missingInformation":   []string{},
		"generatedAt":          time.Now().UTC().Format(time.RFC3339),
		"jobId":                7,
	})
}

func (b *Backend) document(w http.ResponseWriter, r *http.Request) {
	if b.failed(w, "document") {
		return
	}
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	content, ok := b.documents[id]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Document not found"})
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, id))
	_, _ = w.Write(content)
}

func (b *Backend) lookup(id string) (map[string]interface{}, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[id]
	return rec, ok
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
