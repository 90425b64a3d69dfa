package web

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/CMSgov/denial-review-app/conf"
	"github.com/CMSgov/denial-review-app/denials/analysis"
	"github.com/CMSgov/denial-review-app/denials/client"
	"github.com/CMSgov/denial-review-app/denials/constants"
	"github.com/CMSgov/denial-review-app/denials/health"
	"github.com/CMSgov/denial-review-app/denials/models"
	"github.com/CMSgov/denial-review-app/denials/monitoring"
	"github.com/CMSgov/denial-review-app/denials/upload"
	"github.com/CMSgov/denial-review-app/denials/views"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Multipart overhead allowed on top of the largest accepted file.
const multipartSlack = constants.MiB

const dateLayout = "2006-01-02"

// Server holds everything the BFF handlers need. All of it is built once from Config.
type Server struct {
	cfg      conf.Config
	gateway  *client.Client
	list     *views.ListController
	details  *views.DetailController
	sessions *views.Sessions
	monitor  *health.Monitor
	apm      *monitoring.APM
	uploads  *uploadRegistry
}

func NewServer(cfg conf.Config) *Server {
	gateway := client.NewClient(cfg)
	details := views.NewDetailController(gateway)
	return &Server{
		cfg:      cfg,
		gateway:  gateway,
		list:     views.NewListController(gateway),
		details:  details,
		sessions: views.NewSessions(details, analysis.NewOrchestrator(gateway), cfg.SessionTTL),
		monitor:  health.NewMonitor(gateway, cfg.HealthInterval, cfg.HealthTimeout),
		apm:      monitoring.New(cfg),
		uploads:  newUploadRegistry(gateway, cfg.SuccessDelay),
	}
}

// Start begins background health checks.
func (s *Server) Start() {
	s.monitor.Start()
}

func (s *Server) Stop() {
	s.monitor.Stop()
	s.apm.Shutdown()
}

type errorResponse struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

// writeError maps an error onto a status code. Backend failures are 502: the gateway's
// errors carry only a message, so the backend's own status is not known here.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		viewErr       *views.Error
		reqErr        *client.RequestError
		validationErr *upload.ValidationError
		failure       *upload.Failure
	)

	status := http.StatusInternalServerError
	resp := errorResponse{Message: err.Error()}
	switch {
	case errors.Is(err, upload.ErrInProgress):
		status = http.StatusConflict
	case errors.Is(err, upload.ErrNoFileSelected):
		status = http.StatusBadRequest
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &failure):
		status = http.StatusBadGateway
		resp.Kind = string(failure.Kind)
		resp.Retryable = true
	case errors.As(err, &viewErr):
		switch {
		case viewErr.InProgress:
			status = http.StatusConflict
		case viewErr.Retryable:
			status = http.StatusBadGateway
			resp.Retryable = true
		default:
			status = http.StatusBadRequest
		}
	case errors.As(err, &reqErr):
		status = http.StatusBadGateway
		resp.Retryable = true
	}

	logEntry(r, logrus.Fields{"resp_status": status}).Error(err.Error())
	render.Status(r, status)
	render.JSON(w, r, resp)
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, errorResponse{Message: msg})
}

func (s *Server) getVersion(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"version": constants.Version})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.Report()
	if report.Status == health.StatusDisconnected {
		render.Status(r, http.StatusBadGateway)
	}
	render.JSON(w, r, report)
}

func (s *Server) getIdentity(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.cfg.Identity)
}

func (s *Server) listDenials(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	end := monitoring.Segment(r.Context(), "denials.list")
	view, err := s.list.Fetch(r.Context(), q)
	end()
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

func parseListQuery(r *http.Request) (views.ListQuery, error) {
	values := r.URL.Query()
	q := views.ListQuery{
		Filter: client.Filter{
			Locations:  splitList(values.Get("location")),
			Priorities: splitList(values.Get("priority")),
		},
		Search: values.Get("q"),
	}
	for _, s := range splitList(values.Get("status")) {
		status := models.Status(s)
		if !status.Valid() {
			return q, fmt.Errorf("invalid status %q", s)
		}
		q.Statuses = append(q.Statuses, status)
	}

	var err error
	if q.Filter.DateFrom, err = parseDate(values.Get("dateFrom")); err != nil {
		return q, err
	}
	if q.Filter.DateTo, err = parseDate(values.Get("dateTo")); err != nil {
		return q, err
	}
	return q, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", v)
	}
	return &t, nil
}

// session returns the detail screen session named by the screenId query parameter. Without
// one, the request gets a session of its own that ends with it.
func (s *Server) session(r *http.Request) *views.Session {
	id := chi.URLParam(r, "denialID")
	if screenID := r.URL.Query().Get("screenId"); screenID != "" {
		return s.sessions.Get(screenID, id)
	}
	return s.sessions.New(id)
}

func (s *Server) closeScreen(w http.ResponseWriter, r *http.Request) {
	s.sessions.Close(chi.URLParam(r, "screenID"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getDenial(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	end := monitoring.Segment(r.Context(), "denials.get")
	st, err := sess.Load(r.Context())
	end()
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, st)
}

type statusRequest struct {
	Status models.Status `json:"status"`
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	var body statusRequest
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		badRequest(w, r, "request body must be JSON with a status")
		return
	}

	id := chi.URLParam(r, "denialID")
	end := monitoring.Segment(r.Context(), "denials.status")
	denial, err := s.details.UpdateStatus(r.Context(), id, body.Status)
	end()
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, views.Row{Denial: denial, Badge: models.BadgeFor(denial.Status)})
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	s.runSession(w, r, "denials.rca", (*views.Session).Analyze)
}

func (s *Server) appeal(w http.ResponseWriter, r *http.Request) {
	s.runSession(w, r, "denials.appeal", (*views.Session).Appeal)
}

func (s *Server) runSession(w http.ResponseWriter, r *http.Request, segment string,
	op func(*views.Session, context.Context) (views.SessionState, error)) {

	id := chi.URLParam(r, "denialID")
	end := monitoring.Segment(r.Context(), segment)
	st, err := op(s.session(r), r.Context())
	end()
	if err != nil {
		writeError(w, r, err)
		return
	}
	logEntry(r, logrus.Fields{"denial_id": id}).Info(st.StatusLine)
	render.JSON(w, r, st)
}

func (s *Server) downloadLetter(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	letter := sess.Letter()
	if letter == "" {
		if _, err := sess.Load(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		letter = sess.Letter()
	}
	if letter == "" {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse{Message: "no appeal letter has been generated for this denial"})
		return
	}

	name := "appeal-letter.txt"
	if st := sess.State(); st.Detail != nil {
		name = fmt.Sprintf("appeal-%s.txt", st.Detail.Denial.ClaimNumber)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	render.PlainText(w, r, letter)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	end := monitoring.Segment(r.Context(), "documents.get")
	doc, err := s.gateway.GetDocument(r.Context(), chi.URLParam(r, "documentID"))
	end()
	if err != nil {
		writeError(w, r, err)
		return
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, doc.FileName))
	if _, err := w.Write(doc.Content); err != nil {
		logEntry(r, nil).Errorf("Failed to write document: %s", err.Error())
	}
}

func (s *Server) attachDocument(w http.ResponseWriter, r *http.Request) {
	fh, err := formFile(w, r, constants.MaxUploadSize+multipartSlack)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	docType := r.FormValue("type")
	if docType == "" {
		badRequest(w, r, "document type is required")
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(w, r, errors.Wrap(err, "failed to open uploaded document"))
		return
	}
	defer f.Close()

	id := chi.URLParam(r, "denialID")
	end := monitoring.Segment(r.Context(), "documents.attach")
	doc, err := s.gateway.AttachDocument(r.Context(), id, docType, fh.Filename, f, fh.Size)
	end()
	if err != nil {
		writeError(w, r, err)
		return
	}
	logEntry(r, logrus.Fields{"denial_id": id, "file_name": fh.Filename}).Info("Document attached")
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, doc)
}

type uploadResponse struct {
	Denial   views.Row `json:"denial"`
	Message  string    `json:"message"`
	Advisory string    `json:"advisory,omitempty"`
	UploadID string    `json:"uploadId"`
}

// uploadDenial runs the browser's file through an upload flow. Progress for the upload can
// be polled at /api/uploads/{uploadID} while this request is in flight.
func (s *Server) uploadDenial(w http.ResponseWriter, r *http.Request) {
	uploadID := r.URL.Query().Get("uploadId")
	if uploadID == "" {
		uploadID = "default"
	}

	fh, err := formFile(w, r, constants.MaxUploadSize+multipartSlack)
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "request body too large") {
			msg = constants.FileTooLargeErr
		}
		writeError(w, r, &upload.ValidationError{Msg: msg})
		return
	}

	flow := s.uploads.get(uploadID)
	advisory, err := flow.Select(upload.File{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	end := monitoring.Segment(r.Context(), "denials.upload")
	denial, err := flow.Submit(r.Context())
	end()
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, uploadResponse{
		Denial:   views.Row{Denial: denial, Badge: models.BadgeFor(denial.Status)},
		Message:  upload.SuccessMessage,
		Advisory: advisory,
		UploadID: uploadID,
	})
}

func (s *Server) uploadStatus(w http.ResponseWriter, r *http.Request) {
	flow, ok := s.uploads.lookup(chi.URLParam(r, "uploadID"))
	if !ok {
		render.JSON(w, r, upload.Snapshot{State: upload.StateIdle})
		return
	}
	render.JSON(w, r, flow.Snapshot())
}

func formFile(w http.ResponseWriter, r *http.Request, limit int64) (*multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, errors.Wrap(err, "invalid multipart upload")
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		return nil, errors.New(constants.NoFileSelectedErr)
	}
	return files[0], nil
}

// uploadRegistry keeps one upload flow per browser upload id. A flow is dropped once its
// success delay has passed.
type uploadRegistry struct {
	uploader     upload.Uploader
	successDelay time.Duration

	mu    sync.Mutex
	flows map[string]*upload.Flow
}

func newUploadRegistry(uploader upload.Uploader, successDelay time.Duration) *uploadRegistry {
	return &uploadRegistry{uploader: uploader, successDelay: successDelay, flows: make(map[string]*upload.Flow)}
}

func (u *uploadRegistry) get(id string) *upload.Flow {
	u.mu.Lock()
	defer u.mu.Unlock()
	flow, ok := u.flows[id]
	if !ok {
		var created *upload.Flow
		created = upload.NewFlow(u.uploader, u.successDelay, upload.OnComplete(func(models.Denial) {
			u.mu.Lock()
			defer u.mu.Unlock()
			if u.flows[id] == created {
				delete(u.flows, id)
			}
		}))
		u.flows[id] = created
		flow = created
	}
	return flow
}

func (u *uploadRegistry) lookup(id string) (*upload.Flow, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	flow, ok := u.flows[id]
	return flow, ok
}
