package upload

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/CMSgov/denial-review-app/denials/client"
	"github.com/CMSgov/denial-review-app/denials/constants"
	"github.com/CMSgov/denial-review-app/denials/models"
	"github.com/CMSgov/denial-review-app/denials/normalize"
	"github.com/CMSgov/denial-review-app/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type State string

const (
	StateIdle         State = "Idle"
	StateFileSelected State = "FileSelected"
	StateUploading    State = "Uploading"
	StateSuccess      State = "Success"
	StateFailed       State = "Failed"
)

// SuccessMessage is shown while a finished upload is in the Success state.
const SuccessMessage = "Upload successful! The denial has been created."

var (
	ErrInProgress     = errors.New(constants.UploadInProgressErr)
	ErrNoFileSelected = errors.New(constants.NoFileSelectedErr)
)

// File is a selected bundle. Open is called once per upload attempt so a failed upload can
// be re-submitted.
type File struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// Uploader is the part of the gateway the flow needs.
type Uploader interface {
	UploadBundle(ctx context.Context, fileName string, content io.Reader, size int64, progress client.ProgressFunc) (map[string]interface{}, error)
}

// Snapshot is what a view renders for the flow.
type Snapshot struct {
	State    State    `json:"state"`
	FileName string   `json:"fileName,omitempty"`
	FileSize int64    `json:"fileSize,omitempty"`
	Progress int      `json:"progress"`
	Message  string   `json:"message,omitempty"`
	Advisory string   `json:"advisory,omitempty"`
	Failure  *Failure `json:"failure,omitempty"`
}

// Flow is the upload state machine:
//
//	Idle -> FileSelected -> Uploading -> Success | Failed
//	Failed -> FileSelected (retry), Success -> Idle after the success delay
//
// A Flow belongs to one screen; Submit is rejected while an upload is in flight.
type Flow struct {
	uploader     Uploader
	successDelay time.Duration
	onComplete   func(models.Denial)
	onChange     func(Snapshot)

	mu       sync.Mutex
	state    State
	file     *File
	progress int
	message  string
	advisory string
	failure  *Failure
	timer    *time.Timer
}

// Option customizes a Flow.
type Option func(*Flow)

// OnComplete registers the callback run once the success affordance has been shown.
func OnComplete(fn func(models.Denial)) Option {
	return func(f *Flow) { f.onComplete = fn }
}

// OnChange registers an observer notified after every state or progress change.
func OnChange(fn func(Snapshot)) Option {
	return func(f *Flow) { f.onChange = fn }
}

func NewFlow(uploader Uploader, successDelay time.Duration, opts ...Option) *Flow {
	f := &Flow{uploader: uploader, successDelay: successDelay, state: StateIdle}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Select validates file and moves the flow to FileSelected. A rejected file only sets the
// validation message; the state and any previously selected file are kept.
func (f *Flow) Select(file File) (string, error) {
	f.mu.Lock()
	if f.state == StateUploading {
		f.mu.Unlock()
		return "", ErrInProgress
	}

	advisory, err := Validate(file.Name, file.Size)
	if err != nil {
		f.message = err.Error()
		f.mu.Unlock()
		log.Upload.WithFields(logrus.Fields{"file_name": file.Name, "file_size": file.Size}).
			Infof("Rejected file selection: %s", err.Error())
		f.notify()
		return "", err
	}

	f.stopTimer()
	f.reset()
	f.state = StateFileSelected
	f.file = &file
	f.advisory = advisory
	f.mu.Unlock()

	f.notify()
	return advisory, nil
}

// Retry moves a Failed flow back to FileSelected with the same file.
func (f *Flow) Retry() error {
	f.mu.Lock()
	if f.state != StateFailed {
		f.mu.Unlock()
		return errors.Errorf("cannot retry an upload in state %s", f.state)
	}
	f.state = StateFileSelected
	f.progress = 0
	f.message = ""
	f.failure = nil
	f.mu.Unlock()

	f.notify()
	return nil
}

// Submit uploads the selected file and blocks until the backend answers. Submitting a
// Failed flow retries the same file. Failures are returned as *Failure.
func (f *Flow) Submit(ctx context.Context) (models.Denial, error) {
	f.mu.Lock()
	switch f.state {
	case StateUploading:
		f.mu.Unlock()
		return models.Denial{}, ErrInProgress
	case StateFileSelected, StateFailed:
	default:
		f.mu.Unlock()
		return models.Denial{}, ErrNoFileSelected
	}
	file := *f.file
	f.state = StateUploading
	f.progress = 0
	f.message = ""
	f.failure = nil
	f.mu.Unlock()
	f.notify()

	logger := log.Upload.WithFields(logrus.Fields{"file_name": file.Name, "file_size": file.Size})
	logger.Info("Uploading denial bundle")

	created, err := f.send(ctx, file)
	if err != nil {
		failure := Classify(err)
		logger.WithField("failure_kind", failure.Kind).Errorf("Upload failed: %s", err.Error())

		f.mu.Lock()
		f.state = StateFailed
		f.failure = failure
		f.message = failure.Message
		f.mu.Unlock()
		f.notify()
		return models.Denial{}, failure
	}

	denial := normalize.NormalizeDenial(created)
	logger.WithField("denial_id", denial.ID).Info("Upload complete")

	f.mu.Lock()
	f.state = StateSuccess
	f.progress = 100
	f.message = SuccessMessage
	f.timer = time.AfterFunc(f.successDelay, func() { f.finish(denial) })
	f.mu.Unlock()
	f.notify()

	return denial, nil
}

func (f *Flow) send(ctx context.Context, file File) (map[string]interface{}, error) {
	content, err := file.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", file.Name)
	}
	defer content.Close()

	return f.uploader.UploadBundle(ctx, file.Name, content, file.Size, f.setProgress)
}

// setProgress records pct if it moves forward; repeated or stale values are ignored.
func (f *Flow) setProgress(pct int) {
	f.mu.Lock()
	if f.state != StateUploading || pct <= f.progress {
		f.mu.Unlock()
		return
	}
	f.progress = pct
	f.mu.Unlock()
	f.notify()
}

// finish runs after the success delay: the completion callback fires and the flow closes.
func (f *Flow) finish(denial models.Denial) {
	f.mu.Lock()
	if f.state != StateSuccess {
		f.mu.Unlock()
		return
	}
	f.reset()
	f.mu.Unlock()

	if f.onComplete != nil {
		f.onComplete(denial)
	}
	f.notify()
}

// Reset abandons the flow and returns it to Idle. An in-flight upload is not interrupted;
// cancel its context instead.
func (f *Flow) Reset() {
	f.mu.Lock()
	if f.state == StateUploading {
		f.mu.Unlock()
		return
	}
	f.stopTimer()
	f.reset()
	f.mu.Unlock()
	f.notify()
}

func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot()
}

func (f *Flow) snapshot() Snapshot {
	s := Snapshot{
		State:    f.state,
		Progress: f.progress,
		Message:  f.message,
		Advisory: f.advisory,
		Failure:  f.failure,
	}
	if f.file != nil {
		s.FileName = f.file.Name
		s.FileSize = f.file.Size
	}
	return s
}

func (f *Flow) notify() {
	if f.onChange != nil {
		f.onChange(f.Snapshot())
	}
}

// reset must be called with mu held.
func (f *Flow) reset() {
	f.state = StateIdle
	f.file = nil
	f.progress = 0
	f.message = ""
	f.advisory = ""
	f.failure = nil
}

// stopTimer must be called with mu held.
func (f *Flow) stopTimer() {
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}
