package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"

	"github.com/CMSgov/denial-review-app/denials/constants"
	"github.com/CMSgov/denial-review-app/log"
	"github.com/pborman/uuid"
	"github.com/sirupsen/logrus"
)

// ProgressFunc receives upload progress as an integer percentage. Values never decrease
// and are not repeated.
type ProgressFunc func(percent int)

// UploadBundle POSTs a ZIP bundle to /Denials as multipart field "file". The backend
// creates a new denial from it and the created record is returned.
func (c *Client) UploadBundle(ctx context.Context, fileName string, content io.Reader, size int64, progress ProgressFunc) (map[string]interface{}, error) {
	return c.upload(ctx, "/Denials", fileName, content, size, nil, progress)
}

// AttachDocument POSTs a supporting document to /Denials/{id}/documents with fields
// "file" and "type".
func (c *Client) AttachDocument(ctx context.Context, id, docType, fileName string, content io.Reader, size int64) (map[string]interface{}, error) {
	fields := map[string]string{"type": docType}
	return c.upload(ctx, denialPath(id)+"/documents", fileName, content, size, fields, nil)
}

// upload streams a multipart body so large bundles are never held in memory. It is bounded
// by the upload timeout regardless of ctx.
func (c *Client) upload(ctx context.Context, endpoint, fileName string, content io.Reader, size int64,
	fields map[string]string, progress ProgressFunc) (map[string]interface{}, error) {

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	reporter := newProgressReporter(progress)
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeMultipart(mw, fields, fileName, &countingReader{r: content, total: size, report: reporter.bytes})
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, pr)
	if err != nil {
		pr.Close()
		return nil, &RequestError{Msg: fmt.Sprintf("Failed to build upload request: %s", err.Error())}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewRandom().String())

	logger := log.Gateway.WithFields(logrus.Fields{
		"request_id": req.Header.Get(requestIDHeader),
		"endpoint":   endpoint,
		"file_name":  fileName,
		"file_size":  size,
	})
	logger.Info("Upload started")

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		pr.Close()
		logger.Errorf("Upload failed: %s", err.Error())
		switch ctx.Err() {
		case context.DeadlineExceeded:
			return nil, &RequestError{Msg: fmt.Sprintf(constants.UploadTimeoutErr, c.uploadTimeout)}
		case context.Canceled:
			return nil, &RequestError{Msg: "Upload cancelled"}
		}
		return nil, &RequestError{Msg: constants.NetworkErr}
	}
	defer closeBody(resp)

	out, err := readResponse(resp)
	if err != nil {
		logger.WithField("resp_code", resp.StatusCode).Errorf("Upload rejected: %s", err.Error())
		// The deadline also covers reading the response body.
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &RequestError{Msg: fmt.Sprintf(constants.UploadTimeoutErr, c.uploadTimeout)}
		}
		return nil, err
	}

	reporter.complete()
	logger.WithField("resp_code", resp.StatusCode).Info("Upload complete")
	return asObject(out.Data), nil
}

func writeMultipart(mw *multipart.Writer, fields map[string]string, fileName string, content io.Reader) error {
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return mw.Close()
}

// countingReader reports how many bytes of the file have been handed to the transport.
type countingReader struct {
	r      io.Reader
	total  int64
	read   int64
	report func(read, total int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.read += int64(n)
		c.report(c.read, c.total)
	}
	return n, err
}

// progressReporter turns byte counts into percentages. Transfer progress stops at 99;
// 100 is reported only once the backend has accepted the upload.
type progressReporter struct {
	mu   sync.Mutex
	last int
	fn   ProgressFunc
}

func newProgressReporter(fn ProgressFunc) *progressReporter {
	return &progressReporter{last: -1, fn: fn}
}

func (p *progressReporter) bytes(read, total int64) {
	pct := 99
	if total > 0 {
		pct = int(read * 100 / total)
	}
	if pct > 99 {
		pct = 99
	}
	p.emit(pct)
}

func (p *progressReporter) complete() {
	p.emit(100)
}

func (p *progressReporter) emit(pct int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fn == nil || pct <= p.last {
		return
	}
	p.last = pct
	p.fn(pct)
}
