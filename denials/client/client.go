// Package client is the request gateway to the denials backend. It issues JSON calls,
// multipart uploads and raw document downloads, and reports every transport or protocol
// failure as a *RequestError carrying a message string.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/CMSgov/denial-review-app/conf"
	"github.com/CMSgov/denial-review-app/denials/constants"
	"github.com/CMSgov/denial-review-app/log"
	"github.com/dimchansky/utfbom"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-ID"

// RequestError is the only error type the gateway returns for backend calls. Callers
// classify it by substring (see constants.NetworkErr and friends); there is no code.
type RequestError struct {
	Msg string
}

func (e *RequestError) Error() string {
	return e.Msg
}

// Response is a decoded backend response. Data holds the parsed JSON value for
// application/json, an empty object for 204, and the body text otherwise.
type Response struct {
	StatusCode  int
	ContentType string
	Data        interface{}
}

// Client talks to a single backend base URL.
type Client struct {
	baseURL       string
	healthPath    string
	uploadTimeout time.Duration

	httpClient   *retryablehttp.Client
	uploadClient *http.Client
}

// NewClient builds a gateway from cfg. JSON calls have no timeout so long-running backend
// work is tolerated; uploads are bounded by cfg.UploadTimeout.
func NewClient(cfg conf.Config) *Client {
	hc := retryablehttp.NewClient()
	// Every retry in this application is user initiated.
	hc.RetryMax = 0
	hc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		return false, nil
	}
	hc.Logger = nil
	hc.RequestLogHook = logRequest
	hc.ResponseLogHook = logResponse

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		healthPath:    cfg.HealthPath,
		uploadTimeout: cfg.UploadTimeout,
		httpClient:    hc,
		uploadClient:  &http.Client{},
	}
}

// Send issues a JSON request to endpoint (relative to the base URL). A non-nil body is
// encoded as JSON.
func (c *Client) Send(ctx context.Context, method, endpoint string, body interface{}) (*Response, error) {
	resp, err := c.do(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	return readResponse(resp)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body interface{}) (*http.Response, error) {
	var payload interface{}
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode request body")
		}
		payload = b
	}

	req, err := retryablehttp.NewRequest(method, c.baseURL+endpoint, payload)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build request for %s", endpoint)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(requestIDHeader, uuid.NewRandom().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, method, endpoint, err)
	}
	return resp, nil
}

// transportError turns a failure below HTTP into the gateway's message vocabulary.
func transportError(ctx context.Context, method, endpoint string, err error) error {
	log.Gateway.WithFields(logrus.Fields{
		"method":   method,
		"endpoint": endpoint,
	}).Errorf("Backend request failed: %s", err.Error())

	switch ctx.Err() {
	case context.DeadlineExceeded:
		return &RequestError{Msg: fmt.Sprintf("Request timeout: %s %s did not complete", method, endpoint)}
	case context.Canceled:
		return &RequestError{Msg: fmt.Sprintf("Request cancelled: %s %s", method, endpoint)}
	}
	return &RequestError{Msg: constants.NetworkErr}
}

func readResponse(resp *http.Response) (*Response, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}

	out := &Response{StatusCode: resp.StatusCode, ContentType: resp.Header.Get("Content-Type")}
	if resp.StatusCode == http.StatusNoContent {
		out.Data = map[string]interface{}{}
		return out, nil
	}

	if strings.Contains(out.ContentType, "application/json") {
		body, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			return nil, &RequestError{Msg: fmt.Sprintf(constants.RespBodyErr, err.Error())}
		}
		if len(body) == 0 {
			out.Data = map[string]interface{}{}
			return out, nil
		}
		if err := json.Unmarshal(body, &out.Data); err != nil {
			return nil, &RequestError{Msg: fmt.Sprintf("Invalid JSON response: %s", err.Error())}
		}
		return out, nil
	}

	body, err := ioutil.ReadAll(utfbom.SkipOnly(resp.Body))
	if err != nil {
		return nil, &RequestError{Msg: fmt.Sprintf(constants.RespBodyErr, err.Error())}
	}
	out.Data = string(body)
	return out, nil
}

// statusError prefers the backend's JSON "message", falling back to the status line.
func statusError(resp *http.Response) error {
	body, _ := ioutil.ReadAll(resp.Body)

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return &RequestError{Msg: payload.Message}
	}

	return &RequestError{Msg: fmt.Sprintf(constants.HTTPStatusErr, resp.StatusCode, statusText(resp))}
}

func statusText(resp *http.Response) string {
	if text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); text != "" && text != resp.Status {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func closeBody(resp *http.Response) {
	/* #nosec -- it's OK for us to ignore errors when attempt to cleanup response body */
	_, _ = io.Copy(ioutil.Discard, resp.Body)
	resp.Body.Close()
}

func logRequest(_ retryablehttp.Logger, req *http.Request, attempt int) {
	log.Gateway.WithFields(logrus.Fields{
		"request_id": req.Header.Get(requestIDHeader),
		"method":     req.Method,
		"uri":        req.URL.String(),
	}).Infoln("Backend request")
}

func logResponse(_ retryablehttp.Logger, resp *http.Response) {
	log.Gateway.WithFields(logrus.Fields{
		"request_id":     resp.Request.Header.Get(requestIDHeader),
		"resp_code":      resp.StatusCode,
		"content_length": resp.ContentLength,
	}).Infoln("Backend response")
}
