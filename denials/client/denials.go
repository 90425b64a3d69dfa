package client

import (
	"context"
	"fmt"
	"io/ioutil"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const filterDateLayout = "2006-01-02"

// Filter narrows the denial list. Empty fields are left out of the query; lists are
// comma-joined.
type Filter struct {
	Statuses   []string
	DateFrom   *time.Time
	DateTo     *time.Time
	Locations  []string
	Priorities []string
}

// Query encodes f using the backend's parameter names.
func (f Filter) Query() url.Values {
	q := url.Values{}
	setList(q, "status", f.Statuses)
	setList(q, "location", f.Locations)
	setList(q, "priority", f.Priorities)
	if f.DateFrom != nil {
		q.Set("dateFrom", f.DateFrom.Format(filterDateLayout))
	}
	if f.DateTo != nil {
		q.Set("dateTo", f.DateTo.Format(filterDateLayout))
	}
	return q
}

func setList(q url.Values, key string, values []string) {
	var kept []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	if len(kept) > 0 {
		q.Set(key, strings.Join(kept, ","))
	}
}

// ListDenials GETs /Denials and returns the raw payload for normalization.
func (c *Client) ListDenials(ctx context.Context, f Filter) (interface{}, error) {
	endpoint := "/Denials"
	if q := f.Query().Encode(); q != "" {
		endpoint += "?" + q
	}
	resp, err := c.Send(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetDenial GETs /Denials/{id}.
func (c *Client) GetDenial(ctx context.Context, id string) (map[string]interface{}, error) {
	resp, err := c.Send(ctx, http.MethodGet, denialPath(id), nil)
	if err != nil {
		return nil, err
	}
	return asObject(resp.Data), nil
}

// UpdateStatus PUTs the backend status label to /Denials/{id}/status.
func (c *Client) UpdateStatus(ctx context.Context, id, status string) (map[string]interface{}, error) {
	body := map[string]string{"status": status}
	resp, err := c.Send(ctx, http.MethodPut, denialPath(id)+"/status", body)
	if err != nil {
		return nil, err
	}
	return asObject(resp.Data), nil
}

// TriggerRCA POSTs to /Denials/{id}/rca. The envelope is returned untouched; the caller
// unwraps rcaResult.
func (c *Client) TriggerRCA(ctx context.Context, id string) (map[string]interface{}, error) {
	resp, err := c.Send(ctx, http.MethodPost, denialPath(id)+"/rca", nil)
	if err != nil {
		return nil, err
	}
	return asObject(resp.Data), nil
}

// GenerateAppeal POSTs to /Denials/{id}/appeal. The response is the appeal itself.
func (c *Client) GenerateAppeal(ctx context.Context, id string) (map[string]interface{}, error) {
	resp, err := c.Send(ctx, http.MethodPost, denialPath(id)+"/appeal", nil)
	if err != nil {
		return nil, err
	}
	return asObject(resp.Data), nil
}

// Document is a raw document fetched from the backend.
type Document struct {
	ContentType string
	FileName    string
	Content     []byte
}

// GetDocument GETs /documents/{id} and returns the bytes as sent.
func (c *Client) GetDocument(ctx context.Context, id string) (*Document, error) {
	resp, err := c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}

	content, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Msg: fmt.Sprintf("Failed to read document %s: %s", id, err.Error())}
	}

	return &Document{
		ContentType: resp.Header.Get("Content-Type"),
		FileName:    attachmentName(resp.Header.Get("Content-Disposition"), id),
		Content:     content,
	}, nil
}

// Ping GETs the configured health path. Any 2xx counts as healthy.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Send(ctx, http.MethodGet, c.healthPath, nil)
	return err
}

func denialPath(id string) string {
	return "/Denials/" + url.PathEscape(id)
}

// asObject returns data as a JSON object, or an empty one if the backend sent anything else.
func asObject(data interface{}) map[string]interface{} {
	if m, ok := data.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func attachmentName(disposition, otherwise string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	return otherwise
}
