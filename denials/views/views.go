// Package views holds the list and detail controllers behind the dashboard screens and the
// transient per-screen session state. Controllers fetch fresh data on every call; nothing
// here is cached across navigations.
package views

import (
	"context"
	"strings"
	"unicode"

	"github.com/CMSgov/denial-review-app/denials/client"
)

// NotAvailable is shown for optional fields the backend did not send.
const NotAvailable = "Not available"

// Backend is the part of the gateway the view controllers read and write through.
type Backend interface {
	ListDenials(ctx context.Context, f client.Filter) (interface{}, error)
	GetDenial(ctx context.Context, id string) (map[string]interface{}, error)
	UpdateStatus(ctx context.Context, id, status string) (map[string]interface{}, error)
}

// Error is a read or write failure surfaced to the screen. Retryable tells the screen to
// offer the user a retry. InProgress marks an operation rejected because the same one is
// still running.
type Error struct {
	Msg        string `json:"message"`
	Retryable  bool   `json:"retryable"`
	InProgress bool   `json:"-"`
}

func (e *Error) Error() string {
	return e.Msg
}

func retryable(err error) error {
	return &Error{Msg: err.Error(), Retryable: true}
}

// FormatFieldName turns an identifier such as "providerSignature" into "provider Signature"
// by inserting a space before every capital letter. Display only.
func FormatFieldName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsUpper(r) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
