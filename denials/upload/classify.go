package upload

import (
	"fmt"
	"strings"

	"github.com/CMSgov/denial-review-app/denials/client"
	"github.com/pkg/errors"
)

// Kind is the user-facing category of an upload failure.
type Kind string

const (
	KindTimeout          Kind = "timeout"
	KindNetwork          Kind = "network"
	KindUnsupportedMedia Kind = "unsupported_media_type"
	KindPayloadTooLarge  Kind = "payload_too_large"
	KindServerError      Kind = "server_error"
	KindGeneric          Kind = "generic"
)

// Failure is a classified upload error with a remediation message. Cause keeps the
// gateway's original message for logs.
type Failure struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Cause   string `json:"cause"`
}

func (f *Failure) Error() string {
	return f.Message
}

var remediation = []struct {
	substr  string
	kind    Kind
	message string
}{
	{"timeout", KindTimeout, "Upload timed out. The file may be too large or the connection too slow. Please try again."},
	{"network error", KindNetwork, "Network error. Please check your connection and make sure the backend is reachable, then try again."},
	{"415", KindUnsupportedMedia, "Unsupported file type. Please upload a ZIP file containing the denial documents."},
	{"413", KindPayloadTooLarge, "File is too large for the server. Please upload a file smaller than 100MB."},
	{"500", KindServerError, "Server error while processing the upload. Please try again later or contact support."},
}

// Classify maps a raw gateway error onto a Failure by case-insensitive substring match.
// The gateway's messages are the whole taxonomy; there are no structured codes. Errors
// that did not come from the gateway, such as local file errors, are always generic.
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}
	msg := err.Error()
	var reqErr *client.RequestError
	if !errors.As(err, &reqErr) {
		return &Failure{Kind: KindGeneric, Message: fmt.Sprintf("Upload failed: %s", msg), Cause: msg}
	}
	lower := strings.ToLower(reqErr.Msg)
	for _, r := range remediation {
		if strings.Contains(lower, r.substr) {
			return &Failure{Kind: r.kind, Message: r.message, Cause: msg}
		}
	}
	return &Failure{Kind: KindGeneric, Message: fmt.Sprintf("Upload failed: %s", msg), Cause: msg}
}
