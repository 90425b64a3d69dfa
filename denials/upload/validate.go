// Package upload drives a single ZIP bundle upload: validating the selected file, tracking
// progress, classifying failures and closing the flow after a successful upload.
package upload

import (
	"path/filepath"
	"strings"

	"github.com/CMSgov/denial-review-app/denials/constants"
)

// ValidationError rejects a file before any network call is made.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Validate checks that name is a .zip file (case insensitive) no larger than 100 MiB. Files
// over 50 MiB are accepted with a non-blocking advisory.
func Validate(name string, size int64) (advisory string, err error) {
	if strings.ToLower(filepath.Ext(name)) != constants.UploadExtension {
		return "", &ValidationError{Msg: constants.InvalidFileTypeErr}
	}
	if size > constants.MaxUploadSize {
		return "", &ValidationError{Msg: constants.FileTooLargeErr}
	}
	if size > constants.LargeUploadAdvisory {
		return constants.LargeFileAdvisory, nil
	}
	return "", nil
}
