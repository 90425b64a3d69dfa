package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CMSgov/denial-review-app/conf"
	"github.com/stretchr/testify/assert"
)

func TestDisabledWithoutLicense(t *testing.T) {
	apm := New(conf.Default())
	assert.False(t, apm.Enabled())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	wrapped := apm.Middleware(handler)

	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/denials", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)

	apm.Shutdown()
}

func TestInvalidLicenseDisables(t *testing.T) {
	cfg := conf.Default()
	cfg.NewRelicLicense = "too-short"
	assert.False(t, New(cfg).Enabled())
}

func TestSegmentWithoutTransaction(t *testing.T) {
	end := Segment(context.Background(), "backend")
	assert.NotPanics(t, end)
}
