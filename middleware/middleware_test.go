package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pborman/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewTransactionID(t *testing.T) {
	var seen string
	h := NewTransactionID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TransactionID(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	assert.NotNil(t, uuid.Parse(seen))
	assert.Equal(t, seen, rr.Header().Get(TransactionHeader))
}

func TestNewTransactionIDReusesCallerID(t *testing.T) {
	id := uuid.New()
	var seen string
	h := NewTransactionID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TransactionID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(TransactionHeader, id)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, id, seen)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(TransactionHeader, "not-a-uuid")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "not-a-uuid", seen)
}
