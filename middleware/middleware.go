package middleware

import (
	"context"
	"net/http"

	"github.com/pborman/uuid"
)

// type to create context.Context key
type CtxTransactionKeyType string

// context.Context key to get the transaction ID from the request context
const CtxTransactionKey CtxTransactionKeyType = "ctxTransaction"

// TransactionHeader echoes the transaction ID back to the browser so support can correlate logs.
const TransactionHeader = "X-Transaction-ID"

// Adds a transaction ID to the request context, reusing one supplied by the caller
func NewTransactionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(TransactionHeader)
		if uuid.Parse(id) == nil {
			id = uuid.New()
		}
		w.Header().Set(TransactionHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), CtxTransactionKey, id))
		next.ServeHTTP(w, r)
	})
}

// TransactionID returns the transaction ID stored in ctx, or "" when there is none.
func TransactionID(ctx context.Context) string {
	if id, ok := ctx.Value(CtxTransactionKey).(string); ok {
		return id
	}
	return ""
}
