// Package monitoring wraps the BFF's handlers in New Relic transactions. It is a no-op
// unless a license key is configured.
package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/CMSgov/denial-review-app/conf"
	"github.com/CMSgov/denial-review-app/log"
	"github.com/go-chi/chi/v5"
	"github.com/newrelic/go-agent/v3/integrations/nrlogrus"
	"github.com/newrelic/go-agent/v3/newrelic"
)

const shutdownTimeout = 10 * time.Second

type APM struct {
	app *newrelic.Application
}

// New returns an APM reporting as "Denials-<environment>". Without a license, or if the
// agent cannot be created, every method is a no-op.
func New(cfg conf.Config) *APM {
	if cfg.NewRelicLicense == "" {
		return &APM{}
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(fmt.Sprintf("Denials-%s", cfg.Environment)),
		newrelic.ConfigLicense(cfg.NewRelicLicense),
		newrelic.ConfigEnabled(true),
		nrlogrus.ConfigStandardLogger(),
		func(c *newrelic.Config) {
			c.HighSecurity = true
		},
	)
	if err != nil {
		log.API.Warnf("Failed to instantiate New Relic application, monitoring disabled. %s", err.Error())
		return &APM{}
	}
	log.API.Info("New Relic monitoring enabled")
	return &APM{app: app}
}

func (a *APM) Enabled() bool {
	return a.app != nil
}

// Middleware starts a web transaction per request, named after the matched chi route.
func (a *APM) Middleware(next http.Handler) http.Handler {
	if a.app == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		txn := a.app.StartTransaction(r.Method + " " + r.URL.Path)
		defer txn.End()

		txn.SetWebRequestHTTP(r)
		w = txn.SetWebResponse(w)
		r = newrelic.RequestWithTransactionContext(r, txn)

		next.ServeHTTP(w, r)

		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			txn.SetName(r.Method + " " + rctx.RoutePattern())
		}
	})
}

// Segment times a unit of work inside the request's transaction. The returned func ends it.
func Segment(ctx context.Context, name string) func() {
	txn := newrelic.FromContext(ctx)
	if txn == nil {
		return func() {}
	}
	seg := txn.StartSegment(name)
	return seg.End
}

func (a *APM) Shutdown() {
	if a.app != nil {
		a.app.Shutdown(shutdownTimeout)
	}
}
