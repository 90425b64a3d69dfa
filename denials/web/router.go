package web

import (
	"net/http"

	"github.com/CMSgov/denial-review-app/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// NewRouter exposes the view controllers to the browser as JSON.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.NewTransactionID, NewStructuredLogger(), chimiddleware.Recoverer, s.apm.Middleware, SecurityHeader)

	r.Get("/_version", s.getVersion)
	r.Get("/_health", s.healthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/me", s.getIdentity)

		r.Route("/denials", func(r chi.Router) {
			r.Get("/", s.listDenials)
			r.Post("/upload", s.uploadDenial)
			r.Route("/{denialID}", func(r chi.Router) {
				r.Get("/", s.getDenial)
				r.Put("/status", s.updateStatus)
				r.Post("/documents", s.attachDocument)
				r.Post("/rca", s.analyze)
				r.Post("/appeal", s.appeal)
				r.Get("/appeal/letter", s.downloadLetter)
			})
		})

		r.Get("/uploads/{uploadID}", s.uploadStatus)
		r.Delete("/screens/{screenID}", s.closeScreen)
		r.Get("/documents/{documentID}", s.getDocument)
	})
	return r
}
