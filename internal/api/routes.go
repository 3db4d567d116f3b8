package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
)

const requestTimeout = 30 * time.Second

func (s *Server) Routes() http.Handler {
	// validator.Validate caches struct metadata and is safe for concurrent use
	// once built, so build it before serving.
	s.requestValidator()

	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)
	r.Use(securityHeadersMiddleware)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	}).Handler)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(timeoutMiddleware(requestTimeout))

		r.Get("/cards/due", s.handleDueCards)
		r.Post("/cards", s.handleImportCards)
		r.Get("/cards/{id}", s.handleGetCard)
		r.Get("/cards/{id}/history", s.handleCardHistory)
		r.Post("/cards/{id}/review", s.handleReviewCard)
		r.Get("/stats", s.handleStats)
	})
	return r
}
