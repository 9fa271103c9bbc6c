package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// DefaultPickLimit is the number of pick requests served at once.
const DefaultPickLimit = 8

func SetupRoutes(handler *Handler, pickLimit int) *chi.Mux {
	r := chi.NewRouter()

	for _, middleware := range SetupMiddleware() {
		r.Use(middleware)
	}

	// JSON content type
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.With(RequestTimeout()).Get("/health", handler.HealthCheck)

	if pickLimit <= 0 {
		pickLimit = DefaultPickLimit
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/events", handler.StreamEvents)

		r.Group(func(r chi.Router) {
			r.Use(RequestTimeout())

			r.Get("/height", handler.GetHeight)
			r.Post("/anchor", handler.UpdateAnchor)
			r.With(PickLimit(pickLimit)).Post("/pick", handler.Pick)
			r.Get("/stats", handler.GetStats)

			r.Route("/chunks", func(r chi.Router) {
				r.Get("/", handler.ListChunks)
				r.Get("/{x}/{z}", handler.GetChunk)
				r.Get("/{x}/{z}/geometry", handler.GetChunkGeometry)
				r.Get("/{x}/{z}/resources", handler.GetChunkResources)
			})
		})
	})

	return r
}
