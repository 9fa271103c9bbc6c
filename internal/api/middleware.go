package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func SetupMiddleware() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		// Request ID for tracing
		middleware.RequestID,

		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,

		// The inspection API is read-mostly and has no credentials.
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
	}
}

// RequestTimeout bounds ordinary requests. The event stream is long-lived and
// is routed outside it.
func RequestTimeout() func(http.Handler) http.Handler {
	return middleware.Timeout(30 * time.Second)
}

// PickLimit bounds concurrent pick requests; each one can march up to the
// full pick distance while holding the engine lock.
func PickLimit(limit int) func(http.Handler) http.Handler {
	return middleware.ThrottleBacklog(limit, limit*2, 10*time.Second)
}
