package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the listed origins to call the API. With no origins every
// origin is allowed, and credentials are then never allowed.
func CORS(origins []string, withCredentials bool) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
		withCredentials = false
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "If-None-Match"},
		ExposedHeaders:   []string{"X-Request-Id", "ETag", "Server-Timing"},
		AllowCredentials: withCredentials,
		MaxAge:           300,
	})
}
