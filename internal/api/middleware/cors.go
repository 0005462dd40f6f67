// cors.go — CORS для File API (go-chi/cors).
package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS возвращает middleware с разрешёнными origins.
// Пустой список эквивалентен "*".
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	})
}
