package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// corsMaxAge lets browsers cache a preflight for ten minutes.
const corsMaxAge = 600

// NewCORSHandler returns CORS middleware for the browser upload page.
// Origins are full origins with no trailing slash.
//
// Content-Disposition is exposed so export downloads keep their file name,
// and Retry-After so clients can back off after a 429. Last-Event-ID is
// accepted because EventSource sends it when it reconnects.
func NewCORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "Last-Event-ID", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition", "Retry-After"},
		MaxAge:         corsMaxAge,
	})
	return c.Handler
}
