package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORSMiddleware allows the configured origins to call the API from a browser.
// An empty origin list disables CORS handling.
func CORSMiddleware(next http.Handler, cfg HTTPTransportConfig) http.Handler {
	origins := splitList(cfg.AllowedOrigins)
	if len(origins) == 0 {
		return next
	}

	return cors.Handler(cors.Options{ //nolint:exhaustruct
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", TraceIDHeader},
		ExposedHeaders:   []string{TraceIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})(next)
}

func splitList(raw string) []string {
	var items []string

	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}
