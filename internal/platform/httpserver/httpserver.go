package httpserver

import (
	"net/http"
	"time"

	"persona/internal/platform/config"
)

// New builds an HTTP server with the configured header timeout. Request
// deadlines are enforced by the Timeout middleware, not WriteTimeout, so
// handlers can still render an error body.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       2 * time.Minute,
	}
}
