// Package httpserver builds the process-level HTTP server. Per-route
// deadlines are handled by the router's timeout middleware; the limits here
// only guard against stalled or abusive connections.
package httpserver

import (
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 5 * time.Second
	// Document uploads can take a while on slow links, so the write timeout
	// is generous compared to the per-request middleware deadline.
	writeTimeout = 60 * time.Second
	idleTimeout  = 120 * time.Second
)

// New builds the API server around the assembled router.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
