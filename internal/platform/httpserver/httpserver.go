// Package httpserver builds the process HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server with bounded header, body and idle times. The write
// timeout covers a single-record migration, which runs inline.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
