package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with defaults sized for telemetry ingestion:
// batch payloads can be large, so the write timeout is generous while the
// header timeout stays tight.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
