package httpserver

import (
	"net/http"
	"time"
)

// New builds the registration gateway's HTTP server. Submissions carry
// user-typed form payloads, so read and write timeouts are generous but
// bounded; the header timeout guards against slowloris on the public
// submit endpoint.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
