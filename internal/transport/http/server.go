// Package httptransport assembles the HTTP server and its middleware chain.
package httptransport

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ServerConfig contains tunables for the HTTP server.
type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigin   string
}

// DefaultServerConfig returns the timeouts used by cmd/api.
func DefaultServerConfig(address string) ServerConfig {
	return ServerConfig{
		Address:      address,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// NewHandler mounts /metrics on router and wraps it, outermost first, with panic
// recovery, request logging, metrics and CORS. identity runs closest to the router.
func NewHandler(cfg ServerConfig, router *mux.Router, identity Middleware, logger zerolog.Logger) http.Handler {
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	var h http.Handler = router
	if identity != nil {
		h = identity(h)
	}
	h = CORS(cfg.CORSOrigin)(h)
	h = Metrics(router)(h)
	h = RequestLogger(logger)(h)
	return Recover(logger)(h)
}

// NewServer creates *http.Server with provided handler.
func NewServer(cfg ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Address,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
