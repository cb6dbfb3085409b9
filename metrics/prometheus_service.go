// Package metrics contains the prometheus infrastructure.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/msigvault/msig/log"
)

const (
	moduleName = "metrics"
)

// PullService is a service that supports the Prometheus pull method.
type PullService struct {
	server *http.Server
	logger *log.Logger
}

// StartInstrumentation starts the pull metrics service in the background.
func (s *PullService) StartInstrumentation() {
	s.logger.Info("initializing pull metrics service", "endpoint", s.server.Addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("unable to run prometheus pull service", "endpoint", s.server.Addr, "err", err)
		}
	}()
}

// Creates a new Prometheus pull service.
func NewPullService(pullEndpoint string, logger *log.Logger) (*PullService, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &PullService{
		server: &http.Server{
			Addr:           pullEndpoint,
			Handler:        mux,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
		logger: logger.WithModule(moduleName),
	}, nil
}
