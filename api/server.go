// Package api exposes the daemon's local status endpoints: health, engine
// status, a manual sync trigger, and prometheus metrics. This is an ops
// surface, not a UI; rendering lives outside this system.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server provides the local HTTP endpoints.
type Server struct {
	engine SyncEngine
	logger zerolog.Logger
	server *http.Server
}

// NewServer creates a server bound to the given port.
func NewServer(eng SyncEngine, logger zerolog.Logger, port int) *Server {
	s := &Server{
		engine: eng,
		logger: logger.With().Str("component", "api_server").Logger(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/sync", s.handleSyncNow).Methods(http.MethodPost)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}
	return s
}

// Start starts the HTTP server, verifying the port binds before returning.
func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("server is nil")
	}

	startupChan := make(chan error, 1)

	go func() {
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			startupChan <- fmt.Errorf("failed to bind to address %s: %w", s.server.Addr, err)
			return
		}
		startupChan <- nil

		err = s.server.Serve(ln)
		switch err {
		case nil, http.ErrServerClosed:
			s.logger.Info().Msg("api server closed")
		default:
			s.logger.Error().Err(err).Msg("api server error")
		}
	}()

	select {
	case err := <-startupChan:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("server startup timeout")
	}
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.engine.Status()); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode status")
	}
}

func (s *Server) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	s.engine.SyncNow()
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte("sync triggered"))
}
