// Package rest exposes a small HTTP surface over the device manager:
// a status snapshot, a raw command endpoint, and Prometheus metrics.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/commatea/Radiance-Link/pkg/device"
	"github.com/commatea/Radiance-Link/pkg/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Server serves the HTTP API.
type Server struct {
	manager *device.Manager
	log     *logger.Logger
	httpSrv *http.Server
}

// NewServer creates a server bound to the given listen address.
func NewServer(listen string, manager *device.Manager, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Global()
	}
	s := &Server{
		manager: manager,
		log:     log.Named("rest"),
	}

	router := mux.NewRouter()
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/command", s.handleCommand).Methods(http.MethodPost)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.httpSrv = &http.Server{
		Addr:              listen,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Start serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("Starting HTTP API", "listen", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

type statusResponse struct {
	Connected bool              `json:"connected"`
	Alive     bool              `json:"alive"`
	Status    string            `json:"device_status,omitempty"`
	Info      device.DeviceInfo `json:"info"`
	Labels    map[string]string `json:"labels,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Connected: s.manager.IsConnected(),
		Alive:     s.manager.IsAlive(),
		Status:    string(s.manager.DeviceStatus()),
		Info:      s.manager.DeviceInfo(),
		Labels:    s.manager.Labels(),
	}
	writeJSON(w, http.StatusOK, resp)
}

type commandRequest struct {
	Commands []string `json:"commands"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Commands) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no commands provided"})
		return
	}

	if err := s.manager.SendCommand(r.Context(), req.Commands...); err != nil {
		s.log.Error("Failed to queue commands", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"queued": len(req.Commands)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
