package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Edd-G/vkgate/pkg/config"
	"github.com/Edd-G/vkgate/pkg/logger"
)

// Server hosts the webhook endpoint and the health probe.
type Server struct {
	server   *http.Server
	config   *config.Config
	callback http.Handler
}

func NewServer(cfg *config.Config, callback http.Handler) *Server {
	return &Server{
		config:   cfg,
		callback: callback,
	}
}

func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle(s.config.Gateway.CallbackPath, s.withRequestID(s.callback))

	addr := fmt.Sprintf("%s:%d", s.config.Gateway.Host, s.config.Gateway.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.InfoCF("server", "Starting HTTP server", map[string]interface{}{
		"addr":          addr,
		"callback_path": s.config.Gateway.CallbackPath,
	})

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("server", "HTTP server failed", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		logger.InfoC("server", "Stopping HTTP server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// withRequestID tags each webhook delivery with a short id for log
// correlation.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()[:8]
		w.Header().Set("X-Request-ID", requestID)
		logger.DebugCF("server", "Webhook request", map[string]interface{}{
			logger.FieldRequestID: requestID,
			"remote":              r.RemoteAddr,
		})
		next.ServeHTTP(w, r)
	})
}
