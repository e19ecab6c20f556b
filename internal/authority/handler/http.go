// Package handler exposes the reference authority over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/trace"

	"storefront/sessioncore/internal/authority/domain"
	"storefront/sessioncore/internal/authority/service"
)

const maxBodyBytes = 16 << 10

// Refresher validates and rotates refresh tokens.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*service.RefreshResult, error)
}

// Pinger is used by /healthz to check the database. Nil means always healthy.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server serves the authority's HTTP API.
type Server struct {
	refresher Refresher
	pinger    Pinger
	tracer    trace.Tracer
}

// NewServer returns a Server backed by refresher.
func NewServer(refresher Refresher, pinger Pinger) *Server {
	return &Server{refresher: refresher, pinger: pinger}
}

// WithTracer enables per-request spans.
func (s *Server) WithTracer(t trace.Tracer) *Server {
	s.tracer = t
	return s
}

// Router returns the mux with all authority routes registered.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestTelemetry(s.tracer, map[string]bool{"/healthz": true}))
	r.HandleFunc(domain.RefreshPath, s.Refresh).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.Health).Methods(http.MethodGet)
	return r
}

// Refresh handles POST /v1/sessions/refresh. A rejected credential is 401; the device clears its session.
func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, domain.ErrorResponse{Error: "malformed request body"})
		return
	}
	res, err := s.refresher.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) || errors.Is(err, service.ErrRefreshTokenReuse) {
			writeJSON(w, http.StatusUnauthorized, domain.ErrorResponse{Error: err.Error()})
			return
		}
		log.Printf("authority: refresh: %v", err)
		writeJSON(w, http.StatusInternalServerError, domain.ErrorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, domain.RefreshResponse{
		Accepted:     true,
		Approved:     res.Approved,
		Role:         string(res.Role),
		RefreshToken: res.RefreshToken,
	})
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.PingContext(ctx); err != nil {
			log.Printf("authority: health: db ping: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_serving"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "serving"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("authority: write response: %v", err)
	}
}
