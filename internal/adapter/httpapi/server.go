// Package httpapi exposes the query API plus health, readiness, and
// metrics endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/emberwatch/fire-danger-service/internal/cache"
	"github.com/emberwatch/fire-danger-service/internal/domain"
	"github.com/emberwatch/fire-danger-service/internal/nfdrs"
	"github.com/emberwatch/fire-danger-service/internal/observability"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxQueryLength = 4096

// QueryExecutor drives one query end-to-end. Satisfied by the coordinator.
type QueryExecutor interface {
	Execute(ctx context.Context, query string) (domain.RoutedResult, error)
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the HTTP API.
type Server struct {
	httpServer *http.Server
	executor   QueryExecutor
	engine     *nfdrs.Engine
	cache      *cache.Cache
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates the HTTP server and wires its routes.
func NewServer(addr string, executor QueryExecutor, engine *nfdrs.Engine, c *cache.Cache, ready ReadinessChecker, metrics *observability.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		executor: executor,
		engine:   engine,
		cache:    c,
		metrics:  metrics,
		logger:   logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", handleReady(ready)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)
	v1.HandleFunc("/fire-danger", s.handleFireDanger).Methods(http.MethodPost)
	v1.HandleFunc("/cache/{key}", s.handleInvalidate).Methods(http.MethodDelete)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if len(req.Query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "query too long")
		return
	}

	result, err := s.executor.Execute(r.Context(), req.Query)
	if err != nil {
		var ve *domain.ValidationError
		switch {
		case errors.As(err, &ve):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, domain.ErrCacheInconsistency):
			s.logger.Error("query failed on cache inconsistency", "error", err)
			writeError(w, http.StatusInternalServerError, "internal cache error")
		default:
			s.logger.Error("query failed", "error", err)
			writeError(w, http.StatusInternalServerError, "query execution failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type fireDangerRequest struct {
	TemperatureF        float64 `json:"temperature_f"`
	RelativeHumidityPct float64 `json:"relative_humidity_pct"`
	WindSpeedMPH        float64 `json:"wind_speed_mph"`
	PrecipitationIn     float64 `json:"precipitation_in"`
	StationID           string  `json:"station_id,omitempty"`
}

// handleFireDanger computes a danger report from explicit conditions,
// bypassing classification and the cache.
func (s *Server) handleFireDanger(w http.ResponseWriter, r *http.Request) {
	var req fireDangerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	obs, err := domain.NewWeatherObservation(
		req.TemperatureF, req.RelativeHumidityPct, req.WindSpeedMPH, req.PrecipitationIn,
		time.Now().UTC(), req.StationID)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	report, err := s.engine.CalculateFireDanger(obs)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	removed := s.cache.Invalidate(key)
	if removed {
		s.metrics.CacheInvalidations.WithLabelValues("admin").Inc()
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "removed": removed})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
