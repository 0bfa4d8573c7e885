// Package api serves fused snapshots and source controls over HTTP and
// websocket, and provides the client the terminal tools use.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/unklstewy/radarfusion/internal/auth"
	"github.com/unklstewy/radarfusion/pkg/adsb"
	"github.com/unklstewy/radarfusion/pkg/logger"
	"github.com/unklstewy/radarfusion/pkg/tracking"
)

// SnapshotProvider publishes sampler snapshots. *tracking.Sampler
// implements it.
type SnapshotProvider interface {
	Latest() tracking.Snapshot
	Subscribe(buffer int) (<-chan tracking.Snapshot, func())
}

// SourceController exposes feed bookkeeping. *tracking.SourceRegistry
// implements it.
type SourceController interface {
	Statuses() []tracking.SourceStatus
	Disable(src adsb.Source) int
	Enable(src adsb.Source)
}

// StorageStatus is the snapshot recorder state reported by /health.
type StorageStatus struct {
	Connected      bool  `json:"connected"`
	Aircraft       int64 `json:"aircraft"`
	RecentAircraft int64 `json:"recent_aircraft"`
	Positions      int64 `json:"positions"`
}

// StorageReporter reports the state of the snapshot recorder.
type StorageReporter interface {
	StorageStatus(ctx context.Context) StorageStatus
}

// WithStorage adds the recorder state to the health response.
func WithStorage(r StorageReporter) Option {
	return func(s *Server) {
		s.storage = r
	}
}

// Server holds the HTTP handlers.
type Server struct {
	snapshots SnapshotProvider
	sources   SourceController
	auth      Authenticator
	storage   StorageReporter
	router    *chi.Mux
	upgrader  websocket.Upgrader
	log       *logger.Logger
	started   time.Time

	// writeTimeout bounds each websocket write.
	writeTimeout time.Duration
}

// NewServer creates the server and its routes. An empty allowedOrigins
// accepts any origin.
func NewServer(snapshots SnapshotProvider, sources SourceController, allowedOrigins []string, log *logger.Logger, opts ...Option) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	s := &Server{
		snapshots: snapshots,
		sources:   sources,
		router:    chi.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:          log.Named("api"),
		started:      time.Now(),
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes(allowedOrigins)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(allowedOrigins []string) {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/aircraft", s.handleGetAircraft)
		r.Get("/aircraft/{id}", s.handleGetAircraftByID)

		r.Get("/sources", s.handleGetSources)
		r.Group(func(r chi.Router) {
			r.Use(s.requireRole(auth.RoleOperator))
			r.Post("/sources/{source}/disable", s.handleDisableSource)
			r.Post("/sources/{source}/enable", s.handleEnableSource)
		})

		if s.auth != nil {
			r.Post("/auth/login", s.handleLogin)
		}

		r.Get("/ws", s.handleWebSocket)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Latest()
	resp := map[string]interface{}{
		"status":   "ok",
		"uptime":   time.Since(s.started).Round(time.Second).String(),
		"aircraft": len(snap.Aircraft),
	}
	if !snap.Time.IsZero() {
		resp["snapshot_time"] = snap.Time.Unix()
	}
	if s.storage != nil {
		st := s.storage.StorageStatus(r.Context())
		resp["database"] = st
		if !st.Connected {
			resp["status"] = "degraded"
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetAircraft(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, SnapshotToDTO(s.snapshots.Latest()))
}

func (s *Server) handleGetAircraftByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid aircraft id")
		return
	}
	a, ok := s.snapshots.Latest().LookupID(id)
	if !ok {
		respondError(w, http.StatusNotFound, "aircraft not found")
		return
	}
	respondJSON(w, http.StatusOK, AircraftToDTO(a))
}

func (s *Server) handleGetSources(w http.ResponseWriter, r *http.Request) {
	statuses := s.sources.Statuses()
	out := make([]SourceDTO, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, SourceToDTO(st))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"sources": out})
}

func (s *Server) handleDisableSource(w http.ResponseWriter, r *http.Request) {
	src, err := adsb.ParseSource(chi.URLParam(r, "source"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	removed := s.sources.Disable(src)
	s.log.Info("Source disabled", logger.String("source", string(src)), logger.Int("aircraft_removed", removed))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"source":           src,
		"enabled":          false,
		"aircraft_removed": removed,
	})
}

func (s *Server) handleEnableSource(w http.ResponseWriter, r *http.Request) {
	src, err := adsb.ParseSource(chi.URLParam(r, "source"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.sources.Enable(src)
	s.log.Info("Source enabled", logger.String("source", string(src)))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"source":  src,
		"enabled": true,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
