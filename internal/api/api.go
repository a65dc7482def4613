// Package api implements the HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vmunix/reelbox/internal/config"
	"github.com/vmunix/reelbox/internal/events"
	"github.com/vmunix/reelbox/internal/jobs"
	"github.com/vmunix/reelbox/internal/library"
	"github.com/vmunix/reelbox/internal/metrics"
	"github.com/vmunix/reelbox/internal/pastebin"
	"github.com/vmunix/reelbox/internal/settings"
	"github.com/vmunix/reelbox/internal/transcode"
)

// ErrMissingDependency is returned when a required dependency is nil.
var ErrMissingDependency = errors.New("missing required dependency")

// Deps contains the components the API serves.
// Index and Settings are required; the rest may be nil.
type Deps struct {
	Index    *library.Index
	Settings *settings.Store

	Torrents   *jobs.Manager
	URLs       *jobs.Manager
	StagingDir string // where uploaded .torrent files are kept
	Streamer   *transcode.Streamer
	Bus        *events.Bus
	EventLog   *events.EventLog
	Pastebin   *pastebin.Store
	Metrics    *metrics.Metrics

	// Reload re-reads the config file and applies it to the running server.
	Reload func(ctx context.Context) error
}

// Validate checks that all required dependencies are provided.
func (d Deps) Validate() error {
	if d.Index == nil {
		return errors.New("library index is required")
	}
	if d.Settings == nil {
		return errors.New("settings store is required")
	}
	return nil
}

// Server is the HTTP API.
type Server struct {
	deps     Deps
	auth     config.AuthConfig
	modules  config.ModulesConfig
	registry *events.Registry
	log      *slog.Logger
}

// New creates a Server. Auth and module toggles are fixed for its lifetime.
func New(deps Deps, auth config.AuthConfig, modules config.ModulesConfig, log *slog.Logger) (*Server, error) {
	if err := deps.Validate(); err != nil {
		return nil, errors.Join(ErrMissingDependency, err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		deps:     deps,
		auth:     auth,
		modules:  modules,
		registry: events.DefaultRegistry(),
		log:      log.With("component", "api"),
	}, nil
}

// Handler returns the router with all enabled routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/api/health", s.health)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.basicAuth)

		r.Get("/api/modules", s.getModules)
		r.Get("/api/sources", s.listSources)
		r.Post("/api/rescan", s.rescan)

		r.Get("/api/videos", s.listVideos)
		r.Post("/api/videos/upload", s.uploadVideo)
		r.Get("/api/videos/{id}", s.getVideo)
		r.Delete("/api/videos/{id}", s.deleteVideo)
		r.Post("/api/videos/{id}/move", s.moveVideo)
		r.Get("/api/stream/{id}", s.streamVideo)
		r.Get("/api/progress/{id}", s.getProgress)
		r.Put("/api/progress/{id}", s.putProgress)
		r.Get("/api/browse", s.browse)

		r.Get("/api/settings", s.getSettings)
		r.Post("/api/settings/sources", s.upsertSource)
		r.Delete("/api/settings/sources/{id}", s.deleteSource)
		r.Post("/api/settings/player", s.updatePlayer)

		r.Get("/api/events", s.streamEvents)
		r.Get("/api/events/history", s.listEvents)

		if s.modules.Torrents && s.deps.Torrents != nil {
			r.Route("/api/torrents", func(r chi.Router) {
				s.jobRoutes(r, s.deps.Torrents)
				r.Post("/magnet", s.startMagnet)
				r.Post("/upload", s.uploadTorrent)
			})
		}
		if s.modules.Youtube && s.deps.URLs != nil {
			r.Route("/api/youtube", func(r chi.Router) {
				s.jobRoutes(r, s.deps.URLs)
				r.Post("/download", s.startURL)
			})
		}
		if s.modules.Pastebin && s.deps.Pastebin != nil {
			r.Get("/api/pastebin", s.getPaste)
			r.Post("/api/pastebin", s.setPaste)
			r.Delete("/api/pastebin", s.clearPaste)
		}
	})
	return r
}

// Error response
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, Code: errCode})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// writeDomainError maps package sentinel errors onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, library.ErrNotFound), errors.Is(err, jobs.ErrNotFound), errors.Is(err, settings.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, library.ErrDuplicate):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, jobs.ErrActive):
		writeError(w, http.StatusBadRequest, "JOB_ACTIVE", err.Error())
	case errors.Is(err, jobs.ErrDisabled):
		writeError(w, http.StatusBadRequest, "DISABLED", err.Error())
	case errors.Is(err, library.ErrValidation), errors.Is(err, jobs.ErrValidation),
		errors.Is(err, settings.ErrValidation), errors.Is(err, pastebin.ErrTooLarge):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error())
	default:
		s.log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return false
	}
	return true
}

// queryInt extracts an optional integer from query string.
func queryInt(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeOK(w)
}

func (s *Server) getModules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.modules)
}

// publish sends e on the bus when one is configured.
func (s *Server) publish(ctx context.Context, e events.Event) {
	if s.deps.Bus != nil {
		_ = s.deps.Bus.Publish(ctx, e)
	}
}
