package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vmunix/reelbox/internal/config"
)

func (s *Server) getSettings(w http.ResponseWriter, _ *http.Request) {
	st, err := s.deps.Settings.Get()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// applied reloads the running server after a settings write and responds
// with the new settings.
func (s *Server) applied(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reload != nil {
		if err := s.deps.Reload(r.Context()); err != nil {
			s.log.Error("reload after settings change failed", "error", err)
			writeError(w, http.StatusInternalServerError, "RELOAD_FAILED", err.Error())
			return
		}
	}
	s.getSettings(w, r)
}

func (s *Server) upsertSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	src := config.Source{ID: req.ID, Label: req.Label, Path: req.Path}
	if err := s.deps.Settings.UpsertSource(src, req.CreateIfMissing); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.applied(w, r)
}

func (s *Server) deleteSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removeFromDisk, _ := strconv.ParseBool(r.URL.Query().Get("remove_from_disk"))
	if err := s.deps.Settings.DeleteSource(id, removeFromDisk); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.applied(w, r)
}

func (s *Server) updatePlayer(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.deps.Settings.UpdatePlayer(req.SeekTime); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.applied(w, r)
}
