package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vmunix/reelbox/internal/jobs"
	"github.com/vmunix/reelbox/internal/torrent"
)

const (
	defaultJobLimit = 100
	maxJobLimit     = 1000
)

// jobRoutes mounts the list, meta, and per-job actions shared by every
// job kind.
func (s *Server) jobRoutes(r chi.Router, m *jobs.Manager) {
	r.Get("/", s.listJobs(m))
	r.Get("/meta", s.jobsMeta(m))
	r.Get("/{id}", s.getJob(m))
	r.Post("/{id}/stop", s.stopJob(m))
	r.Post("/{id}/restart", s.retryJob(m))
	r.Post("/{id}/retry", s.retryJob(m))
	r.Delete("/{id}", s.deleteJob(m))
}

func (s *Server) listJobs(m *jobs.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", defaultJobLimit)
		if limit <= 0 || limit > maxJobLimit {
			limit = maxJobLimit
		}
		list, err := m.List(limit)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		resp := listJobsResponse{Items: make([]JobResponse, len(list)), Total: len(list)}
		for i, j := range list {
			resp.Items[i] = jobToResponse(j, m.Active(j.ID))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) jobsMeta(m *jobs.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		meta := jobsMeta{Enabled: true}
		if err := m.Available(); err != nil {
			meta.Enabled = false
			meta.Error = err.Error()
		}
		for _, src := range s.deps.Index.Sources() {
			meta.Sources = append(meta.Sources, sourceToResponse(src))
		}
		writeJSON(w, http.StatusOK, meta)
	}
}

func (s *Server) getJob(m *jobs.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		j, err := m.Get(id)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, jobToResponse(j, m.Active(id)))
	}
}

func (s *Server) stopJob(m *jobs.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		j, err := m.Stop(r.Context(), id)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, jobToResponse(j, false))
	}
}

func (s *Server) retryJob(m *jobs.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		j, err := m.Retry(r.Context(), id)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, jobToResponse(j, true))
	}
}

func (s *Server) deleteJob(m *jobs.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		j, err := m.Get(id)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		if err := m.Delete(id); err != nil {
			s.writeDomainError(w, err)
			return
		}
		s.removeStaged(j)
		writeOK(w)
	}
}

// removeStaged deletes the uploaded .torrent file kept for a job.
func (s *Server) removeStaged(j *jobs.Job) {
	if j.SourceKind != jobs.SourceTorrent || s.deps.StagingDir == "" {
		return
	}
	rel, err := filepath.Rel(s.deps.StagingDir, j.SourceValue)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return
	}
	if err := os.Remove(j.SourceValue); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("cannot remove staged torrent", "path", j.SourceValue, "error", err)
	}
}

func (s *Server) startJob(w http.ResponseWriter, r *http.Request, m *jobs.Manager, req jobs.Request) {
	j, err := m.Start(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, jobToResponse(j, true))
}

func (s *Server) startMagnet(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.startJob(w, r, s.deps.Torrents, jobs.Request{
		SourceKind:  jobs.SourceMagnet,
		SourceValue: req.Magnet,
		SourceID:    req.SourceID,
		Subdir:      req.Subdir,
	})
}

func (s *Server) uploadTorrent(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Torrents.Available(); err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORM", err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("torrent_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "torrent_file is required")
		return
	}
	defer func() { _ = file.Close() }()

	staged, err := torrent.SaveUploadedTorrent(s.deps.StagingDir, header.Filename, file)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	j, err := s.deps.Torrents.Start(r.Context(), jobs.Request{
		SourceKind:  jobs.SourceTorrent,
		SourceValue: staged,
		SourceID:    r.FormValue("source_id"),
		Subdir:      r.FormValue("subdir"),
	})
	if err != nil {
		_ = os.Remove(staged)
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, jobToResponse(j, true))
}

func (s *Server) startURL(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.startJob(w, r, s.deps.URLs, jobs.Request{
		SourceKind:  jobs.SourceURL,
		SourceValue: req.URL,
		SourceID:    req.SourceID,
		Subdir:      req.Subdir,
	})
}
