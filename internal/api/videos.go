package api

import (
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vmunix/reelbox/internal/events"
	"github.com/vmunix/reelbox/internal/library"
	"github.com/vmunix/reelbox/internal/transcode"
)

// maxUploadMemory is held in memory before multipart parts spill to disk.
const maxUploadMemory = 32 << 20

func (s *Server) listSources(w http.ResponseWriter, _ *http.Request) {
	sources := s.deps.Index.Sources()
	resp := make([]SourceResponse, len(sources))
	for i, src := range sources {
		resp[i] = sourceToResponse(src)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listVideos(w http.ResponseWriter, _ *http.Request) {
	entries, err := s.deps.Index.List()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	resp := listVideosResponse{Items: make([]VideoResponse, len(entries)), Total: len(entries)}
	for i, e := range entries {
		resp.Items[i] = entryToResponse(e)
	}
	writeJSON(w, http.StatusOK, resp)
}

// videoID reads and checks the {id} path parameter.
func videoID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !library.ValidID(id) {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid video id")
		return "", false
	}
	return id, true
}

func (s *Server) getVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := videoID(w, r)
	if !ok {
		return
	}
	v, err := s.deps.Index.Get(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, videoToResponse(v))
}

func (s *Server) rescan(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Index.Scan(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ScanResponse{
		Seen:       res.Seen,
		Added:      res.Added,
		Removed:    res.Removed,
		DurationMS: res.Duration.Milliseconds(),
	})
}

func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := videoID(w, r)
	if !ok {
		return
	}
	p, err := s.deps.Index.Progress(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progressToResponse(p))
}

func (s *Server) putProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := videoID(w, r)
	if !ok {
		return
	}
	var req progressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PositionSeconds == nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "position_seconds is required")
		return
	}
	p, err := s.deps.Index.SetProgress(id, *req.PositionSeconds)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progressToResponse(p))
}

// streamVideo serves the file with range support, or pipes it through
// ffmpeg when its container needs transcoding and ffmpeg is installed.
func (s *Server) streamVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := videoID(w, r)
	if !ok {
		return
	}
	v, err := s.deps.Index.Get(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if st := s.deps.Streamer; st != nil && st.Needs(v.AbsPath) {
		if err := st.Available(); err == nil {
			s.transcode(w, r, st, v)
			return
		}
		s.log.Debug("ffmpeg unavailable, serving original", "id", v.ID)
	}

	f, err := os.Open(v.AbsPath)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "video file missing on disk")
		return
	}
	defer func() { _ = f.Close() }()
	fi, err := f.Stat()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	http.ServeContent(w, r, path.Base(v.RelPath), fi.ModTime(), f)
}

func (s *Server) transcode(w http.ResponseWriter, r *http.Request, st *transcode.Streamer, v *library.Video) {
	w.Header().Set("Content-Type", st.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if err := st.Stream(r.Context(), v.AbsPath, w); err != nil && r.Context().Err() == nil {
		// Headers are gone; all that is left is to cut the response short.
		s.log.Warn("transcode failed", "id", v.ID, "error", err)
	}
}

func (s *Server) deleteVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := videoID(w, r)
	if !ok {
		return
	}
	v, err := s.deps.Index.Get(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.deps.Index.Delete(id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.publish(r.Context(), &events.VideoDeleted{
		BaseEvent: events.NewBaseEvent(events.EventVideoDeleted, events.EntityVideo, id),
		RelPath:   v.RelPath,
	})
	writeOK(w)
}

func (s *Server) moveVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := videoID(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TargetSourceID == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", "target_source_id is required")
		return
	}
	moved, err := s.deps.Index.Move(id, req.TargetSourceID, req.TargetRelPath)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if moved.ID != id || moved.SourceID != req.TargetSourceID {
		s.publish(r.Context(), &events.VideoMoved{
			BaseEvent: events.NewBaseEvent(events.EventVideoMoved, events.EntityVideo, id),
			NewID:     moved.ID,
			SourceID:  moved.SourceID,
			RelPath:   moved.RelPath,
		})
	}
	writeJSON(w, http.StatusOK, videoToResponse(moved))
}

func (s *Server) uploadVideo(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORM", err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("video_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "video_file is required")
		return
	}
	defer func() { _ = file.Close() }()

	sourceID := strings.TrimSpace(r.FormValue("source_id"))
	if sourceID == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", "source_id is required")
		return
	}
	rel := strings.TrimSpace(r.FormValue("rel_path"))
	if rel == "" {
		rel = path.Base(header.Filename)
	} else if strings.HasSuffix(rel, "/") {
		rel += path.Base(header.Filename)
	}

	v, err := s.deps.Index.Upload(r.Context(), sourceID, rel, file)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, videoToResponse(v))
}

func (s *Server) browse(w http.ResponseWriter, r *http.Request) {
	sourceID := r.URL.Query().Get("source_id")
	if sourceID == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", "source_id is required")
		return
	}
	rel := r.URL.Query().Get("path")
	entries, err := s.deps.Index.Browse(sourceID, rel)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	resp := browseResponse{SourceID: sourceID, Path: rel, Items: make([]BrowseEntryResponse, len(entries))}
	for i, e := range entries {
		resp.Items[i] = BrowseEntryResponse{Name: e.Name, RelPath: e.RelPath, IsDir: e.IsDir, Size: e.Size, VideoID: e.VideoID}
	}
	writeJSON(w, http.StatusOK, resp)
}
