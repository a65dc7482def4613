package api

import "net/http"

func (s *Server) getPaste(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Pastebin.Get())
}

func (s *Server) setPaste(w http.ResponseWriter, r *http.Request) {
	var req pasteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.deps.Pastebin.Set(req.Content, req.TTLMinutes)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) clearPaste(w http.ResponseWriter, _ *http.Request) {
	s.deps.Pastebin.Clear()
	writeOK(w)
}
