package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vmunix/reelbox/internal/events"
)

const (
	sseBuffer    = 64
	sseHeartbeat = 15 * time.Second
	maxEvents    = 1000
)

// streamEvents forwards bus events to the client as server-sent events
// until it disconnects.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Bus == nil {
		writeError(w, http.StatusServiceUnavailable, "NO_EVENT_BUS", "Event bus not configured")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "Streaming unsupported")
		return
	}

	ch := s.deps.Bus.SubscribeAll(sseBuffer)
	defer s.deps.Bus.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := writeSSE(w, e); err != nil {
				s.log.Debug("event stream closed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.EventType(), data)
	return err
}

// listEvents returns persisted events at or after ?since (RFC 3339),
// oldest first. ?type narrows to one event type; ?entity_type with
// ?entity_id returns the history of a single video or job.
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.EventLog == nil {
		writeError(w, http.StatusServiceUnavailable, "NO_EVENT_LOG", "Event log not configured")
		return
	}
	q := r.URL.Query()
	eventType := q.Get("type")
	if eventType != "" && !s.registry.Known(eventType) {
		writeError(w, http.StatusBadRequest, "INVALID_TYPE", "unknown event type: "+eventType)
		return
	}
	entityType, entityID := q.Get("entity_type"), q.Get("entity_id")
	if (entityType == "") != (entityID == "") {
		writeError(w, http.StatusBadRequest, "VALIDATION", "entity_type and entity_id go together")
		return
	}
	limit := queryInt(r, "limit", 100)
	if limit < 0 {
		writeError(w, http.StatusBadRequest, "INVALID_PAGINATION", "limit must be non-negative")
		return
	}
	if limit == 0 || limit > maxEvents {
		limit = maxEvents
	}

	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_SINCE", "since must be an RFC 3339 timestamp")
			return
		}
		since = t
	}

	var (
		list []events.RawEvent
		err  error
	)
	if entityType != "" {
		list, err = s.deps.EventLog.ForEntity(entityType, entityID)
	} else if eventType != "" {
		list, err = s.deps.EventLog.Since(since, 0)
	} else {
		list, err = s.deps.EventLog.Since(since, limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "EVENT_ERROR", err.Error())
		return
	}

	resp := listEventsResponse{Items: []EventResponse{}}
	for _, e := range list {
		if e.OccurredAt.Before(since) || (eventType != "" && e.EventType != eventType) {
			continue
		}
		item := eventToResponse(e)
		if decoded, err := s.registry.Unmarshal(e); err == nil {
			item.Data = decoded
		}
		resp.Items = append(resp.Items, item)
		if len(resp.Items) == limit {
			break
		}
	}
	resp.Total = len(resp.Items)
	writeJSON(w, http.StatusOK, resp)
}
