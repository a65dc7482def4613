package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client wraps HTTP calls to the reelbox server.
type Client struct {
	baseURL    string
	user, pass string
	httpClient *http.Client
}

// NewClient creates a new reelbox API client.
func NewClient(serverURL string) *Client {
	return &Client{
		baseURL: serverURL,
		httpClient: &http.Client{
			// Rescans and reloads run synchronously on the server.
			Timeout: 5 * time.Minute,
		},
	}
}

// SetBasicAuth sends credentials with every request.
func (c *Client) SetBasicAuth(user, pass string) {
	c.user, c.pass = user, pass
}

// apiError is the server's JSON error body.
type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *Client) do(method, path string, body any, result any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		var e apiError
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("server error %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("server error %d: %s", resp.StatusCode, string(data))
	}
	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func (c *Client) get(path string, result any) error {
	return c.do(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body, result any) error {
	return c.do(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body, result any) error {
	return c.do(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	return c.do(http.MethodDelete, path, nil, nil)
}

// API response types (mirror server types)

type SourceResponse struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Path  string `json:"path,omitempty"`
}

type VideoResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	SourceID        string    `json:"source_id"`
	SourceLabel     string    `json:"source_label"`
	RelPath         string    `json:"rel_path"`
	Size            int64     `json:"size"`
	ModifiedAt      time.Time `json:"modified_at"`
	PositionSeconds float64   `json:"position_seconds"`
}

type ListVideosResponse struct {
	Items []VideoResponse `json:"items"`
	Total int             `json:"total"`
}

type ScanResponse struct {
	Seen       int   `json:"seen"`
	Added      int   `json:"added"`
	Removed    int   `json:"removed"`
	DurationMS int64 `json:"duration_ms"`
}

type JobResponse struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	SourceKind      string    `json:"source_kind"`
	Source          string    `json:"source"`
	SourceID        string    `json:"source_id"`
	SourceLabel     string    `json:"source_label"`
	Status          string    `json:"status"`
	Error           string    `json:"error,omitempty"`
	Title           string    `json:"title,omitempty"`
	ProgressPercent float64   `json:"progress_percent"`
	VideoID         string    `json:"video_id,omitempty"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ListJobsResponse struct {
	Items []JobResponse `json:"items"`
	Total int           `json:"total"`
}

type SettingsResponse struct {
	Sources     []SourceResponse `json:"sources"`
	Downloads   bool             `json:"downloads_enabled"`
	AuthEnabled bool             `json:"auth_enabled"`
	SeekTime    int              `json:"seek_time"`
	Modules     struct {
		Torrents bool `json:"torrents"`
		Youtube  bool `json:"youtube"`
		Pastebin bool `json:"pastebin"`
	} `json:"modules"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	EventType  string `json:"event_type"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Payload    string `json:"payload"`
	OccurredAt string `json:"occurred_at"`
}

type ListEventsResponse struct {
	Items []EventResponse `json:"items"`
	Total int             `json:"total"`
}

// Health reports whether the server answers.
func (c *Client) Health() error {
	return c.get("/api/health", nil)
}

func (c *Client) Videos() (*ListVideosResponse, error) {
	var resp ListVideosResponse
	if err := c.get("/api/videos", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Video(id string) (*VideoResponse, error) {
	var resp VideoResponse
	if err := c.get("/api/videos/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DeleteVideo(id string) error {
	return c.delete("/api/videos/" + url.PathEscape(id))
}

func (c *Client) MoveVideo(id, sourceID, relPath string) (*VideoResponse, error) {
	var resp VideoResponse
	body := map[string]string{"target_source_id": sourceID, "target_rel_path": relPath}
	if err := c.post("/api/videos/"+url.PathEscape(id)+"/move", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SetProgress(id string, seconds float64) error {
	return c.put("/api/progress/"+url.PathEscape(id), map[string]float64{"position_seconds": seconds}, nil)
}

func (c *Client) Rescan() (*ScanResponse, error) {
	var resp ScanResponse
	if err := c.post("/api/rescan", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Sources() ([]SourceResponse, error) {
	var resp []SourceResponse
	if err := c.get("/api/sources", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Jobs lists jobs under prefix, /api/torrents or /api/youtube.
func (c *Client) Jobs(prefix string, limit int) (*ListJobsResponse, error) {
	var resp ListJobsResponse
	path := prefix
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.get(path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) StartJob(path string, body map[string]string) (*JobResponse, error) {
	var resp JobResponse
	if err := c.post(path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobAction posts to <prefix>/<id>/<action> (stop, retry, restart).
func (c *Client) JobAction(prefix, id, action string) (*JobResponse, error) {
	var resp JobResponse
	if err := c.post(prefix+"/"+url.PathEscape(id)+"/"+action, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DeleteJob(prefix, id string) error {
	return c.delete(prefix + "/" + url.PathEscape(id))
}

func (c *Client) Settings() (*SettingsResponse, error) {
	var resp SettingsResponse
	if err := c.get("/api/settings", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) AddSource(id, label, path string, create bool) (*SettingsResponse, error) {
	var resp SettingsResponse
	body := map[string]any{"id": id, "label": label, "path": path, "create_if_missing": create}
	if err := c.post("/api/settings/sources", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) RemoveSource(id string, fromDisk bool) error {
	return c.delete("/api/settings/sources/" + url.PathEscape(id) + "?remove_from_disk=" + strconv.FormatBool(fromDisk))
}

func (c *Client) SetSeekTime(seconds int) (*SettingsResponse, error) {
	var resp SettingsResponse
	if err := c.post("/api/settings/player", map[string]int{"seek_time": seconds}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Events(since time.Time, limit int) (*ListEventsResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	var resp ListEventsResponse
	if err := c.get("/api/events/history?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
