package torrent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/anacrolix/torrent/storage"
)

// addTimeout bounds how long Add waits on a busy client.
const addTimeout = 30 * time.Second

// Config configures the anacrolix engine.
type Config struct {
	DataDir    string // staging area for client state and uploaded .torrent files
	ListenPort int
}

// Client is an Engine backed by anacrolix/torrent. Each torrent gets file
// storage rooted at its own target directory.
type Client struct {
	cl  *torrent.Client
	log *slog.Logger

	mu      sync.Mutex
	handles map[*anacrolixHandle]struct{}
}

// NewClient starts a BitTorrent client.
func NewClient(cfg Config, log *slog.Logger) (*Client, error) {
	cc := torrent.NewDefaultClientConfig()
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create staging dir: %w", err)
		}
		cc.DataDir = cfg.DataDir
	}
	if cfg.ListenPort > 0 {
		cc.ListenPort = cfg.ListenPort
	}
	cc.Seed = false

	cl, err := torrent.NewClient(cc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return &Client{
		cl:      cl,
		log:     log.With("component", "torrent"),
		handles: make(map[*anacrolixHandle]struct{}),
	}, nil
}

// Add implements Engine.
func (c *Client) Add(ctx context.Context, src Source, saveDir string) (Handle, error) {
	spec, err := specFor(src)
	if err != nil {
		return nil, err
	}
	store := storage.NewFile(saveDir)
	spec.Storage = store

	ch := make(chan addResult, 1)
	go func() {
		t, _, err := c.cl.AddTorrentSpec(spec)
		ch <- addResult{t, err}
	}()

	var t *torrent.Torrent
	select {
	case res := <-ch:
		if res.err != nil {
			_ = store.Close()
			return nil, res.err
		}
		t = res.t
	case <-time.After(addTimeout):
		go dropLate(ch, store)
		return nil, errors.New("torrent client busy, try again later")
	case <-ctx.Done():
		go dropLate(ch, store)
		return nil, ctx.Err()
	}

	h := &anacrolixHandle{t: t, store: store, sampledAt: time.Now()}
	c.mu.Lock()
	c.handles[h] = struct{}{}
	c.mu.Unlock()

	go func() {
		select {
		case <-t.GotInfo():
			t.DownloadAll()
			c.log.Debug("metadata received", "name", t.Name(), "infohash", t.InfoHash().HexString())
		case <-t.Closed():
		}
	}()
	return h, nil
}

type addResult struct {
	t   *torrent.Torrent
	err error
}

// dropLate cleans up after an add that completed after its caller gave up.
func dropLate(ch <-chan addResult, store storage.ClientImplCloser) {
	if res := <-ch; res.t != nil {
		res.t.Drop()
	}
	_ = store.Close()
}

// Remove implements Engine.
func (c *Client) Remove(h Handle) error {
	ah, ok := h.(*anacrolixHandle)
	if !ok {
		return fmt.Errorf("unknown handle type %T", h)
	}
	c.mu.Lock()
	_, tracked := c.handles[ah]
	delete(c.handles, ah)
	c.mu.Unlock()
	if !tracked {
		return nil
	}
	ah.t.Drop()
	return ah.store.Close()
}

// Close drops every torrent and shuts the client down.
func (c *Client) Close() error {
	c.mu.Lock()
	handles := c.handles
	c.handles = make(map[*anacrolixHandle]struct{})
	c.mu.Unlock()
	for h := range handles {
		h.t.Drop()
		_ = h.store.Close()
	}
	errs := c.cl.Close()
	return errors.Join(errs...)
}

func specFor(src Source) (*torrent.TorrentSpec, error) {
	switch {
	case src.Magnet != "":
		spec, err := torrent.TorrentSpecFromMagnetUri(src.Magnet)
		if err != nil {
			return nil, fmt.Errorf("parse magnet: %w", err)
		}
		return spec, nil
	case src.File != "":
		mi, err := metainfo.LoadFromFile(src.File)
		if err != nil {
			return nil, fmt.Errorf("load torrent file: %w", err)
		}
		spec, err := torrent.TorrentSpecFromMetaInfoErr(mi)
		if err != nil {
			return nil, fmt.Errorf("read torrent file: %w", err)
		}
		return spec, nil
	default:
		return nil, errors.New("empty torrent source")
	}
}

type anacrolixHandle struct {
	t     *torrent.Torrent
	store storage.ClientImplCloser

	mu        sync.Mutex
	lastBytes int64
	sampledAt time.Time
	rate      int64
}

func (h *anacrolixHandle) Name() string {
	if h.t.Info() == nil {
		return ""
	}
	return h.t.Name()
}

func (h *anacrolixHandle) Status() Status {
	var st Status
	select {
	case <-h.t.Closed():
		st.Err = errors.New("torrent closed")
		return st
	default:
	}
	if h.t.Info() == nil {
		return st
	}
	st.HasMetadata = true
	if total := h.t.Length(); total > 0 {
		st.Progress = float64(h.t.BytesCompleted()) / float64(total)
	}
	stats := h.t.Stats()
	st.NumPeers = stats.ActivePeers
	st.DownloadRate = h.sample(stats.BytesReadUsefulData.Int64())
	st.IsSeeding = h.t.Seeding()
	return st
}

// sample derives a download rate from the cumulative byte counter, updating
// at most once per second.
func (h *anacrolixHandle) sample(read int64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(h.sampledAt)
	if elapsed < time.Second {
		return h.rate
	}
	delta := read - h.lastBytes
	if delta < 0 {
		delta = 0
	}
	h.rate = int64(float64(delta) / elapsed.Seconds())
	h.lastBytes = read
	h.sampledAt = now
	return h.rate
}
