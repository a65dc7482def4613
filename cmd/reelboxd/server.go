package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/vmunix/reelbox/internal/api"
	"github.com/vmunix/reelbox/internal/config"
	"github.com/vmunix/reelbox/internal/events"
	"github.com/vmunix/reelbox/internal/jobs"
	"github.com/vmunix/reelbox/internal/library"
	"github.com/vmunix/reelbox/internal/metrics"
	"github.com/vmunix/reelbox/internal/migrations"
	"github.com/vmunix/reelbox/internal/pastebin"
	"github.com/vmunix/reelbox/internal/server"
	"github.com/vmunix/reelbox/internal/settings"
	"github.com/vmunix/reelbox/internal/torrent"
	"github.com/vmunix/reelbox/internal/transcode"
	"github.com/vmunix/reelbox/internal/ytdlp"
)

const (
	eventRetention = 7 * 24 * time.Hour
	pruneInterval  = time.Hour
)

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runServer(explicitPath string) error {
	configPath, err := config.Resolve(explicitPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	for _, w := range cfg.Warnings() {
		logger.Warn("config warning", "detail", w)
	}

	db, err := migrations.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	// === Library ===
	// Sources and extensions are installed by server.NewRunner.
	index := library.NewIndex(library.NewStore(db), nil, nil, logger.With("component", "library"))
	sched := library.NewScheduler(index, cfg.Watcher.Debounce, logger)
	defer sched.Close()

	// === Events and metrics ===
	eventLog := events.NewEventLog(db)
	bus := events.NewBus(eventLog, logger.With("component", "events"))
	defer func() { _ = bus.Close() }()
	m := metrics.New()

	index.OnScan(m.ObserveScan)
	index.OnScan(func(r library.ScanResult) {
		_ = bus.Publish(context.Background(), &events.ScanCompleted{
			BaseEvent:  events.NewBaseEvent(events.EventScanCompleted, events.EntityLibrary, "library"),
			Seen:       r.Seen,
			Added:      r.Added,
			Removed:    r.Removed,
			DurationMS: r.Duration.Milliseconds(),
		})
	})

	// === Download engines (optional) ===
	var engine torrent.Engine
	stagingDir := cfg.Downloads.TorrentStagingDir
	if cl, err := torrent.NewClient(torrent.Config{DataDir: stagingDir, ListenPort: cfg.Downloads.ListenPort}, logger); err != nil {
		logger.Warn("torrent engine unavailable", "error", err)
	} else {
		engine = cl
		defer func() {
			if err := cl.Close(); err != nil {
				logger.Warn("torrent engine close", "error", err)
			}
		}()
	}
	ytdlpClient := ytdlp.New(cfg.Downloads.YtdlpPath, cfg.Downloads.YtdlpFormat)

	torrents := jobs.NewManager(jobs.KindTorrent, jobs.NewStore(db, jobs.KindTorrent), torrent.NewRunner(engine), index, sched, logger)
	urls := jobs.NewManager(jobs.KindURL, jobs.NewStore(db, jobs.KindURL), ytdlp.NewRunner(ytdlpClient), index, sched, logger)
	for _, mgr := range []*jobs.Manager{torrents, urls} {
		if err := mgr.Recover(); err != nil {
			return fmt.Errorf("recover %s jobs: %w", mgr.Kind(), err)
		}
		mgr.OnChange(m.ObserveJob)
		mgr.OnChange(publishJobChange(bus))
		defer mgr.Close()
	}

	runner := server.NewRunner(cfg, index, sched, []*jobs.Manager{torrents, urls}, logger)

	// === HTTP ===
	srvAPI, err := api.New(api.Deps{
		Index:      index,
		Settings:   settings.New(configPath, cfg.Library.ProtectedPaths),
		Torrents:   torrents,
		URLs:       urls,
		StagingDir: filepath.Join(stagingDir, "uploads"),
		Streamer:   transcode.New(cfg.Transcode.FFmpegPath, cfg.Transcode.Extensions, cfg.Transcode.Mode),
		Bus:        bus,
		EventLog:   eventLog,
		Pastebin:   pastebin.New(),
		Metrics:    m,
		Reload: func(ctx context.Context) error {
			next, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runner.Reconfigure(ctx, next)
		},
	}, cfg.Auth, cfg.Modules, logger)
	if err != nil {
		return err
	}

	// === Background work ===
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- runner.Run(ctx) }()
	go pruneEvents(ctx, eventLog, logger.With("component", "events"))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("server starting",
		"addr", addr,
		"config", configPath,
		"database", cfg.Database.Path,
		"sources", len(cfg.Library.Sources),
		"torrent_engine", engine != nil,
		"auth", cfg.Auth.Enabled,
		"log_level", cfg.Server.LogLevel,
	)

	srv := &http.Server{Addr: addr, Handler: srvAPI.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	// Stop drivers and scans before the HTTP listener goes away.
	cancel()
	if err := <-runDone; err != nil {
		logger.Warn("runner stopped with error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// publishJobChange forwards job changes to the bus.
func publishJobChange(bus *events.Bus) jobs.ChangeHandler {
	return func(c jobs.Change) {
		entity := string(c.Job.Kind)
		if c.Progress {
			_ = bus.Publish(context.Background(), &events.JobProgressed{
				BaseEvent: events.NewBaseEvent(events.EventJobProgress, entity, c.Job.ID),
				Percent:   c.Job.ProgressPercent,
			})
			return
		}
		_ = bus.Publish(context.Background(), &events.JobStatusChanged{
			BaseEvent: events.NewBaseEvent(events.EventJobStatus, entity, c.Job.ID),
			Status:    string(c.Job.Status),
			Error:     c.Job.Error,
			Title:     c.Job.DisplayName,
			VideoID:   c.Job.VideoID,
		})
	}
}

func pruneEvents(ctx context.Context, log *events.EventLog, logger *slog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		if n, err := log.Prune(eventRetention); err != nil {
			logger.Error("prune failed", "error", err)
		} else if n > 0 {
			logger.Debug("pruned events", "count", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
