// Command sketchd renders the rubbed-squares fractal continuously and serves
// frames, parameter controls and exports over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/rubbed-squares/internal/api"
	"github.com/talgya/rubbed-squares/internal/config"
	"github.com/talgya/rubbed-squares/internal/engine"
	"github.com/talgya/rubbed-squares/internal/entropy"
	"github.com/talgya/rubbed-squares/internal/noise"
	"github.com/talgya/rubbed-squares/internal/persistence"
)

const metaFrames = "frames_rendered"

func main() {
	cfg := config.FromEnv()
	slog.SetDefault(config.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat))

	slog.Info("rubbed squares sketch server",
		"viewport", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"fps", cfg.FPS,
	)

	// ── Export ledger ─────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		slog.Error("failed to create data dir", "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var previous uint64
	if v, err := db.GetMeta(metaFrames); err == nil {
		previous, _ = strconv.ParseUint(v, 10, 64)
	}
	exports, err := db.CountExports(context.Background())
	if err != nil {
		slog.Warn("could not count exports", "error", err)
	}
	slog.Info("database opened", "path", cfg.DBPath, "exports", exports, "previous_frames", previous)

	// ── Driver ────────────────────────────────────────────────────────
	field := noise.New(cfg.NoiseSeed)
	slog.Info("noise field ready", "seed", field.Seed())

	driver, err := engine.NewDriver(cfg.Width, cfg.Height, field, entropy.New(0))
	if err != nil {
		slog.Error("failed to create driver", "error", err)
		os.Exit(1)
	}

	loop := engine.NewLoop(cfg.FPS)
	loop.OnFrame = func(uint64) { driver.RenderFrame() }
	loop.OnReport = func(uint64) {
		slog.Info("frame report", "stats", driver.LastFrame())
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("SKETCH_ADMIN_KEY not set, control endpoints are open")
	}
	apiServer := &api.Server{
		Driver:     driver,
		Loop:       loop,
		DB:         db,
		Port:       cfg.Port,
		ExportDir:  cfg.ExportDir,
		ExportFile: cfg.ExportFile(),
		AdminKey:   cfg.AdminKey,
		TrustProxy: cfg.TrustProxy,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Port)
	fmt.Println("Rendering... (Ctrl+C to stop)")

	loop.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	total := previous + driver.Frames()
	if err := db.SaveMeta(metaFrames, strconv.FormatUint(total, 10)); err != nil {
		slog.Error("save frame count failed", "error", err)
	}
	slog.Info("stopped", "frames", driver.Frames(), "frames_all_time", total)
}
