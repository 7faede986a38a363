// Package config reads process configuration from the environment and
// builds the default structured logger.
package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
)

// Config holds everything the sketch server needs at startup.
type Config struct {
	Port       int    // HTTP API port
	DBPath     string // SQLite export ledger
	ExportDir  string // Directory exported frames are written to
	ExportBase string // Fixed base name of exported files, without extension
	Width      int    // Initial viewport width
	Height     int    // Initial viewport height
	FPS        int    // Frame loop rate
	NoiseSeed  int64  // 0 = random per session
	AdminKey   string // Bearer token for POST endpoints. Empty = POST open.
	TrustProxy bool   // Rate limit by X-Forwarded-For (only behind a proxy)
	LogLevel   slog.Level
	LogFormat  string // "text", "json" or "" to pick by terminal
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:       8080,
		DBPath:     "data/sketch.db",
		ExportDir:  "exports",
		ExportBase: "myFractal",
		Width:      1024,
		Height:     768,
		FPS:        30,
		LogLevel:   slog.LevelInfo,
	}
}

// FromEnv overlays SKETCH_* and LOG_* environment variables on Default.
func FromEnv() Config {
	d := Default()
	return Config{
		Port:       envIntOrDefault("SKETCH_PORT", d.Port),
		DBPath:     envOrDefault("SKETCH_DB", d.DBPath),
		ExportDir:  envOrDefault("SKETCH_EXPORT_DIR", d.ExportDir),
		ExportBase: envOrDefault("SKETCH_EXPORT_BASE", d.ExportBase),
		Width:      envIntOrDefault("SKETCH_WIDTH", d.Width),
		Height:     envIntOrDefault("SKETCH_HEIGHT", d.Height),
		FPS:        envIntOrDefault("SKETCH_FPS", d.FPS),
		NoiseSeed:  envInt64OrDefault("SKETCH_NOISE_SEED", d.NoiseSeed),
		AdminKey:   os.Getenv("SKETCH_ADMIN_KEY"),
		TrustProxy: envBoolOrDefault("SKETCH_TRUST_PROXY", d.TrustProxy),
		LogLevel:   ParseLevel(os.Getenv("LOG_LEVEL")),
		LogFormat:  strings.ToLower(os.Getenv("LOG_FORMAT")),
	}
}

// ExportFile returns the file name exports are written to.
func (c Config) ExportFile() string {
	return c.ExportBase + ".png"
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// NewLogger builds a logger writing to w. Terminals get the text handler,
// everything else JSON, unless format forces one.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	useText := false
	switch format {
	case "text":
		useText = true
	case "json":
		useText = false
	default:
		if f, ok := w.(*os.File); ok {
			useText = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}

	if useText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBoolOrDefault(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envInt64OrDefault(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultVal
}
