// Command render draws a single fractal frame and writes it as PNG.
//
//	render -depth 80 -mode scale -x-factor 0.98 -out shot.png
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/talgya/rubbed-squares/internal/config"
	"github.com/talgya/rubbed-squares/internal/engine"
	"github.com/talgya/rubbed-squares/internal/entropy"
	"github.com/talgya/rubbed-squares/internal/noise"
	"github.com/talgya/rubbed-squares/internal/params"
)

func main() {
	cfg := config.FromEnv()
	p := params.Default()

	width := flag.Int("width", cfg.Width, "viewport width in pixels")
	height := flag.Int("height", cfg.Height, "viewport height in pixels")
	seed := flag.Int64("seed", cfg.NoiseSeed, "noise seed, 0 = random")
	out := flag.String("out", cfg.ExportFile(), "output PNG path")
	verbose := flag.Bool("v", false, "debug logging")
	pitch := flag.Float64("pitch", 0, "view tilt toward the viewer, degrees")
	yaw := flag.Float64("yaw", 0, "view turn about the vertical axis, degrees")

	flag.IntVar(&p.Depth, "depth", p.Depth, "recursion depth")
	flag.Float64Var(&p.BaseOffset, "base-offset", p.BaseOffset, "degrees added to every Z rotation")
	flag.Float64Var(&p.NoiseFactor, "noise-factor", p.NoiseFactor, "noise input scale per level")
	flag.Float64Var(&p.EraseFactor, "erase", p.EraseFactor, "negative space, 0 = solid strokes")
	flag.Float64Var(&p.CurveGlobal, "curve-global", p.CurveGlobal, "base curvature")
	flag.Float64Var(&p.CurveInvert, "curve-invert", p.CurveInvert, "curvature multiplier")
	flag.Float64Var(&p.CurveLocal, "curve-local", p.CurveLocal, "curvature added per level")
	flag.Float64Var(&p.XFactor, "x-factor", p.XFactor, "X tilt rate or scale")
	flag.Float64Var(&p.YFactor, "y-factor", p.YFactor, "Y tilt rate or scale")
	flag.TextVar(&p.Mode, "mode", p.Mode, "tilt or scale")
	flag.BoolVar(&p.InvertColors, "invert", p.InvertColors, "white strokes on black")
	flag.Parse()

	level := cfg.LogLevel
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(config.NewLogger(os.Stderr, level, cfg.LogFormat))

	field := noise.New(*seed)
	driver, err := engine.NewDriver(*width, *height, field, entropy.New(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "render: %v\n", err)
		os.Exit(1)
	}
	stored := driver.SetParams(p)
	if stored != p {
		slog.Warn("parameters clamped to their ranges", "depth", stored.Depth, "erase", stored.EraseFactor)
	}
	driver.SetOrbit(engine.Orbit{Pitch: *pitch, Yaw: *yaw})

	stats := driver.RenderFrame()
	slog.Debug("frame rendered", "stats", stats, "noise_seed", field.Seed())

	res, err := driver.Export(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "render: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s (%dx%d, %d squares, noise seed %d)\n", res.Path, res.Width, res.Height, stats.Squares, field.Seed())
}
