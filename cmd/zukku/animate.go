package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aggressionjsk/ai-saas-app/internal/animator"
	"github.com/aggressionjsk/ai-saas-app/internal/asset"
	"github.com/aggressionjsk/ai-saas-app/internal/config"
	xglog "github.com/aggressionjsk/ai-saas-app/internal/log"
	"github.com/aggressionjsk/ai-saas-app/internal/source"
	"github.com/aggressionjsk/ai-saas-app/internal/system"
)

const (
	defaultInputDir = "input/images"
	stdinInput      = "-"
)

// animationFlags registers the per-run overrides shared by animate and generate.
func animationFlags(fs *flag.FlagSet, def config.Config) func(cfg *config.Config) {
	duration := fs.Duration("duration", def.Animation.Duration, "clip length")
	size := fs.Int("size", def.Animation.Size, "output edge in pixels (even)")
	fps := fs.Int("fps", def.Animation.FPS, "frames per second")
	zoom := fs.Float64("zoom", def.Animation.Zoom, "zoom coefficient k, zoom = 1 + k*t")
	quality := fs.String("quality", def.Animation.Quality, "resampling: nearest, bilinear or catmullrom")
	format := fs.String("format", def.Video.Format, "container: webm or mp4")
	encoder := fs.String("encoder", def.Video.Encoder, "ffmpeg encoder, empty to pick the best available")

	return func(cfg *config.Config) {
		set := visited(fs)
		if set["duration"] {
			cfg.Animation.Duration = *duration
		}
		if set["size"] {
			cfg.Animation.Size = *size
		}
		if set["fps"] {
			cfg.Animation.FPS = *fps
		}
		if set["zoom"] {
			cfg.Animation.Zoom = *zoom
		}
		if set["quality"] {
			cfg.Animation.Quality = *quality
		}
		if set["format"] {
			cfg.Video.Format = *format
		}
		if set["encoder"] {
			cfg.Video.Encoder = *encoder
		}
	}
}

func runAnimate(ctx context.Context, args []string) error {
	def := config.Default()
	fs := flag.NewFlagSet("animate", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	input := fs.String("input", "", "image or PDF to animate, - for stdin (default: newest file in "+defaultInputDir+")")
	output := fs.String("output", "", "output file (default: <output dir>/<name>_<timestamp><ext>)")
	override := animationFlags(fs, def)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, true)
	if err != nil {
		return err
	}
	override(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	path := *input
	if path == "" {
		if err := os.MkdirAll(defaultInputDir, 0o755); err != nil {
			return err
		}
		if path, err = system.FindLatestInput(defaultInputDir); err != nil {
			return fmt.Errorf("no input given and %w", err)
		}
	}

	anim, _, err := newAnimator(cfg)
	if err != nil {
		return err
	}
	clip, err := renderInput(ctx, anim, cfg, path, os.Stdin)
	if err != nil {
		return err
	}

	dest := *output
	if dest == "" {
		dest = timestamped(cfg.Output.Dir, clip)
	}
	if err := save(clip, dest); err != nil {
		return err
	}
	fmt.Println(dest)
	return nil
}

// renderInput animates the file at path, or the bytes read from stdin when
// path is "-". Either way the input is decoded before a recorder starts.
func renderInput(ctx context.Context, anim *animator.Animator, cfg config.Config, path string, stdin io.Reader) (*asset.Asset, error) {
	logger := xglog.WithComponent("animate")

	if path == stdinInput {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		opts, err := animator.OptionsFromConfig(cfg.Animation, cfg.Output.VideoName)
		if err != nil {
			return nil, err
		}
		logger.Info().
			Str("input", "stdin").
			Int("bytes", len(data)).
			Dur("duration", opts.Duration).
			Int(xglog.FieldSize, opts.Size).
			Msg("animating")
		return anim.AnimateBytes(ctx, data, opts)
	}

	src, err := source.Open(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	opts, err := animator.OptionsFromConfig(cfg.Animation, cleanName(name))
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("input", path).
		Str(xglog.FieldFormat, src.Format).
		Int("width", src.Width).
		Int("height", src.Height).
		Dur("duration", opts.Duration).
		Int(xglog.FieldSize, opts.Size).
		Msg("animating")
	return anim.Animate(ctx, src.Image, opts)
}

// cleanName makes a basename safe to embed in a file name.
func cleanName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	if name == "" {
		return "clip"
	}
	return name
}

func timestamped(dir string, a *asset.Asset) string {
	ext := filepath.Ext(a.Filename())
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", a.Name(), time.Now().Format("2006-01-02_15-04-05"), ext))
}

func save(a *asset.Asset, dest string) error {
	if err := a.WriteFile(dest); err != nil {
		return err
	}
	logger := xglog.WithComponent("output")
	logger.Info().
		Str("path", dest).
		Int("bytes", a.Size()).
		Str("content_type", a.ContentType()).
		Msg("saved")
	return nil
}
