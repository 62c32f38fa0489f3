// Package config holds the zukku configuration and its loading rules:
// defaults, then the YAML file, then ZUKKU_* environment variables. Command
// line flags are applied by the caller on top of the result.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Provider  ProviderConfig  `yaml:"provider"`
	Animation AnimationConfig `yaml:"animation"`
	Video     VideoConfig     `yaml:"video"`
	Output    OutputConfig    `yaml:"output"`
	Auth      AuthConfig      `yaml:"auth"`
	System    SystemConfig    `yaml:"system"`

	BuildVersion string `yaml:"-"`
}

type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	PublicURL       string        `yaml:"public_url"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimit       int           `yaml:"rate_limit"`   // action requests per minute per IP, 0 disables
	ShareSecret     string        `yaml:"share_secret"` // signs public share links; random per process when empty
	ShareTTL        time.Duration `yaml:"share_ttl"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

type ProviderConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Width    int           `yaml:"width"`
	Height   int           `yaml:"height"`
	Timeout  time.Duration `yaml:"timeout"`
	Retries  int           `yaml:"retries"`
	Backoff  time.Duration `yaml:"backoff"`
	RPS      float64       `yaml:"rps"`
	MaxBytes int64         `yaml:"max_bytes"`
}

type AnimationConfig struct {
	Duration    time.Duration `yaml:"duration"`
	Size        int           `yaml:"size"`
	FPS         int           `yaml:"fps"`
	Zoom        float64       `yaml:"zoom"`
	StopTimeout time.Duration `yaml:"stop_timeout"`
	Quality     string        `yaml:"quality"`
}

type VideoConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path"`
	Format     string `yaml:"format"`  // webm | mp4
	Encoder    string `yaml:"encoder"` // empty: pick the best one for the format
	Quality    int    `yaml:"quality"` // 0: encoder default
}

type OutputConfig struct {
	Dir       string `yaml:"dir"`
	ImageName string `yaml:"image_name"`
	VideoName string `yaml:"video_name"`
}

type AuthConfig struct {
	Tokens []string `yaml:"tokens"`
}

type SystemConfig struct {
	MinFreeMemoryMB uint64 `yaml:"min_free_memory_mb"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Listen:          ":8080",
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       30,
			ShareTTL:        15 * time.Minute,
		},
		Log: LogConfig{Level: "info", Service: "zukku"},
		Provider: ProviderConfig{
			BaseURL:  "https://image.pollinations.ai/prompt/",
			Width:    1024,
			Height:   1024,
			Timeout:  60 * time.Second,
			Retries:  2,
			Backoff:  500 * time.Millisecond,
			RPS:      1,
			MaxBytes: 32 << 20,
		},
		Animation: AnimationConfig{
			Duration:    4 * time.Second,
			Size:        768,
			FPS:         30,
			Zoom:        0.15,
			StopTimeout: 10 * time.Second,
			Quality:     "bilinear",
		},
		Video: VideoConfig{
			FFmpegPath: "ffmpeg",
			Format:     "webm",
		},
		Output: OutputConfig{
			Dir:       "output",
			ImageName: "zukku_generated",
			VideoName: "zukku_generated",
		},
	}
}

// Validate reports every problem found, joined into one error.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Listen != "", "server.listen must not be empty")
	check(c.Server.RateLimit >= 0, "server.rate_limit must be >= 0, got %d", c.Server.RateLimit)
	check(c.Server.ShareTTL > 0, "server.share_ttl must be positive, got %s", c.Server.ShareTTL)
	check(strings.HasPrefix(c.Provider.BaseURL, "http://") || strings.HasPrefix(c.Provider.BaseURL, "https://"),
		"provider.base_url must be an http(s) URL, got %q", c.Provider.BaseURL)
	check(c.Provider.Width > 0 && c.Provider.Height > 0, "provider width/height must be positive")
	check(c.Provider.Retries >= 0, "provider.retries must be >= 0")
	check(c.Provider.Timeout > 0, "provider.timeout must be positive")
	check(c.Animation.Duration > 0, "animation.duration must be positive, got %s", c.Animation.Duration)
	check(c.Animation.Size > 0 && c.Animation.Size%2 == 0, "animation.size must be a positive even number, got %d", c.Animation.Size)
	check(c.Animation.FPS > 0, "animation.fps must be positive, got %d", c.Animation.FPS)
	check(c.Animation.Zoom >= 0 && c.Animation.Zoom < 1, "animation.zoom must be in [0,1), got %g", c.Animation.Zoom)
	check(c.Animation.StopTimeout > 0, "animation.stop_timeout must be positive")
	switch c.Animation.Quality {
	case "nearest", "bilinear", "catmullrom":
	default:
		errs = append(errs, fmt.Errorf("animation.quality must be nearest, bilinear or catmullrom, got %q", c.Animation.Quality))
	}
	switch c.Video.Format {
	case "webm", "mp4":
	default:
		errs = append(errs, fmt.Errorf("video.format must be webm or mp4, got %q", c.Video.Format))
	}
	check(c.Output.ImageName != "" && c.Output.VideoName != "", "output names must not be empty")

	return errors.Join(errs...)
}
