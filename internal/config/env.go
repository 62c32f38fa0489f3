package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aggressionjsk/ai-saas-app/internal/log"
)

const envPrefix = "ZUKKU_"

type envReader struct {
	logger zerolog.Logger
	lookup func(string) (string, bool)
}

func newEnvReader() envReader {
	return envReader{logger: log.WithComponent("config"), lookup: os.LookupEnv}
}

func (e envReader) get(key string) (string, bool) {
	v, ok := e.lookup(envPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	lower := strings.ToLower(key)
	if strings.Contains(lower, "token") || strings.Contains(lower, "secret") {
		e.logger.Debug().Str("key", envPrefix+key).Bool("sensitive", true).Msg("using environment variable")
	} else {
		e.logger.Debug().Str("key", envPrefix+key).Str("value", v).Msg("using environment variable")
	}
	return v, true
}

func (e envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e envReader) int(key string, dst *int) {
	if v, ok := e.get(key); ok {
		i, err := strconv.Atoi(v)
		if err != nil {
			e.logger.Warn().Str("key", envPrefix+key).Str("value", v).Msg("invalid integer, keeping previous value")
			return
		}
		*dst = i
	}
}

func (e envReader) uint64(key string, dst *uint64) {
	if v, ok := e.get(key); ok {
		i, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			e.logger.Warn().Str("key", envPrefix+key).Str("value", v).Msg("invalid unsigned integer, keeping previous value")
			return
		}
		*dst = i
	}
}

func (e envReader) float(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.logger.Warn().Str("key", envPrefix+key).Str("value", v).Msg("invalid float, keeping previous value")
			return
		}
		*dst = f
	}
}

func (e envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.logger.Warn().Str("key", envPrefix+key).Str("value", v).Msg("invalid duration, keeping previous value")
			return
		}
		*dst = d
	}
}

func (e envReader) list(key string, dst *[]string) {
	if v, ok := e.get(key); ok {
		var out []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}

func (e envReader) apply(c *Config) {
	e.str("LISTEN", &c.Server.Listen)
	e.str("PUBLIC_URL", &c.Server.PublicURL)
	e.int("RATE_LIMIT", &c.Server.RateLimit)
	e.str("SHARE_SECRET", &c.Server.ShareSecret)
	e.duration("SHARE_TTL", &c.Server.ShareTTL)
	e.str("LOG_LEVEL", &c.Log.Level)
	e.str("PROVIDER_URL", &c.Provider.BaseURL)
	e.duration("PROVIDER_TIMEOUT", &c.Provider.Timeout)
	e.int("PROVIDER_RETRIES", &c.Provider.Retries)
	e.float("PROVIDER_RPS", &c.Provider.RPS)
	e.duration("DURATION", &c.Animation.Duration)
	e.int("SIZE", &c.Animation.Size)
	e.int("FPS", &c.Animation.FPS)
	e.float("ZOOM", &c.Animation.Zoom)
	e.str("QUALITY", &c.Animation.Quality)
	e.str("FFMPEG", &c.Video.FFmpegPath)
	e.str("FORMAT", &c.Video.Format)
	e.str("ENCODER", &c.Video.Encoder)
	e.str("OUTPUT_DIR", &c.Output.Dir)
	e.list("AUTH_TOKENS", &c.Auth.Tokens)
	e.uint64("MIN_FREE_MEMORY_MB", &c.System.MinFreeMemoryMB)
}
