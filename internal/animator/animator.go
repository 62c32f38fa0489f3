// Package animator renders a still image as a slow centred zoom-in and
// records the frames into a video asset.
package animator

import (
	"context"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aggressionjsk/ai-saas-app/internal/asset"
	"github.com/aggressionjsk/ai-saas-app/internal/config"
	"github.com/aggressionjsk/ai-saas-app/internal/failure"
	xglog "github.com/aggressionjsk/ai-saas-app/internal/log"
	"github.com/aggressionjsk/ai-saas-app/internal/metrics"
	"github.com/aggressionjsk/ai-saas-app/internal/recorder"
	"github.com/aggressionjsk/ai-saas-app/internal/source"
)

const (
	op = "animator.animate"

	// abortGrace bounds the wait for a killed backend to drain.
	abortGrace = 2 * time.Second
)

// Options control one animation session.
type Options struct {
	Duration    time.Duration
	Size        int // surface edge in pixels
	FrameRate   int
	Zoom        float64 // k in zoom = 1 + k·t
	StopTimeout time.Duration
	Quality     Quality
	Name        string // download basename without extension
}

// DefaultOptions is a 4 s, 768×768, 30 fps, 15 % zoom.
func DefaultOptions() Options {
	return Options{
		Duration:    4 * time.Second,
		Size:        768,
		FrameRate:   30,
		Zoom:        0.15,
		StopTimeout: 10 * time.Second,
		Quality:     QualityBilinear,
		Name:        "zukku_generated",
	}
}

// OptionsFromConfig maps the animation section of the configuration.
func OptionsFromConfig(a config.AnimationConfig, name string) (Options, error) {
	q, err := ParseQuality(a.Quality)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Duration:    a.Duration,
		Size:        a.Size,
		FrameRate:   a.FPS,
		Zoom:        a.Zoom,
		StopTimeout: a.StopTimeout,
		Quality:     q,
		Name:        name,
	}, nil
}

func (o Options) Validate() error {
	switch {
	case o.Duration <= 0:
		return failure.Newf(failure.KindInvalid, op, "duration must be positive, got %s", o.Duration)
	case o.Size <= 0:
		return failure.Newf(failure.KindInvalid, op, "size must be positive, got %d", o.Size)
	case o.FrameRate <= 0:
		return failure.Newf(failure.KindInvalid, op, "frame rate must be positive, got %d", o.FrameRate)
	case o.Zoom < 0 || o.Zoom >= 1:
		return failure.Newf(failure.KindInvalid, op, "zoom must be in [0,1), got %g", o.Zoom)
	case o.StopTimeout <= 0:
		return failure.Newf(failure.KindInvalid, op, "stop timeout must be positive, got %s", o.StopTimeout)
	}
	if _, err := ParseQuality(string(o.Quality)); err != nil {
		return err
	}
	return nil
}

// Animator runs one session at a time against a recorder backend.
type Animator struct {
	backend recorder.Backend
	clock   Clock
	logger  zerolog.Logger
	busy    atomic.Bool
}

type Option func(*Animator)

func WithClock(c Clock) Option {
	return func(a *Animator) { a.clock = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(a *Animator) { a.logger = l }
}

func New(backend recorder.Backend, opts ...Option) *Animator {
	a := &Animator{
		backend: backend,
		clock:   realClock{},
		logger:  xglog.WithComponent("animator"),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Busy reports whether a session is running.
func (a *Animator) Busy() bool { return a.busy.Load() }

// AnimateBytes decodes data and animates it. A decode failure returns before
// any recording session is started.
func (a *Animator) AnimateBytes(ctx context.Context, data []byte, opts Options) (*asset.Asset, error) {
	img, err := source.Decode(data)
	if err != nil {
		return nil, err
	}
	return a.Animate(ctx, img.Image, opts)
}

// Animate records src zooming in over opts.Duration and returns the
// concatenated clip.
func (a *Animator) Animate(ctx context.Context, src image.Image, opts Options) (*asset.Asset, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if src == nil || src.Bounds().Empty() {
		return nil, failure.Newf(failure.KindDecode, op, "image has no pixels")
	}
	if !a.busy.CompareAndSwap(false, true) {
		return nil, failure.New(failure.KindBusy, op, nil)
	}
	defer a.busy.Store(false)

	started := time.Now()
	out, err := a.run(ctx, src, opts)
	result := "ok"
	if err != nil {
		result = string(failure.KindOf(err))
	}
	metrics.RecordAnimation(result, time.Since(started).Seconds())
	return out, err
}

func (a *Animator) run(ctx context.Context, src image.Image, opts Options) (*asset.Asset, error) {
	logger := a.logger.With().
		Int(xglog.FieldSize, opts.Size).
		Int(xglog.FieldFPS, opts.FrameRate).
		Logger()

	surface := NewSurface(opts.Size, opts.Quality)
	defer surface.Release()

	rec := recorder.New(a.backend, logger)
	err := rec.Start(ctx, recorder.StreamConfig{Width: opts.Size, Height: opts.Size, FrameRate: opts.FrameRate})
	if err != nil {
		return nil, canceled(ctx, err)
	}

	tl := NewTimeline(a.clock.Now(), opts.Duration, opts.Zoom)
	frame := tl.First()
	if err := a.draw(rec, surface, src, frame); err != nil {
		return nil, a.abort(ctx, rec, err)
	}

	ticker := a.clock.NewTicker(time.Second / time.Duration(opts.FrameRate))
	defer ticker.Stop()

	for !frame.Final {
		select {
		case <-ctx.Done():
			return nil, a.abort(ctx, rec, failure.New(failure.KindCanceled, op, ctx.Err()))
		case now := <-ticker.C():
			frame, _ = tl.Next(frame, now)
			if err := a.draw(rec, surface, src, frame); err != nil {
				return nil, a.abort(ctx, rec, err)
			}
		}
	}
	ticker.Stop()

	if err := rec.Stop(); err != nil {
		return nil, a.abort(ctx, rec, err)
	}
	select {
	case <-rec.Stopped():
	case <-ctx.Done():
		return nil, a.abort(ctx, rec, failure.New(failure.KindCanceled, op, ctx.Err()))
	case <-a.clock.After(opts.StopTimeout):
		return nil, a.abort(ctx, rec, failure.New(failure.KindTimeout, op,
			fmt.Errorf("recorder did not stop within %s", opts.StopTimeout)))
	}

	chunks, mime, err := rec.Result()
	if err != nil {
		return nil, canceled(ctx, err)
	}
	clip, err := asset.NewVideo(asset.Meta{
		Name:        opts.Name,
		Ext:         extension(mime),
		ContentType: mime,
		Width:       opts.Size,
		Height:      opts.Size,
		Duration:    opts.Duration,
		Frames:      frame.Index + 1,
	}, chunks)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str(xglog.FieldAssetID, clip.ID()).
		Int("frames", clip.Frames()).
		Int("chunks", len(chunks)).
		Int("bytes", clip.Size()).
		Dur("elapsed", tl.Elapsed(frame)).
		Msg("animation recorded")
	return clip, nil
}

func (a *Animator) draw(rec *recorder.Recorder, s *Surface, src image.Image, f Frame) error {
	b := src.Bounds()
	s.Render(src, SourceRect(b.Dx(), b.Dy(), f.Zoom))
	metrics.FramesRendered.Inc()
	return rec.Capture(s.Image())
}

// abort kills the recorder and waits briefly for it to reach Stopped so the
// surface is not returned to the pool while a backend still reads it.
func (a *Animator) abort(ctx context.Context, rec *recorder.Recorder, cause error) error {
	cause = canceled(ctx, cause)
	rec.Abort(cause)
	select {
	case <-rec.Stopped():
	case <-time.After(abortGrace):
		a.logger.Warn().Err(cause).Msg("recorder did not stop after abort")
	}
	return cause
}

// canceled reports err as KindCanceled once ctx is done. A backend bound to
// ctx fails its pipes when killed; those failures are cancellations.
func canceled(ctx context.Context, err error) error {
	if ctx.Err() == nil || failure.KindOf(err) == failure.KindCanceled {
		return err
	}
	return failure.New(failure.KindCanceled, op, ctx.Err())
}

func extension(mime string) string {
	switch mime {
	case "video/mp4":
		return ".mp4"
	case "video/webm", "":
		return ".webm"
	}
	return ".bin"
}
