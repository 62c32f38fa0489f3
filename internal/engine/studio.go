// Package engine holds the studio: the per-process state a signed-in user
// works with and the actions that change it.
package engine

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aggressionjsk/ai-saas-app/internal/animator"
	"github.com/aggressionjsk/ai-saas-app/internal/asset"
	"github.com/aggressionjsk/ai-saas-app/internal/failure"
	xglog "github.com/aggressionjsk/ai-saas-app/internal/log"
	"github.com/aggressionjsk/ai-saas-app/internal/provider"
	"github.com/aggressionjsk/ai-saas-app/internal/source"
)

// ImageGenerator produces image bytes for a prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (*provider.Result, error)
}

// Animator records a zoom clip of an image.
type Animator interface {
	Animate(ctx context.Context, img image.Image, opts animator.Options) (*asset.Asset, error)
}

// Admission gates resource-heavy actions.
type Admission interface {
	Check(ctx context.Context) error
}

// Deps are the studio's collaborators. Admission may be nil.
type Deps struct {
	Generator ImageGenerator
	Animator  Animator
	Admission Admission
	Store     *asset.Store
	Options   animator.Options
	ImageName string
	Logger    zerolog.Logger
}

type Studio struct {
	deps   Deps
	logger zerolog.Logger

	mu    sync.Mutex
	state State
	src   image.Image
	srcID string // asset id of src; a clip of any other source is stale
}

func NewStudio(deps Deps) *Studio {
	if deps.Store == nil {
		deps.Store = asset.NewStore(0)
	}
	if deps.ImageName == "" {
		deps.ImageName = "zukku_generated"
	}
	return &Studio{deps: deps, logger: deps.Logger}
}

// State returns the current state.
func (s *Studio) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Store exposes the asset store backing downloads.
func (s *Studio) Store() *asset.Store { return s.deps.Store }

// SetPrompt replaces the prompt.
func (s *Studio) SetPrompt(prompt string) State {
	return s.dispatch(PromptChanged{Prompt: prompt})
}

// GenerateImage fetches a new image for the current prompt.
func (s *Studio) GenerateImage(ctx context.Context) (State, error) {
	s.mu.Lock()
	prompt := s.state.Prompt
	switch {
	case s.state.ImageBusy:
		st := s.state
		s.mu.Unlock()
		return st, failure.New(failure.KindBusy, "engine.image", nil)
	case strings.TrimSpace(prompt) == "":
		err := failure.Newf(failure.KindInvalid, "engine.image", "prompt is empty")
		st := s.apply(ImageFailed{Failure: NewFailure(ActionImage, err)})
		s.mu.Unlock()
		return st, err
	}
	s.apply(ImageStarted{})
	s.mu.Unlock()

	if err := s.generateImage(ctx, prompt); err != nil {
		return s.dispatch(ImageFailed{Failure: NewFailure(ActionImage, err)}), err
	}
	return s.State(), nil
}

// generateImage runs the fetch and decode. It dispatches ImageReady itself
// so that the decoded source and the state change together.
func (s *Studio) generateImage(ctx context.Context, prompt string) error {
	res, err := s.deps.Generator.Generate(ctx, prompt)
	if err != nil {
		return err
	}
	img, err := source.Decode(res.Data)
	if err != nil {
		return err
	}

	data := res.Data
	if img.Format != "png" {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img.Image); err != nil {
			return failure.New(failure.KindDecode, "engine.image", err)
		}
		data = buf.Bytes()
	}
	a, err := asset.NewImage(asset.Meta{
		Name:        s.deps.ImageName,
		Ext:         ".png",
		ContentType: "image/png",
		Width:       img.Width,
		Height:      img.Height,
	}, data)
	if err != nil {
		return err
	}
	s.deps.Store.Put(a)

	s.mu.Lock()
	s.src = img.Image
	s.srcID = a.ID()
	s.apply(ImageReady{Asset: a})
	s.mu.Unlock()

	s.logger.Info().
		Str(xglog.FieldAssetID, a.ID()).
		Str(xglog.FieldFormat, img.Format).
		Int("width", img.Width).
		Int("height", img.Height).
		Msg("image ready")
	return nil
}

// GenerateVideo animates the current image, generating one first when
// there is none yet.
func (s *Studio) GenerateVideo(ctx context.Context) (State, error) {
	s.mu.Lock()
	if s.state.VideoBusy {
		st := s.state
		s.mu.Unlock()
		return st, failure.New(failure.KindBusy, "engine.video", nil)
	}
	s.apply(VideoStarted{})
	src, srcID := s.src, s.srcID
	s.mu.Unlock()

	if src == nil {
		if _, err := s.GenerateImage(ctx); err != nil {
			return s.dispatch(VideoFailed{Failure: NewFailure(ActionVideo, err)}), err
		}
		s.mu.Lock()
		src, srcID = s.src, s.srcID
		s.mu.Unlock()
	}

	if s.deps.Admission != nil {
		if err := s.deps.Admission.Check(ctx); err != nil {
			return s.dispatch(VideoFailed{Failure: NewFailure(ActionVideo, err)}), err
		}
	}

	clip, err := s.deps.Animator.Animate(ctx, src, s.deps.Options)
	if err != nil {
		return s.dispatch(VideoFailed{Failure: NewFailure(ActionVideo, err)}), err
	}

	s.mu.Lock()
	if s.srcID != srcID {
		err := failure.Newf(failure.KindCanceled, "engine.video", "image changed while the video was rendering")
		st := s.apply(VideoFailed{Failure: NewFailure(ActionVideo, err)})
		s.mu.Unlock()
		return st, err
	}
	s.deps.Store.Put(clip)
	st := s.apply(VideoReady{Asset: clip})
	s.mu.Unlock()

	s.logger.Info().Str(xglog.FieldAssetID, clip.ID()).Str("filename", clip.Filename()).Msg("video ready")
	return st, nil
}

func (s *Studio) dispatch(e Event) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(e)
}

// apply must be called with mu held.
func (s *Studio) apply(e Event) State {
	next := Reduce(s.state, e)
	if next.Failure != nil && next.Failure != s.state.Failure {
		s.logger.Warn().
			Uint64("revision", next.Revision).
			Str(xglog.FieldAction, next.Failure.Action).
			Str(xglog.FieldKind, string(next.Failure.Kind)).
			Str("detail", next.Failure.Detail).
			Msg("action failed")
	} else {
		s.logger.Debug().Uint64("revision", next.Revision).Type("event", e).Msg("studio state change")
	}
	s.state = next
	return next
}
