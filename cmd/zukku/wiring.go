package main

import (
	"github.com/aggressionjsk/ai-saas-app/internal/animator"
	"github.com/aggressionjsk/ai-saas-app/internal/config"
	xglog "github.com/aggressionjsk/ai-saas-app/internal/log"
	"github.com/aggressionjsk/ai-saas-app/internal/provider"
	"github.com/aggressionjsk/ai-saas-app/internal/video"
)

func newBackend(cfg config.Config) (*video.FFmpegBackend, error) {
	format, err := video.FormatByName(cfg.Video.Format)
	if err != nil {
		return nil, err
	}
	return &video.FFmpegBackend{
		Path:    cfg.Video.FFmpegPath,
		Format:  format,
		Encoder: cfg.Video.Encoder,
		Quality: cfg.Video.Quality,
		Logger:  xglog.WithComponent("ffmpeg"),
	}, nil
}

func newAnimator(cfg config.Config) (*animator.Animator, *video.FFmpegBackend, error) {
	backend, err := newBackend(cfg)
	if err != nil {
		return nil, nil, err
	}
	return animator.New(backend), backend, nil
}

func newProvider(cfg config.Config) *provider.Client {
	return provider.New(cfg.Provider)
}
