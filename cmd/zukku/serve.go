package main

import (
	"context"
	"flag"

	"github.com/aggressionjsk/ai-saas-app/internal/animator"
	"github.com/aggressionjsk/ai-saas-app/internal/api"
	"github.com/aggressionjsk/ai-saas-app/internal/asset"
	"github.com/aggressionjsk/ai-saas-app/internal/engine"
	xglog "github.com/aggressionjsk/ai-saas-app/internal/log"
	"github.com/aggressionjsk/ai-saas-app/internal/system"
)

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	listen := fs.String("listen", "", "listen address (overrides server.listen)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, false)
	if err != nil {
		return err
	}
	if visited(fs)["listen"] {
		cfg.Server.Listen = *listen
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := xglog.WithComponent("serve")
	system.RaiseOpenFileLimit(4096, logger)

	anim, backend, err := newAnimator(cfg)
	if err != nil {
		return err
	}
	if err := backend.Available(); err != nil {
		logger.Warn().Err(err).Msg("video generation disabled until ffmpeg is installed")
	}
	opts, err := animator.OptionsFromConfig(cfg.Animation, cfg.Output.VideoName)
	if err != nil {
		return err
	}
	if len(cfg.Auth.Tokens) == 0 {
		logger.Warn().Msg("no auth tokens configured; every protected route will answer 401")
	}

	studio := engine.NewStudio(engine.Deps{
		Generator: newProvider(cfg),
		Animator:  anim,
		Admission: system.NewAdmission(cfg.System.MinFreeMemoryMB),
		Store:     asset.NewStore(0),
		Options:   opts,
		ImageName: cfg.Output.ImageName,
		Logger:    xglog.WithComponent("studio"),
	})

	srv := api.New(api.Deps{
		Config:   cfg.Server,
		Studio:   studio,
		Verifier: api.NewTokenVerifier(cfg.Auth.Tokens),
		Recorder: backend,
		Version:  version,
	})
	return srv.ListenAndServe(ctx)
}
