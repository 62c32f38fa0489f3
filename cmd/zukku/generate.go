package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/aggressionjsk/ai-saas-app/internal/animator"
	"github.com/aggressionjsk/ai-saas-app/internal/asset"
	"github.com/aggressionjsk/ai-saas-app/internal/config"
	"github.com/aggressionjsk/ai-saas-app/internal/engine"
	xglog "github.com/aggressionjsk/ai-saas-app/internal/log"
	"github.com/aggressionjsk/ai-saas-app/internal/system"
)

func runGenerate(ctx context.Context, args []string) error {
	def := config.Default()
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	prompt := fs.String("prompt", "", "text prompt (required)")
	withVideo := fs.Bool("video", false, "also render a zoom clip of the image")
	outDir := fs.String("output-dir", "", "directory for the results (overrides output.dir)")
	override := animationFlags(fs, def)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*prompt) == "" {
		return errors.New("generate: -prompt is required")
	}

	cfg, err := loadConfig(*configPath, true)
	if err != nil {
		return err
	}
	override(&cfg)
	if visited(fs)["output-dir"] {
		cfg.Output.Dir = *outDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	anim, _, err := newAnimator(cfg)
	if err != nil {
		return err
	}
	opts, err := animator.OptionsFromConfig(cfg.Animation, cfg.Output.VideoName)
	if err != nil {
		return err
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
	studio.SetPrompt(*prompt)

	var st engine.State
	if *withVideo {
		st, err = studio.GenerateVideo(ctx)
	} else {
		st, err = studio.GenerateImage(ctx)
	}
	if err != nil {
		return err
	}

	for _, a := range []*asset.Asset{st.Image, st.Video} {
		if a == nil {
			continue
		}
		dest := timestamped(cfg.Output.Dir, a)
		if err := save(a, dest); err != nil {
			return err
		}
		fmt.Println(dest)
	}
	return nil
}
