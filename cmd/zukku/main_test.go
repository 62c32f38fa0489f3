package main

import (
	"flag"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aggressionjsk/ai-saas-app/internal/config"
)

func TestCleanName(t *testing.T) {
	assert.Equal(t, "my_photo", cleanName(" my photo "))
	assert.Equal(t, "clip", cleanName("  "))
}

func TestAnimationFlagsOverrideOnlyWhenSet(t *testing.T) {
	def := config.Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	override := animationFlags(fs, def)
	require.NoError(t, fs.Parse([]string{"-zoom", "0.3", "-format", "mp4"}))

	cfg := def
	cfg.Animation.Duration = 7 * time.Second // from the config file
	override(&cfg)

	assert.Equal(t, 0.3, cfg.Animation.Zoom)
	assert.Equal(t, "mp4", cfg.Video.Format)
	assert.Equal(t, 7*time.Second, cfg.Animation.Duration)
	assert.Equal(t, def.Animation.Size, cfg.Animation.Size)
	require.NoError(t, cfg.Validate())
}

func TestAnimationFlagsRejectedByValidate(t *testing.T) {
	def := config.Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	override := animationFlags(fs, def)
	require.NoError(t, fs.Parse([]string{"-zoom", "1"}))

	cfg := def
	override(&cfg)
	assert.Error(t, cfg.Validate())
}
