package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aggressionjsk/ai-saas-app/internal/animator"
	"github.com/aggressionjsk/ai-saas-app/internal/config"
	"github.com/aggressionjsk/ai-saas-app/internal/failure"
	"github.com/aggressionjsk/ai-saas-app/internal/recorder/rectest"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Animation.Duration = 100 * time.Millisecond
	cfg.Animation.Size = 16
	return cfg
}

func pngData(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 20, 10))))
	return buf.Bytes()
}

func TestRenderInputFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "my photo.png")
	require.NoError(t, os.WriteFile(path, pngData(t), 0o644))

	backend := &rectest.Backend{}
	anim := animator.New(backend, animator.WithLogger(zerolog.Nop()))
	clip, err := renderInput(context.Background(), anim, testConfig(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, "my_photo.webm", clip.Filename())
	require.Len(t, backend.Streams(), 1)
	assert.Equal(t, 16, backend.Streams()[0].Config.Width)
}

func TestRenderInputFromStdin(t *testing.T) {
	backend := &rectest.Backend{}
	anim := animator.New(backend, animator.WithLogger(zerolog.Nop()))
	cfg := testConfig()

	clip, err := renderInput(context.Background(), anim, cfg, stdinInput, bytes.NewReader(pngData(t)))
	require.NoError(t, err)
	assert.Equal(t, cfg.Output.VideoName+".webm", clip.Filename())

	_, err = renderInput(context.Background(), anim, cfg, stdinInput, strings.NewReader("not an image"))
	assert.ErrorIs(t, err, failure.ErrDecode)
	assert.Len(t, backend.Streams(), 1, "undecodable input starts no recorder")
}

func TestRenderInputMissingFile(t *testing.T) {
	anim := animator.New(&rectest.Backend{}, animator.WithLogger(zerolog.Nop()))
	_, err := renderInput(context.Background(), anim, testConfig(), filepath.Join(t.TempDir(), "none.png"), nil)
	assert.Error(t, err)
}

func TestSaveTimestamped(t *testing.T) {
	anim := animator.New(&rectest.Backend{}, animator.WithLogger(zerolog.Nop()))
	clip, err := renderInput(context.Background(), anim, testConfig(), stdinInput, bytes.NewReader(pngData(t)))
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "output")
	dest := timestamped(dir, clip)
	assert.Regexp(t, `zukku_generated_\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}\.webm$`, dest)

	require.NoError(t, save(clip, dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, clip.Bytes(), data)
}
