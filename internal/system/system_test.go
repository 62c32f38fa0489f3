package system

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aggressionjsk/ai-saas-app/internal/failure"
)

func TestImagePool(t *testing.T) {
	p := NewImagePool()
	rect := image.Rect(0, 0, 8, 8)
	img := p.Get(rect)
	require.Equal(t, rect, img.Rect)
	p.Put(img)
	p.Put(image.NewRGBA(image.Rect(0, 0, 3, 3))) // unknown size, dropped
	p.Put(nil)
	assert.Equal(t, rect, p.Get(rect).Rect)
}

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestFindLatestInput(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touch(t, filepath.Join(dir, "old.png"), now.Add(-time.Hour))
	touch(t, filepath.Join(dir, "new.PDF"), now)
	touch(t, filepath.Join(dir, "newest.txt"), now.Add(time.Hour))

	got, err := FindLatestInput(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "new.PDF"), got)

	got, err = FindLatest(filepath.Join(dir, "old.png"), ".png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "old.png"), got)

	_, err = FindLatest(dir, ".mp3")
	assert.Error(t, err)
}

func TestAdmission(t *testing.T) {
	a := &Admission{MinFreeMB: 512, memory: func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Available: 256 << 20}, nil
	}}
	assert.ErrorIs(t, a.Check(context.Background()), failure.ErrOverloaded)

	a.MinFreeMB = 128
	assert.NoError(t, a.Check(context.Background()))

	a.memory = func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, errors.New("no /proc") }
	a.MinFreeMB = 1 << 30
	assert.NoError(t, a.Check(context.Background()))

	var nilAdmission *Admission
	assert.NoError(t, nilAdmission.Check(context.Background()))
}
