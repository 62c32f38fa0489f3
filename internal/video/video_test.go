package video

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os/exec"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aggressionjsk/ai-saas-app/internal/failure"
	"github.com/aggressionjsk/ai-saas-app/internal/recorder"
)

const sampleEncoders = `Encoders:
 V..... = Video
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 V....D libx264rgb           libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 RGB (codec h264)
 V....D libvpx-vp9           libvpx VP9 (codec vp9)
`

func TestPickEncoder(t *testing.T) {
	enc, err := PickEncoder(sampleEncoders, WebM)
	require.NoError(t, err)
	assert.Equal(t, "libvpx-vp9", enc)

	enc, err = PickEncoder(sampleEncoders, MP4)
	require.NoError(t, err)
	assert.Equal(t, "libx264", enc)

	_, err = PickEncoder(" V....D libx264rgb  x\n", MP4)
	assert.ErrorIs(t, err, failure.ErrRecorderUnavailable)
}

func TestFormatByName(t *testing.T) {
	f, err := FormatByName("")
	require.NoError(t, err)
	assert.Equal(t, WebM, f)

	f, err = FormatByName(" MP4 ")
	require.NoError(t, err)
	assert.Equal(t, ".mp4", f.Ext)

	_, err = FormatByName("gif")
	assert.ErrorIs(t, err, failure.ErrInvalid)
}

func TestBuildArgs(t *testing.T) {
	cfg := recorder.StreamConfig{Width: 768, Height: 768, FrameRate: 30}

	tests := []struct {
		name    string
		format  Format
		encoder string
		quality int
		want    []string
	}{
		{"vp9 default crf", WebM, "libvpx-vp9", 0, []string{"-b:v", "0", "-crf", "32", "-deadline", "realtime"}},
		{"videotoolbox bitrate", MP4, "h264_videotoolbox", 50, []string{"-b:v", "5000k"}},
		{"nvenc cq", MP4, "h264_nvenc", 0, []string{"-cq", "23"}},
		{"x264 fragmented", MP4, "libx264", 18, []string{"-crf", "18", "-preset", "veryfast", "-movflags", "frag_keyframe+empty_moov+default_base_moof", "-f", "mp4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := BuildArgs(cfg, tt.format, tt.encoder, tt.quality)
			assert.Subset(t, args, []string{"-video_size", "768x768", "-framerate", "30", "-i", "-"})
			assertSequence(t, args, tt.want)
			assert.Equal(t, "pipe:1", args[len(args)-1])
		})
	}
}

func assertSequence(t *testing.T, args, seq []string) {
	t.Helper()
	for i := 0; i+len(seq) <= len(args); i++ {
		match := true
		for j := range seq {
			if args[i+j] != seq[j] {
				match = false
				break
			}
		}
		if match {
			return
		}
	}
	t.Fatalf("%v does not contain %v", args, seq)
}

func TestWriteRawRGBARepacksSubImage(t *testing.T) {
	full := image.NewRGBA(image.Rect(0, 0, 4, 4))
	full.Set(1, 1, color.RGBA{R: 9, A: 255})
	sub := full.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)

	var buf bytes.Buffer
	require.NoError(t, writeRawRGBA(&buf, sub))
	require.Equal(t, 2*2*4, buf.Len())
	assert.Equal(t, []byte{9, 0, 0, 255}, buf.Bytes()[:4])
}

func TestLineRing(t *testing.T) {
	r := NewLineRing(3)
	_, _ = r.Write([]byte("a\nb\r\n\nc\n"))
	r.Add("d")
	assert.Equal(t, []string{"b", "c", "d"}, r.LastN(10))
	assert.Equal(t, []string{"c", "d"}, r.LastN(2))
	assert.Equal(t, "c | d", r.Tail(2))
	assert.Empty(t, NewLineRing(0).LastN(5))
}

func TestOpenMissingBinary(t *testing.T) {
	b := &FFmpegBackend{Path: "zukku-no-such-ffmpeg", Logger: zerolog.Nop()}
	_, err := b.Open(context.Background(), recorder.StreamConfig{Width: 2, Height: 2, FrameRate: 1})
	assert.ErrorIs(t, err, failure.ErrRecorderUnavailable)
	assert.ErrorIs(t, b.Available(), failure.ErrRecorderUnavailable)
}

func TestOpenRejectsEmptyStream(t *testing.T) {
	b := &FFmpegBackend{Logger: zerolog.Nop()}
	_, err := b.Open(context.Background(), recorder.StreamConfig{})
	assert.ErrorIs(t, err, failure.ErrInvalid)
}

func TestFFmpegRecordsWebM(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	b := &FFmpegBackend{Format: WebM, Logger: zerolog.Nop()}
	if _, err := BestEncoder(ctx, "ffmpeg", WebM); err != nil {
		t.Skipf("ffmpeg cannot encode webm: %v", err)
	}

	rec := recorder.New(b, zerolog.Nop())
	require.NoError(t, rec.Start(ctx, recorder.StreamConfig{Width: 64, Height: 64, FrameRate: 10}))
	frame := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for i := 0; i < 10; i++ {
		frame.Pix[0] = byte(i * 20)
		require.NoError(t, rec.Capture(frame))
	}
	require.NoError(t, rec.Stop())
	<-rec.Stopped()

	chunks, mime, err := rec.Result()
	require.NoError(t, err)
	assert.Equal(t, "video/webm", mime)
	require.NotEmpty(t, chunks)
	// EBML magic.
	assert.Equal(t, []byte{0x1a, 0x45, 0xdf, 0xa3}, chunks[0].Data[:4])
}
