// Package video turns captured RGBA frames into a compressed stream by
// piping them through an ffmpeg child process.
package video

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aggressionjsk/ai-saas-app/internal/failure"
	xglog "github.com/aggressionjsk/ai-saas-app/internal/log"
	"github.com/aggressionjsk/ai-saas-app/internal/recorder"
)

const (
	chunkSize    = 64 << 10
	stderrLines  = 64
	stderrInTail = 8
)

// FFmpegBackend is a recorder.Backend that encodes with ffmpeg. Each read
// from ffmpeg's stdout becomes one chunk.
type FFmpegBackend struct {
	Path    string // binary name or path, "ffmpeg" when empty
	Format  Format
	Encoder string // overrides probing when set
	Quality int    // encoder specific, 0 picks a default
	Logger  zerolog.Logger
}

var _ recorder.Backend = (*FFmpegBackend)(nil)

func (b *FFmpegBackend) path() string {
	if b.Path == "" {
		return "ffmpeg"
	}
	return b.Path
}

// Available reports whether the ffmpeg binary can be found.
func (b *FFmpegBackend) Available() error {
	if _, err := exec.LookPath(b.path()); err != nil {
		return failure.New(failure.KindRecorderUnavailable, "video.lookpath", err)
	}
	return nil
}

func (b *FFmpegBackend) Open(ctx context.Context, cfg recorder.StreamConfig) (recorder.Stream, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.FrameRate <= 0 {
		return nil, failure.Newf(failure.KindInvalid, "video.open", "invalid stream %dx%d@%d", cfg.Width, cfg.Height, cfg.FrameRate)
	}
	if cfg.Width%2 != 0 || cfg.Height%2 != 0 {
		return nil, failure.Newf(failure.KindInvalid, "video.open", "yuv420p needs even dimensions, got %dx%d", cfg.Width, cfg.Height)
	}
	bin, err := exec.LookPath(b.path())
	if err != nil {
		return nil, failure.New(failure.KindRecorderUnavailable, "video.open", err)
	}

	format := b.Format
	if format.Name == "" {
		format = WebM
	}
	encoder := b.Encoder
	if encoder == "" {
		if encoder, err = BestEncoder(ctx, bin, format); err != nil {
			return nil, err
		}
	}

	args := BuildArgs(cfg, format, encoder, b.Quality)
	cmd := exec.CommandContext(ctx, bin, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, failure.New(failure.KindRecorderUnavailable, "video.open", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, failure.New(failure.KindRecorderUnavailable, "video.open", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, failure.New(failure.KindRecorderUnavailable, "video.open", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, failure.New(failure.KindRecorderUnavailable, "video.open", err)
	}

	logger := b.Logger.With().
		Str(xglog.FieldEncoder, encoder).
		Str(xglog.FieldFormat, format.Name).
		Int("pid", cmd.Process.Pid).
		Logger()
	logger.Debug().Strs("args", args).Msg("ffmpeg started")

	s := &ffmpegStream{
		cmd:    cmd,
		stdin:  stdin,
		format: format,
		ring:   NewLineRing(stderrLines),
		out:    make(chan []byte, 16),
		logger: logger,
	}
	s.g.Go(func() error { return s.readStdout(stdout) })
	s.g.Go(func() error { return s.readStderr(stderr) })
	return s, nil
}

// BuildArgs assembles the ffmpeg command line for a raw RGBA input on stdin
// and a streamed container on stdout.
func BuildArgs(cfg recorder.StreamConfig, f Format, encoder string, quality int) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-framerate", strconv.Itoa(cfg.FrameRate),
		"-i", "-",
		"-an",
		"-pix_fmt", "yuv420p",
		"-c:v", encoder,
	}

	switch encoder {
	case "libvpx-vp9":
		if quality <= 0 {
			quality = 32
		}
		args = append(args, "-b:v", "0", "-crf", strconv.Itoa(quality),
			"-deadline", "realtime", "-cpu-used", "8", "-row-mt", "1")
	case "libvpx":
		if quality <= 0 {
			quality = 20
		}
		args = append(args, "-b:v", "2M", "-crf", strconv.Itoa(quality), "-deadline", "realtime")
	case "h264_videotoolbox":
		if quality <= 0 {
			quality = 75
		}
		args = append(args, "-b:v", fmt.Sprintf("%dk", quality*100))
	case "h264_nvenc":
		if quality <= 0 {
			quality = 23
		}
		args = append(args, "-cq", strconv.Itoa(quality))
	default: // libx264
		if quality <= 0 {
			quality = 23
		}
		args = append(args, "-crf", strconv.Itoa(quality), "-preset", "veryfast")
	}

	args = append(args, f.MuxArgs...)
	args = append(args, "-f", f.Container, "pipe:1")
	return args
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	format Format
	ring   *LineRing
	out    chan []byte
	logger zerolog.Logger

	g         errgroup.Group
	closeOnce sync.Once
	closeErr  error
	mu        sync.Mutex
	killed    bool
}

func (s *ffmpegStream) WriteFrame(frame *image.RGBA) error {
	if err := writeRawRGBA(s.stdin, frame); err != nil {
		return s.withTail(fmt.Errorf("write frame: %w", err))
	}
	return nil
}

func (s *ffmpegStream) Chunks() <-chan []byte { return s.out }

func (s *ffmpegStream) CloseInput() error {
	s.closeOnce.Do(func() { s.closeErr = s.stdin.Close() })
	return s.closeErr
}

func (s *ffmpegStream) Wait() error {
	readErr := s.g.Wait()
	waitErr := s.cmd.Wait()

	s.mu.Lock()
	killed := s.killed
	s.mu.Unlock()
	if killed {
		return nil
	}

	if err := errors.Join(readErr, waitErr); err != nil {
		return failure.New(failure.KindEncoding, "video.wait", s.withTail(err))
	}
	s.logger.Debug().Msg("ffmpeg exited")
	return nil
}

func (s *ffmpegStream) Kill() error {
	s.mu.Lock()
	s.killed = true
	s.mu.Unlock()

	_ = s.CloseInput()
	if s.cmd.Process == nil {
		return nil
	}
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (s *ffmpegStream) MIMEType() string { return s.format.MIMEType }

func (s *ffmpegStream) readStdout(r io.Reader) error {
	defer close(s.out)
	for {
		buf := make([]byte, chunkSize)
		n, err := r.Read(buf)
		if n > 0 {
			s.out <- buf[:n]
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read stdout: %w", err)
		}
	}
}

func (s *ffmpegStream) readStderr(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		s.ring.Add(line)
		s.logger.Debug().Str("stderr", line).Msg("ffmpeg")
	}
	return nil
}

func (s *ffmpegStream) withTail(err error) error {
	if tail := s.ring.Tail(stderrInTail); tail != "" {
		return fmt.Errorf("%w (stderr: %s)", err, tail)
	}
	return err
}

// writeRawRGBA writes tightly packed RGBA rows. Images with padding or a
// non-zero origin are repacked first.
func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Rect, img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}
