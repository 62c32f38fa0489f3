// Package rectest provides an in-memory recorder backend for tests.
package rectest

import (
	"context"
	"encoding/binary"
	"errors"
	"image"
	"sync"

	"github.com/aggressionjsk/ai-saas-app/internal/recorder"
)

var (
	// ErrKilled is returned by Wait on a stream that was killed.
	ErrKilled = errors.New("rectest: stream killed")
	// ErrBrokenPipe is returned by a blocked write once its context is done.
	ErrBrokenPipe = errors.New("write |1: broken pipe")
)

// Backend records every stream it opens. Each written frame becomes one
// chunk holding the frame index followed by the first pixel.
type Backend struct {
	// OpenErr is returned from Open when set.
	OpenErr error
	// WaitErr is returned from Wait after a normal drain.
	WaitErr error
	// Hang keeps the stream open after CloseInput until Kill.
	Hang bool
	// Silent drops every frame so the stream emits nothing.
	Silent bool
	// MIME is reported by streams; "video/webm" when empty.
	MIME string
	// BlockAt, when positive, makes the BlockAt-th frame write wait for the
	// context passed to Open and then fail like a killed encoder's pipe.
	BlockAt int
	// OnBlock is called once the blocking write starts waiting.
	OnBlock func()

	mu      sync.Mutex
	streams []*Stream
}

func (b *Backend) Open(ctx context.Context, cfg recorder.StreamConfig) (recorder.Stream, error) {
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	mime := b.MIME
	if mime == "" {
		mime = "video/webm"
	}
	s := &Stream{
		Config:  cfg,
		hang:    b.Hang,
		silent:  b.Silent,
		waitFn:  b.WaitErr,
		mime:    mime,
		ctx:     ctx,
		blockAt: b.BlockAt,
		onBlock: b.OnBlock,
		out:     make(chan []byte, 64),
	}
	b.mu.Lock()
	b.streams = append(b.streams, s)
	b.mu.Unlock()
	return s, nil
}

// Streams returns the streams opened so far.
func (b *Backend) Streams() []*Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Stream(nil), b.streams...)
}

// Stream is a fake encoder.
type Stream struct {
	Config recorder.StreamConfig

	hang    bool
	silent  bool
	waitFn  error
	mime    string
	ctx     context.Context
	blockAt int
	onBlock func()

	mu     sync.Mutex
	out    chan []byte
	closed bool
	killed bool
	frames int
	sizes  []image.Point
}

func (s *Stream) WriteFrame(frame *image.RGBA) error {
	s.mu.Lock()
	blocked := s.blockAt > 0 && s.frames+1 == s.blockAt
	s.mu.Unlock()
	if blocked {
		if s.onBlock != nil {
			s.onBlock()
		}
		<-s.ctx.Done()
		return ErrBrokenPipe
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("rectest: write after close")
	}
	s.sizes = append(s.sizes, frame.Bounds().Size())
	idx := s.frames
	s.frames++
	if s.silent {
		return nil
	}
	chunk := make([]byte, 8)
	binary.BigEndian.PutUint32(chunk, uint32(idx))
	if len(frame.Pix) >= 4 {
		copy(chunk[4:], frame.Pix[:4])
	}
	s.out <- chunk
	return nil
}

func (s *Stream) Chunks() <-chan []byte { return s.out }

func (s *Stream) CloseInput() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hang {
		return nil
	}
	s.closeLocked()
	return nil
}

func (s *Stream) Wait() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.killed {
		return ErrKilled
	}
	return s.waitFn
}

func (s *Stream) Kill() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killed = true
	s.closeLocked()
	return nil
}

func (s *Stream) MIMEType() string { return s.mime }

// Frames reports how many frames were written.
func (s *Stream) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// FrameSizes reports the bounds size of every written frame.
func (s *Stream) FrameSizes() []image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]image.Point(nil), s.sizes...)
}

// Killed reports whether Kill was called.
func (s *Stream) Killed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.killed
}

func (s *Stream) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.out)
	}
}
