// Package recorder implements the capture session that sits between the
// frame loop and an encoder backend. A Recorder moves through
// Idle -> Recording -> Stopped exactly once; Stopped is terminal.
package recorder

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aggressionjsk/ai-saas-app/internal/failure"
	xglog "github.com/aggressionjsk/ai-saas-app/internal/log"
	"github.com/aggressionjsk/ai-saas-app/internal/metrics"
)

type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// ErrNotRecording is returned by Capture outside the Recording state or after
// Stop was requested.
var ErrNotRecording = errors.New("recorder is not accepting frames")

// Chunk is one encoded fragment. Seq is its position in emission order.
type Chunk struct {
	Seq  int
	Data []byte
}

// StreamConfig describes the captured surface.
type StreamConfig struct {
	Width     int
	Height    int
	FrameRate int
}

// Backend opens encoder streams. Implementations report missing encoder
// primitives as failure.KindRecorderUnavailable.
type Backend interface {
	Open(ctx context.Context, cfg StreamConfig) (Stream, error)
}

// Stream is one running encoder.
type Stream interface {
	// WriteFrame submits one captured frame.
	WriteFrame(frame *image.RGBA) error
	// Chunks yields encoded output in emission order and is closed once
	// the encoder has no more output.
	Chunks() <-chan []byte
	// CloseInput signals that no more frames follow.
	CloseInput() error
	// Wait returns the encoder's exit status. It is called after Chunks
	// has been closed.
	Wait() error
	// Kill terminates the encoder immediately.
	Kill() error
	// MIMEType is the content type of the concatenated output.
	MIMEType() string
}

// Recorder collects the chunks of one capture session.
type Recorder struct {
	backend Backend
	logger  zerolog.Logger

	mu       sync.Mutex
	state    State
	stopping bool
	stream   Stream
	chunks   []Chunk
	bytes    int
	err      error

	stopped  chan struct{}
	stopOnce sync.Once
}

// New returns an idle recorder for backend.
func New(backend Backend, logger zerolog.Logger) *Recorder {
	return &Recorder{
		backend: backend,
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start opens the backend stream and begins accepting chunks. On error the
// recorder stays Idle.
func (r *Recorder) Start(ctx context.Context, cfg StreamConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return failure.Newf(failure.KindInvalid, "recorder.start", "recorder is %s", r.state)
	}
	stream, err := r.backend.Open(ctx, cfg)
	if err != nil {
		if failure.KindOf(err) == failure.KindUnknown {
			err = failure.New(failure.KindEncoding, "recorder.start", err)
		}
		return err
	}

	r.stream = stream
	r.transition(StateRecording)
	go r.collect(stream)
	return nil
}

// Capture sends one frame to the encoder.
func (r *Recorder) Capture(frame *image.RGBA) error {
	r.mu.Lock()
	if r.state != StateRecording || r.stopping {
		r.mu.Unlock()
		return ErrNotRecording
	}
	stream := r.stream
	r.mu.Unlock()

	if err := stream.WriteFrame(frame); err != nil {
		return failure.New(failure.KindEncoding, "recorder.capture", err)
	}
	return nil
}

// Stop asks the encoder to flush. Stopped is closed once it has drained.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if r.state != StateRecording || r.stopping {
		r.mu.Unlock()
		return nil
	}
	r.stopping = true
	stream := r.stream
	r.mu.Unlock()

	if err := stream.CloseInput(); err != nil {
		return failure.New(failure.KindEncoding, "recorder.stop", err)
	}
	return nil
}

// Abort kills the encoder and records cause as the session error.
func (r *Recorder) Abort(cause error) {
	r.mu.Lock()
	if r.state == StateStopped {
		r.mu.Unlock()
		return
	}
	if r.err == nil {
		r.err = cause
	}
	r.stopping = true
	stream := r.stream
	if stream == nil {
		r.transition(StateStopped)
		r.mu.Unlock()
		r.stopOnce.Do(func() { close(r.stopped) })
		return
	}
	r.mu.Unlock()

	if err := stream.Kill(); err != nil {
		r.logger.Debug().Err(err).Msg("kill encoder")
	}
}

// Stopped is closed when the recorder reaches StateStopped.
func (r *Recorder) Stopped() <-chan struct{} {
	return r.stopped
}

// Result returns the sealed chunks. It fails unless the recorder is Stopped
// without error and produced at least one chunk.
func (r *Recorder) Result() ([]Chunk, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateStopped {
		return nil, "", failure.Newf(failure.KindInvalid, "recorder.result", "recorder is %s", r.state)
	}
	if r.err != nil {
		return nil, "", r.err
	}
	out := make([]Chunk, len(r.chunks))
	copy(out, r.chunks)
	return out, r.stream.MIMEType(), nil
}

func (r *Recorder) collect(stream Stream) {
	for data := range stream.Chunks() {
		if len(data) == 0 {
			continue
		}
		r.mu.Lock()
		r.chunks = append(r.chunks, Chunk{Seq: len(r.chunks), Data: data})
		r.bytes += len(data)
		r.mu.Unlock()

		metrics.ChunksEmitted.Inc()
		metrics.RecorderBytes.Add(float64(len(data)))
	}
	waitErr := stream.Wait()

	r.mu.Lock()
	switch {
	case r.err != nil:
	case waitErr != nil:
		if failure.KindOf(waitErr) == failure.KindUnknown {
			waitErr = failure.New(failure.KindEncoding, "recorder.wait", waitErr)
		}
		r.err = waitErr
	case len(r.chunks) == 0:
		r.err = failure.Newf(failure.KindEncoding, "recorder.wait", "encoder produced no output")
	}
	r.transition(StateStopped)
	r.logger.Debug().Int("chunks", len(r.chunks)).Int("bytes", r.bytes).Err(r.err).Msg("recording sealed")
	r.mu.Unlock()

	r.stopOnce.Do(func() { close(r.stopped) })
}

// transition must be called with mu held.
func (r *Recorder) transition(next State) {
	r.logger.Debug().
		Str(xglog.FieldOldState, r.state.String()).
		Str(xglog.FieldNewState, next.String()).
		Msg("recorder state change")
	r.state = next
}
