package engine

import (
	"github.com/aggressionjsk/ai-saas-app/internal/asset"
	"github.com/aggressionjsk/ai-saas-app/internal/failure"
)

// Actions named in failures.
const (
	ActionImage = "image"
	ActionVideo = "video"
)

// Failure is the user-visible outcome of a failed action.
type Failure struct {
	Action    string       `json:"action"`
	Kind      failure.Kind `json:"kind"`
	Message   string       `json:"message"`
	Detail    string       `json:"detail,omitempty"`
	Retryable bool         `json:"retryable"`
}

// NewFailure classifies err for action.
func NewFailure(action string, err error) *Failure {
	kind := failure.KindOf(err)
	f := &Failure{
		Action:    action,
		Kind:      kind,
		Message:   message(action, kind),
		Retryable: failure.Retryable(kind),
	}
	if err != nil {
		f.Detail = err.Error()
	}
	return f
}

func message(action string, kind failure.Kind) string {
	switch kind {
	case failure.KindInvalid:
		return "Please enter a prompt first."
	case failure.KindBusy:
		return "Still working on the previous request."
	case failure.KindFetch:
		return "Failed to generate image. Please try again."
	case failure.KindDecode:
		return "The generated image could not be read."
	case failure.KindRecorderUnavailable:
		return "Video recording is not available on this server."
	case failure.KindOverloaded:
		return "The server is busy. Please try again shortly."
	case failure.KindCanceled:
		return "The request was canceled."
	}
	if action == ActionVideo {
		return "Failed to generate video. Please try again."
	}
	return "Failed to generate image. Please try again."
}

// State is the user-facing studio state. It is a value: Reduce returns a
// new State and never modifies its input. Assets are immutable and shared.
type State struct {
	Prompt    string
	Image     *asset.Asset
	Video     *asset.Asset
	ImageBusy bool
	VideoBusy bool
	Failure   *Failure
	Revision  uint64
}

// Event is a state transition input.
type Event interface{ event() }

type (
	PromptChanged struct{ Prompt string }
	ImageStarted  struct{}
	ImageReady    struct{ Asset *asset.Asset }
	ImageFailed   struct{ Failure *Failure }
	VideoStarted  struct{}
	VideoReady    struct{ Asset *asset.Asset }
	VideoFailed   struct{ Failure *Failure }
)

func (PromptChanged) event() {}
func (ImageStarted) event()  {}
func (ImageReady) event()    {}
func (ImageFailed) event()   {}
func (VideoStarted) event()  {}
func (VideoReady) event()    {}
func (VideoFailed) event()   {}

// Reduce is the single transition function of the studio.
func Reduce(s State, e Event) State {
	switch e := e.(type) {
	case PromptChanged:
		s.Prompt = e.Prompt
	case ImageStarted:
		s.ImageBusy = true
		s.Failure = nil
		// A new image invalidates the clip made from the old one.
		s.Video = nil
	case ImageReady:
		s.ImageBusy = false
		s.Image = e.Asset
	case ImageFailed:
		s.ImageBusy = false
		s.Failure = e.Failure
	case VideoStarted:
		s.VideoBusy = true
		s.Failure = nil
	case VideoReady:
		s.VideoBusy = false
		s.Video = e.Asset
	case VideoFailed:
		s.VideoBusy = false
		s.Failure = e.Failure
	default:
		return s
	}
	s.Revision++
	return s
}

// View is the JSON rendering of State.
type View struct {
	Prompt    string      `json:"prompt"`
	Image     *asset.Info `json:"image,omitempty"`
	Video     *asset.Info `json:"video,omitempty"`
	ImageBusy bool        `json:"image_busy"`
	VideoBusy bool        `json:"video_busy"`
	Failure   *Failure    `json:"failure,omitempty"`
	Revision  uint64      `json:"revision"`
}

func (s State) View() View {
	v := View{
		Prompt:    s.Prompt,
		ImageBusy: s.ImageBusy,
		VideoBusy: s.VideoBusy,
		Failure:   s.Failure,
		Revision:  s.Revision,
	}
	if s.Image != nil {
		info := s.Image.Info()
		v.Image = &info
	}
	if s.Video != nil {
		info := s.Video.Info()
		v.Video = &info
	}
	return v
}
