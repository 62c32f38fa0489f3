package video

import (
	"fmt"
	"strings"

	"github.com/aggressionjsk/ai-saas-app/internal/failure"
)

// Format is an output container the recorder can emit.
type Format struct {
	Name      string
	Container string // ffmpeg -f muxer
	MIMEType  string
	Ext       string
	// Encoders in order of preference. The first one the local ffmpeg
	// build lists is used.
	Encoders []string
	// Streaming muxer flags required to write to a pipe.
	MuxArgs []string
}

var (
	WebM = Format{
		Name:      "webm",
		Container: "webm",
		MIMEType:  "video/webm",
		Ext:       ".webm",
		Encoders:  []string{"libvpx-vp9", "libvpx"},
	}
	MP4 = Format{
		Name:      "mp4",
		Container: "mp4",
		MIMEType:  "video/mp4",
		Ext:       ".mp4",
		Encoders:  []string{"h264_videotoolbox", "h264_nvenc", "libx264"},
		MuxArgs:   []string{"-movflags", "frag_keyframe+empty_moov+default_base_moof"},
	}
)

// FormatByName resolves "webm" or "mp4".
func FormatByName(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "webm":
		return WebM, nil
	case "mp4":
		return MP4, nil
	}
	return Format{}, failure.New(failure.KindInvalid, "video.format", fmt.Errorf("unsupported format %q", name))
}
