// Package asset holds generated results. An Asset is immutable: bytes are
// copied in on construction and copied out on access.
package asset

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/aggressionjsk/ai-saas-app/internal/failure"
	"github.com/aggressionjsk/ai-saas-app/internal/recorder"
)

type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Asset is a downloadable result.
type Asset struct {
	id          string
	kind        Kind
	name        string
	ext         string
	contentType string
	data        []byte
	width       int
	height      int
	duration    time.Duration
	frames      int
	created     time.Time
}

// Meta describes an asset under construction.
type Meta struct {
	Name        string // download basename without extension
	Ext         string // including the dot
	ContentType string
	Width       int
	Height      int
	Duration    time.Duration // videos only
	Frames      int           // videos only
}

// NewImage copies data into an image asset.
func NewImage(meta Meta, data []byte) (*Asset, error) {
	if len(data) == 0 {
		return nil, failure.Newf(failure.KindInvalid, "asset.image", "empty image")
	}
	return newAsset(KindImage, meta, bytes.Clone(data)), nil
}

// NewVideo concatenates chunks into a video asset. Chunks must be in
// emission order and at least one must be present.
func NewVideo(meta Meta, chunks []recorder.Chunk) (*Asset, error) {
	data, err := Concat(chunks)
	if err != nil {
		return nil, err
	}
	return newAsset(KindVideo, meta, data), nil
}

// Concat joins chunk payloads in order into a fresh buffer.
func Concat(chunks []recorder.Chunk) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, failure.Newf(failure.KindEncoding, "asset.concat", "no chunks recorded")
	}
	size := 0
	for i, c := range chunks {
		if i > 0 && c.Seq <= chunks[i-1].Seq {
			return nil, failure.Newf(failure.KindEncoding, "asset.concat", "chunk %d out of order after %d", c.Seq, chunks[i-1].Seq)
		}
		size += len(c.Data)
	}
	out := make([]byte, 0, size)
	for _, c := range chunks {
		out = append(out, c.Data...)
	}
	return out, nil
}

func newAsset(kind Kind, meta Meta, data []byte) *Asset {
	name := meta.Name
	if name == "" {
		name = fmt.Sprintf("zukku_%s", kind)
	}
	return &Asset{
		id:          uuid.NewString(),
		kind:        kind,
		name:        name,
		ext:         meta.Ext,
		contentType: meta.ContentType,
		data:        data,
		width:       meta.Width,
		height:      meta.Height,
		duration:    meta.Duration,
		frames:      meta.Frames,
		created:     time.Now(),
	}
}

func (a *Asset) ID() string              { return a.id }
func (a *Asset) Kind() Kind              { return a.kind }
func (a *Asset) Name() string            { return a.name }
func (a *Asset) Filename() string        { return a.name + a.ext }
func (a *Asset) ContentType() string     { return a.contentType }
func (a *Asset) Size() int               { return len(a.data) }
func (a *Asset) Width() int              { return a.width }
func (a *Asset) Height() int             { return a.height }
func (a *Asset) Duration() time.Duration { return a.duration }
func (a *Asset) Frames() int             { return a.frames }
func (a *Asset) CreatedAt() time.Time    { return a.created }

// Bytes returns a copy of the payload.
func (a *Asset) Bytes() []byte { return bytes.Clone(a.data) }

// Open returns a reader over the payload.
func (a *Asset) Open() io.ReadSeeker { return bytes.NewReader(a.data) }

// Info is the JSON view of an asset.
type Info struct {
	ID          string  `json:"id"`
	Kind        Kind    `json:"kind"`
	Filename    string  `json:"filename"`
	ContentType string  `json:"content_type"`
	Size        int     `json:"size"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	Duration    float64 `json:"duration_seconds,omitempty"`
	Frames      int     `json:"frames,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func (a *Asset) Info() Info {
	return Info{
		ID:          a.id,
		Kind:        a.kind,
		Filename:    a.Filename(),
		ContentType: a.contentType,
		Size:        len(a.data),
		Width:       a.width,
		Height:      a.height,
		Duration:    a.duration.Seconds(),
		Frames:      a.frames,
		CreatedAt:   a.created.UTC().Format(time.RFC3339),
	}
}
