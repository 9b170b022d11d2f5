// Package probe extracts stream properties from containers and elementary
// streams: H.264 and H.265 parameter sets, ADTS headers, and the per-file and
// per-stream summaries reported by the probe command and used to size
// decoders.
package probe

import "github.com/zsiec/avtranscode/internal/media"

// StreamProperties summarises one elementary stream of a container.
type StreamProperties struct {
	Index     int               `json:"index"`
	Params    media.CodecParams `json:"-"`
	Codec     string            `json:"codec"`
	Type      string            `json:"type"`
	Duration  float64           `json:"duration"`
	StartTime float64           `json:"startTime"`
	NbPackets int               `json:"nbPackets"`
	BitRate   int64             `json:"bitRate,omitempty"`

	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	PixelFormat string  `json:"pixelFormat,omitempty"`
	FPS         float64 `json:"fps,omitempty"`

	SampleRate   int    `json:"sampleRate,omitempty"`
	Channels     int    `json:"channels,omitempty"`
	SampleFormat string `json:"sampleFormat,omitempty"`
}

// NewStreamProperties fills the display fields from params.
func NewStreamProperties(index int, params media.CodecParams) StreamProperties {
	sp := StreamProperties{
		Index:   index,
		Params:  params,
		Codec:   params.Codec,
		Type:    params.Type.String(),
		BitRate: params.BitRate,
	}
	switch params.Type {
	case media.MediaTypeVideo:
		sp.Width = params.Video.Width
		sp.Height = params.Video.Height
		sp.FPS = params.Video.FPS
		if params.Video.PixelFormat != media.PixelFormatNone {
			sp.PixelFormat = params.Video.PixelFormat.String()
		}
	case media.MediaTypeAudio:
		sp.SampleRate = params.Audio.SampleRate
		sp.Channels = params.Audio.Channels
		if params.Audio.SampleFormat != media.SampleFormatNone {
			sp.SampleFormat = params.Audio.SampleFormat.String()
		}
	}
	return sp
}

// FileProperties summarises a container.
type FileProperties struct {
	Filename   string             `json:"filename"`
	FormatName string             `json:"formatName"`
	Duration   float64            `json:"duration"`
	StartTime  float64            `json:"startTime"`
	Size       int64              `json:"size"`
	BitRate    int64              `json:"bitRate,omitempty"`
	Metadata   map[string]string  `json:"metadata,omitempty"`
	Streams    []StreamProperties `json:"streams"`
}

// StreamsOfType returns the streams carrying media of type t.
func (p FileProperties) StreamsOfType(t media.MediaType) []StreamProperties {
	var out []StreamProperties
	for _, s := range p.Streams {
		if s.Params.Type == t {
			out = append(out, s)
		}
	}
	return out
}

// FirstVideoFPS returns the frame rate of the first video stream, or 1 when
// the file has no video.
func (p FileProperties) FirstVideoFPS() float64 {
	for _, s := range p.StreamsOfType(media.MediaTypeVideo) {
		if s.FPS > 0 {
			return s.FPS
		}
	}
	return 1
}
