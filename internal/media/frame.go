package media

import "math"

// DefaultAudioFPS is the number of audio frames per second used to size an
// audio frame when nothing else dictates it.
const DefaultAudioFPS = 25.0

// AudioFrameDesc describes the shape of an audio frame.
type AudioFrameDesc struct {
	SampleRate   int
	Channels     int
	SampleFormat SampleFormat
	FPS          float64
}

// SamplesPerFrame returns how many samples per channel one frame holds.
func (d AudioFrameDesc) SamplesPerFrame() int {
	fps := d.FPS
	if fps <= 0 {
		fps = DefaultAudioFPS
	}
	return int(math.Round(float64(d.SampleRate) / fps))
}

// FrameBytes returns the buffer size of one full frame.
func (d AudioFrameDesc) FrameBytes() int {
	return d.SamplesPerFrame() * d.Channels * d.SampleFormat.BytesPerSample()
}

// BlockAlign returns the size of one sample across all channels.
func (d AudioFrameDesc) BlockAlign() int {
	return d.Channels * d.SampleFormat.BytesPerSample()
}

// VideoFrameDesc describes the shape of a video frame.
type VideoFrameDesc struct {
	Width       int
	Height      int
	PixelFormat PixelFormat
	FPS         float64
}

// FrameBytes returns the buffer size of one picture.
func (d VideoFrameDesc) FrameBytes() int {
	return d.PixelFormat.FrameSize(d.Width, d.Height)
}

// Frame is a reusable decoded-frame slot. It is allocated once from a
// descriptor and only its size metadata changes between frames; the
// backing buffer grows only when a decoded unit exceeds its capacity.
type Frame struct {
	Type  MediaType
	Audio AudioFrameDesc
	Video VideoFrameDesc

	// NbSamples is the number of samples per channel held (audio only).
	NbSamples int

	buf  []byte
	size int
}

// NewAudioFrame allocates a frame sized for one full frame of desc.
func NewAudioFrame(desc AudioFrameDesc) *Frame {
	if desc.FPS <= 0 {
		desc.FPS = DefaultAudioFPS
	}
	return &Frame{
		Type:  MediaTypeAudio,
		Audio: desc,
		buf:   make([]byte, desc.FrameBytes()),
	}
}

// NewVideoFrame allocates a frame sized for one picture of desc.
func NewVideoFrame(desc VideoFrameDesc) *Frame {
	return &Frame{
		Type:  MediaTypeVideo,
		Video: desc,
		buf:   make([]byte, desc.FrameBytes()),
	}
}

// Bytes returns the valid portion of the buffer.
func (f *Frame) Bytes() []byte {
	return f.buf[:f.size]
}

// Size returns the number of valid bytes.
func (f *Frame) Size() int {
	return f.size
}

// Capacity returns the allocated buffer size.
func (f *Frame) Capacity() int {
	return len(f.buf)
}

// SetSize marks n bytes valid, growing the buffer when needed, and returns
// the valid region for writing.
func (f *Frame) SetSize(n int) []byte {
	if n > len(f.buf) {
		grown := make([]byte, n)
		copy(grown, f.buf[:f.size])
		f.buf = grown
	}
	f.size = n
	if f.Type == MediaTypeAudio {
		if ba := f.Audio.BlockAlign(); ba > 0 {
			f.NbSamples = n / ba
		}
	}
	return f.buf[:n]
}

// Reset marks the frame empty without releasing its buffer.
func (f *Frame) Reset() {
	f.size = 0
	f.NbSamples = 0
}

// CopyFrom copies the content and size of src into f.
func (f *Frame) CopyFrom(src *Frame) {
	copy(f.SetSize(src.Size()), src.Bytes())
	f.NbSamples = src.NbSamples
}
