package media

import "fmt"

// MediaType classifies an elementary stream.
type MediaType int

const (
	MediaTypeUnknown MediaType = iota
	MediaTypeVideo
	MediaTypeAudio
	MediaTypeData
)

func (t MediaType) String() string {
	switch t {
	case MediaTypeVideo:
		return "video"
	case MediaTypeAudio:
		return "audio"
	case MediaTypeData:
		return "data"
	default:
		return "unknown"
	}
}

// SampleFormat is an interleaved little-endian audio sample layout.
type SampleFormat int

const (
	SampleFormatNone SampleFormat = iota
	SampleFormatU8
	SampleFormatS16
	SampleFormatS32
	SampleFormatF32
)

var sampleFormatNames = map[SampleFormat]string{
	SampleFormatU8:  "u8",
	SampleFormatS16: "s16",
	SampleFormatS32: "s32",
	SampleFormatF32: "flt",
}

// BytesPerSample returns the size of one sample of one channel.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case SampleFormatU8:
		return 1
	case SampleFormatS16:
		return 2
	case SampleFormatS32, SampleFormatF32:
		return 4
	default:
		return 0
	}
}

func (f SampleFormat) String() string {
	if n, ok := sampleFormatNames[f]; ok {
		return n
	}
	return "none"
}

// ParseSampleFormat resolves a sample format name such as "s16" or "flt".
func ParseSampleFormat(name string) (SampleFormat, error) {
	for f, n := range sampleFormatNames {
		if n == name {
			return f, nil
		}
	}
	if name == "f32" {
		return SampleFormatF32, nil
	}
	return SampleFormatNone, fmt.Errorf("%w: unknown sample format %q", ErrConfiguration, name)
}

// PixelFormat is a raw picture layout.
type PixelFormat int

const (
	PixelFormatNone PixelFormat = iota
	PixelFormatYUV420P
	PixelFormatRGB24
	PixelFormatGray8
)

var pixelFormatNames = map[PixelFormat]string{
	PixelFormatYUV420P: "yuv420p",
	PixelFormatRGB24:   "rgb24",
	PixelFormatGray8:   "gray",
}

// FrameSize returns the number of bytes of one w x h picture.
func (f PixelFormat) FrameSize(w, h int) int {
	switch f {
	case PixelFormatYUV420P:
		cw, ch := (w+1)/2, (h+1)/2
		return w*h + 2*cw*ch
	case PixelFormatRGB24:
		return w * h * 3
	case PixelFormatGray8:
		return w * h
	default:
		return 0
	}
}

func (f PixelFormat) String() string {
	if n, ok := pixelFormatNames[f]; ok {
		return n
	}
	return "none"
}

// ParsePixelFormat resolves a pixel format name such as "yuv420p".
func ParsePixelFormat(name string) (PixelFormat, error) {
	for f, n := range pixelFormatNames {
		if n == name {
			return f, nil
		}
	}
	if name == "gray8" {
		return PixelFormatGray8, nil
	}
	return PixelFormatNone, fmt.Errorf("%w: unknown pixel format %q", ErrConfiguration, name)
}
