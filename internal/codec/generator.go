package codec

import "github.com/zsiec/avtranscode/internal/media"

// Generator is a FrameSource that never runs dry. It produces silence or a
// black picture shaped like the destination frame, or replays a frame
// supplied with SetNextFrame.
type Generator struct {
	next *media.Frame
}

// NewGenerator returns a generator producing silence or black frames.
func NewGenerator() *Generator {
	return &Generator{}
}

// SetNextFrame makes the generator replay f instead of silence or black.
// Passing nil restores the default.
func (g *Generator) SetNextFrame(f *media.Frame) {
	g.next = f
}

// DecodeNextFrame always produces a frame.
func (g *Generator) DecodeNextFrame(dst *media.Frame) (bool, error) {
	if g.next != nil && g.next.Type == dst.Type && g.next.Size() > 0 {
		dst.CopyFrom(g.next)
		return true, nil
	}
	switch dst.Type {
	case media.MediaTypeAudio:
		fillSilence(dst.SetSize(dst.Audio.FrameBytes()), dst.Audio.SampleFormat)
		dst.NbSamples = dst.Audio.SamplesPerFrame()
	case media.MediaTypeVideo:
		fillBlack(dst.SetSize(dst.Video.FrameBytes()), dst.Video)
	}
	return true, nil
}

func fillSilence(buf []byte, sf media.SampleFormat) {
	v := byte(0)
	if sf == media.SampleFormatU8 {
		v = 0x80
	}
	for i := range buf {
		buf[i] = v
	}
}

func fillBlack(buf []byte, d media.VideoFrameDesc) {
	switch d.PixelFormat {
	case media.PixelFormatYUV420P:
		luma := d.Width * d.Height
		for i := range buf {
			if i < luma {
				buf[i] = 16
			} else {
				buf[i] = 128
			}
		}
	case media.PixelFormatGray8:
		for i := range buf {
			buf[i] = 16
		}
	default:
		for i := range buf {
			buf[i] = 0
		}
	}
}
