package codec

import (
	"fmt"

	"github.com/zsiec/avtranscode/internal/media"
)

// RawVideo is the codec name of uncompressed pictures.
const RawVideo = "rawvideo"

func init() {
	RegisterDecoder(RawVideo, newRawVideoDecoder)
	RegisterEncoder(RawVideo, newRawVideoEncoder)
}

func rawVideoParams(params media.CodecParams) (media.CodecParams, error) {
	v := params.Video
	if v.Width <= 0 || v.Height <= 0 || v.PixelFormat == media.PixelFormatNone {
		return params, fmt.Errorf("codec: %w: rawvideo needs width, height and pixel format", media.ErrCodec)
	}
	if v.FPS <= 0 {
		params.Video.FPS = 25
	}
	params.Type = media.MediaTypeVideo
	params.TimeBase = media.RationalFromFPS(params.Video.FPS).Invert()
	params.BitRate = int64(float64(v.FrameBytes()*8) * params.Video.FPS)
	return params, nil
}

type rawVideoDecoder struct {
	params media.CodecParams
}

func newRawVideoDecoder(params media.CodecParams) (Decoder, error) {
	p, err := rawVideoParams(params)
	if err != nil {
		return nil, err
	}
	return &rawVideoDecoder{params: p}, nil
}

func (d *rawVideoDecoder) Params() media.CodecParams { return d.params }

func (d *rawVideoDecoder) Decode(pkt *media.Packet, dst *media.Frame) (bool, error) {
	if pkt.Empty() {
		return false, nil
	}
	want := d.params.Video.FrameBytes()
	if len(pkt.Data) < want {
		return false, fmt.Errorf("codec: %w: rawvideo packet has %d bytes, picture needs %d", media.ErrCodec, len(pkt.Data), want)
	}
	copy(dst.SetSize(want), pkt.Data)
	return true, nil
}

type rawVideoEncoder struct {
	params media.CodecParams
	frames int
}

func newRawVideoEncoder(params media.CodecParams) (Encoder, error) {
	p, err := rawVideoParams(params)
	if err != nil {
		return nil, err
	}
	return &rawVideoEncoder{params: p}, nil
}

func (e *rawVideoEncoder) Params() media.CodecParams { return e.params }
func (e *rawVideoEncoder) Latency() int              { return 0 }
func (e *rawVideoEncoder) FrameCount() int           { return e.frames }

func (e *rawVideoEncoder) Encode(src *media.Frame, dst *media.Packet) (bool, error) {
	if src.Video.Width != e.params.Video.Width || src.Video.Height != e.params.Video.Height ||
		src.Video.PixelFormat != e.params.Video.PixelFormat {
		return false, fmt.Errorf("codec: %w: rawvideo expects %dx%d %s, got %dx%d %s", media.ErrCodec,
			e.params.Video.Width, e.params.Video.Height, e.params.Video.PixelFormat,
			src.Video.Width, src.Video.Height, src.Video.PixelFormat)
	}
	if src.Size() == 0 {
		return false, nil
	}
	dst.Data = append(dst.Data[:0], src.Bytes()...)
	dst.PTS = int64(e.frames)
	dst.DTS = dst.PTS
	dst.Duration = 1
	dst.TimeBase = e.params.TimeBase
	dst.Keyframe = true
	e.frames++
	return true, nil
}

func (e *rawVideoEncoder) Flush(*media.Packet) (bool, error) { return false, nil }
