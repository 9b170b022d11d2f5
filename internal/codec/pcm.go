package codec

import (
	"fmt"

	"github.com/zsiec/avtranscode/internal/media"
)

// pcmLayout maps a PCM codec to its wire layout and the in-memory sample
// format its frames use.
type pcmLayout struct {
	format    media.SampleFormat
	wireBytes int
	bigEndian bool
}

var pcmLayouts = map[string]pcmLayout{
	"pcm_u8":    {media.SampleFormatU8, 1, false},
	"pcm_s16le": {media.SampleFormatS16, 2, false},
	"pcm_s16be": {media.SampleFormatS16, 2, true},
	"pcm_s24le": {media.SampleFormatS32, 3, false},
	"pcm_s32le": {media.SampleFormatS32, 4, false},
	"pcm_f32le": {media.SampleFormatF32, 4, false},
}

func init() {
	for name := range pcmLayouts {
		RegisterDecoder(name, newPCMDecoder)
		RegisterEncoder(name, newPCMEncoder)
	}
}

// PCMSampleFormat returns the frame sample format of a PCM codec.
func PCMSampleFormat(codecName string) (media.SampleFormat, bool) {
	l, ok := pcmLayouts[codecName]
	return l.format, ok
}

// PCMCodecFor returns the little-endian PCM codec storing sf; 24-bit
// output is requested through bitsPerSample.
func PCMCodecFor(sf media.SampleFormat, bitsPerSample int) string {
	switch {
	case sf == media.SampleFormatU8:
		return "pcm_u8"
	case sf == media.SampleFormatS16:
		return "pcm_s16le"
	case sf == media.SampleFormatS32 && bitsPerSample == 24:
		return "pcm_s24le"
	case sf == media.SampleFormatS32:
		return "pcm_s32le"
	case sf == media.SampleFormatF32:
		return "pcm_f32le"
	default:
		return ""
	}
}

// BitsPerCodedSample returns the wire sample size of a PCM codec.
func BitsPerCodedSample(codecName string) int {
	return pcmLayouts[codecName].wireBytes * 8
}

func pcmParams(params media.CodecParams, l pcmLayout) (media.CodecParams, error) {
	if params.Audio.SampleRate <= 0 || params.Audio.Channels <= 0 {
		return params, fmt.Errorf("codec: %w: %s needs sample rate and channels", media.ErrCodec, params.Codec)
	}
	params.Type = media.MediaTypeAudio
	params.Audio.SampleFormat = l.format
	if params.Audio.FPS <= 0 {
		params.Audio.FPS = media.DefaultAudioFPS
	}
	params.TimeBase = media.Rational{Num: 1, Den: params.Audio.SampleRate}
	params.BitRate = int64(params.Audio.SampleRate * params.Audio.Channels * l.wireBytes * 8)
	return params, nil
}

type pcmDecoder struct {
	layout pcmLayout
	params media.CodecParams
}

func newPCMDecoder(params media.CodecParams) (Decoder, error) {
	l := pcmLayouts[params.Codec]
	p, err := pcmParams(params, l)
	if err != nil {
		return nil, err
	}
	return &pcmDecoder{layout: l, params: p}, nil
}

func (d *pcmDecoder) Params() media.CodecParams { return d.params }

func (d *pcmDecoder) Decode(pkt *media.Packet, dst *media.Frame) (bool, error) {
	if pkt.Empty() {
		return false, nil
	}
	ch := d.params.Audio.Channels
	nbSamples := len(pkt.Data) / (d.layout.wireBytes * ch)
	if nbSamples == 0 {
		return false, nil
	}
	native := d.layout.format.BytesPerSample()
	out := dst.SetSize(nbSamples * ch * native)
	unpackPCM(pkt.Data[:nbSamples*ch*d.layout.wireBytes], out, d.layout)
	dst.NbSamples = nbSamples
	return true, nil
}

type pcmEncoder struct {
	layout pcmLayout
	params media.CodecParams
	frames int
	pts    int64
}

func newPCMEncoder(params media.CodecParams) (Encoder, error) {
	l := pcmLayouts[params.Codec]
	p, err := pcmParams(params, l)
	if err != nil {
		return nil, err
	}
	return &pcmEncoder{layout: l, params: p}, nil
}

func (e *pcmEncoder) Params() media.CodecParams { return e.params }
func (e *pcmEncoder) Latency() int              { return 0 }
func (e *pcmEncoder) FrameCount() int           { return e.frames }

func (e *pcmEncoder) Encode(src *media.Frame, dst *media.Packet) (bool, error) {
	if src.Audio.SampleFormat != e.layout.format || src.Audio.Channels != e.params.Audio.Channels {
		return false, fmt.Errorf("codec: %w: %s expects %s x%d, got %s x%d", media.ErrCodec,
			e.params.Codec, e.layout.format, e.params.Audio.Channels, src.Audio.SampleFormat, src.Audio.Channels)
	}
	if src.NbSamples == 0 {
		return false, nil
	}
	n := src.NbSamples * e.params.Audio.Channels
	size := n * e.layout.wireBytes
	if cap(dst.Data) < size {
		dst.Data = make([]byte, size)
	}
	dst.Data = dst.Data[:size]
	packPCM(src.Bytes()[:n*e.layout.format.BytesPerSample()], dst.Data, e.layout)

	dst.PTS = e.pts
	dst.DTS = e.pts
	dst.Duration = int64(src.NbSamples)
	dst.TimeBase = e.params.TimeBase
	dst.Keyframe = true
	e.pts += int64(src.NbSamples)
	e.frames++
	return true, nil
}

func (e *pcmEncoder) Flush(*media.Packet) (bool, error) { return false, nil }

// unpackPCM converts wire samples to the little-endian in-memory layout.
func unpackPCM(in, out []byte, l pcmLayout) {
	switch {
	case l.wireBytes == 3:
		for i, o := 0, 0; i+2 < len(in); i, o = i+3, o+4 {
			out[o] = 0
			out[o+1] = in[i]
			out[o+2] = in[i+1]
			out[o+3] = in[i+2]
		}
	case l.bigEndian:
		for i := 0; i+1 < len(in); i += 2 {
			out[i] = in[i+1]
			out[i+1] = in[i]
		}
	default:
		copy(out, in)
	}
}

// packPCM is the inverse of unpackPCM. 24-bit output keeps the top three
// bytes of each 32-bit sample.
func packPCM(in, out []byte, l pcmLayout) {
	switch {
	case l.wireBytes == 3:
		for i, o := 0, 0; i+3 < len(in); i, o = i+4, o+3 {
			out[o] = in[i+1]
			out[o+1] = in[i+2]
			out[o+2] = in[i+3]
		}
	case l.bigEndian:
		for i := 0; i+1 < len(in); i += 2 {
			out[i] = in[i+1]
			out[i+1] = in[i]
		}
	default:
		copy(out, in)
	}
}
