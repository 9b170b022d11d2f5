package transform

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/zsiec/avtranscode/internal/media"
)

// Audio converts sample format, channel count and sample rate. Resampling
// is linear over the whole stream rather than per frame: interpolation
// spans frame boundaries and the output sample total tracks the input
// exactly.
type Audio struct {
	in    []float32
	mixed []float32
	out   []float32

	// resampler state since the rates or channel count last changed
	rates   [2]int
	inTotal int64
	last    []float32
}

// NewAudio returns an audio transform.
func NewAudio() *Audio {
	return &Audio{}
}

// Convert implements Transform.
func (a *Audio) Convert(src, dst *media.Frame) error {
	s, d := src.Audio, dst.Audio
	if s.SampleRate <= 0 || d.SampleRate <= 0 || s.Channels <= 0 || d.Channels <= 0 {
		return fmt.Errorf("transform: %w: invalid audio shape %+v -> %+v", media.ErrConfiguration, s, d)
	}
	if s.SampleFormat == d.SampleFormat && s.Channels == d.Channels && s.SampleRate == d.SampleRate {
		dst.CopyFrom(src)
		return nil
	}

	n := src.NbSamples
	a.in = toFloat(src.Bytes()[:n*s.BlockAlign()], s.SampleFormat, a.in)
	a.mixed = mix(a.in, n, s.Channels, d.Channels, a.mixed)

	samples := a.mixed
	outN := n
	if s.SampleRate != d.SampleRate {
		outN = a.resample(n, s.SampleRate, d.SampleRate, d.Channels)
		samples = a.out
	}

	buf := dst.SetSize(outN * d.BlockAlign())
	fromFloat(samples[:outN*d.Channels], d.SampleFormat, buf)
	dst.NbSamples = outN
	return nil
}

func grow(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}

func toFloat(in []byte, sf media.SampleFormat, buf []float32) []float32 {
	bps := sf.BytesPerSample()
	if bps == 0 {
		return buf[:0]
	}
	n := len(in) / bps
	buf = grow(buf, n)
	for i := 0; i < n; i++ {
		b := in[i*bps:]
		switch sf {
		case media.SampleFormatU8:
			buf[i] = (float32(b[0]) - 128) / 128
		case media.SampleFormatS16:
			buf[i] = float32(int16(binary.LittleEndian.Uint16(b))) / 32768
		case media.SampleFormatS32:
			buf[i] = float32(float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648)
		case media.SampleFormatF32:
			buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b))
		}
	}
	return buf
}

func fromFloat(in []float32, sf media.SampleFormat, out []byte) {
	bps := sf.BytesPerSample()
	for i, v := range in {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		b := out[i*bps:]
		switch sf {
		case media.SampleFormatU8:
			b[0] = byte(math.Round(float64(v)*127) + 128)
		case media.SampleFormatS16:
			binary.LittleEndian.PutUint16(b, uint16(int16(math.Round(float64(v)*32767))))
		case media.SampleFormatS32:
			binary.LittleEndian.PutUint32(b, uint32(int32(math.Round(float64(v)*2147483647))))
		case media.SampleFormatF32:
			binary.LittleEndian.PutUint32(b, math.Float32bits(v))
		}
	}
}

// mix maps n interleaved frames of sc channels to dc channels. Downmixing
// to mono averages; upmixing from mono duplicates; otherwise channels are
// matched by position and missing ones repeat the first channel.
func mix(in []float32, n, sc, dc int, buf []float32) []float32 {
	buf = grow(buf, n*dc)
	if sc == dc {
		copy(buf, in[:n*sc])
		return buf
	}
	for i := 0; i < n; i++ {
		frame := in[i*sc : (i+1)*sc]
		out := buf[i*dc : (i+1)*dc]
		switch {
		case dc == 1:
			var sum float32
			for _, v := range frame {
				sum += v
			}
			out[0] = sum / float32(sc)
		case sc == 1:
			for c := range out {
				out[c] = frame[0]
			}
		default:
			for c := range out {
				if c < sc {
					out[c] = frame[c]
				} else {
					out[c] = frame[0]
				}
			}
		}
	}
	return buf
}

// resample interpolates the n mixed frames into a.out and returns the
// output frame count. Output frame j sits at input position j*from/to - 1,
// one input frame late, so both neighbours of every position are known:
// the frame before the first one is held from the previous call, or is
// the first frame itself at stream start.
func (a *Audio) resample(n, from, to, ch int) int {
	if a.rates != [2]int{from, to} || len(a.last) != ch {
		a.rates = [2]int{from, to}
		a.inTotal = 0
		a.last = nil
	}
	if n == 0 {
		a.out = a.out[:0]
		return 0
	}
	if a.last == nil {
		a.last = append(make([]float32, 0, ch), a.mixed[:ch]...)
	}

	f, t := int64(from), int64(to)
	start := ceilDiv(a.inTotal*t, f)
	end := ceilDiv((a.inTotal+int64(n))*t, f)
	outN := int(end - start)
	a.out = grow(a.out, outN*ch)
	at := func(i int64, c int) float32 {
		if i < 0 {
			return a.last[c]
		}
		return a.mixed[int(i)*ch+c]
	}
	for k := 0; k < outN; k++ {
		// position relative to this frame, scaled by to
		pos := (start+int64(k))*f - (a.inTotal+1)*t
		i0 := pos / t
		if pos%t < 0 {
			i0--
		}
		i0 = min(max(i0, -1), int64(n-2))
		frac := float32(pos-i0*t) / float32(t)
		for c := 0; c < ch; c++ {
			x, y := at(i0, c), at(i0+1, c)
			a.out[k*ch+c] = x + (y-x)*frac
		}
	}

	copy(a.last, a.mixed[(n-1)*ch:n*ch])
	a.inTotal += int64(n)
	return outN
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
