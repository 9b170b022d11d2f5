package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/zsiec/avtranscode/internal/media"
)

// InputDecoder is a FrameSource that pulls packets from a stream reader and
// decodes them. With a sub-stream set it extracts one channel of an
// interleaved audio stream into a mono frame.
type InputDecoder struct {
	reader  PacketReader
	decoder Decoder
	channel int
	full    *media.Frame
	eof     bool
}

// NewInputDecoder wires a decoder to the packets of r.
func NewInputDecoder(r PacketReader, d Decoder) *InputDecoder {
	return &InputDecoder{reader: r, decoder: d, channel: -1}
}

// Params describes the frames DecodeNextFrame produces.
func (d *InputDecoder) Params() media.CodecParams {
	p := d.decoder.Params()
	if d.channel >= 0 {
		p.Audio.Channels = 1
	}
	return p
}

// SetSubStream selects one channel of a multichannel audio stream; -1
// selects all of them.
func (d *InputDecoder) SetSubStream(channel int) error {
	p := d.decoder.Params()
	if channel < 0 {
		d.channel = -1
		d.full = nil
		return nil
	}
	if p.Type != media.MediaTypeAudio || channel >= p.Audio.Channels {
		return fmt.Errorf("codec: %w: sub-stream %d not available in %s stream with %d channels",
			media.ErrConfiguration, channel, p.Type, p.Audio.Channels)
	}
	d.channel = channel
	d.full = media.NewAudioFrame(p.Audio)
	return nil
}

// DecodeNextFrame decodes the next frame into dst, draining the decoder
// once the stream is exhausted.
func (d *InputDecoder) DecodeNextFrame(dst *media.Frame) (bool, error) {
	target := dst
	if d.full != nil {
		target = d.full
	}
	for {
		if d.eof {
			ok, err := d.decoder.Decode(nil, target)
			if err != nil || !ok {
				return false, err
			}
			break
		}
		pkt, err := d.reader.ReadNextPacket()
		if errors.Is(err, io.EOF) {
			d.eof = true
			continue
		}
		if err != nil {
			return false, err
		}
		ok, err := d.decoder.Decode(pkt, target)
		if err != nil {
			return false, fmt.Errorf("codec: decode: %w", err)
		}
		if ok {
			break
		}
	}
	if d.full != nil {
		extractChannel(d.full, dst, d.channel)
	}
	return true, nil
}

// extractChannel copies channel ch of the interleaved src into mono dst.
func extractChannel(src, dst *media.Frame, ch int) {
	bps := src.Audio.SampleFormat.BytesPerSample()
	channels := src.Audio.Channels
	n := src.NbSamples
	out := dst.SetSize(n * bps)
	in := src.Bytes()
	for i := 0; i < n; i++ {
		copy(out[i*bps:(i+1)*bps], in[(i*channels+ch)*bps:])
	}
	dst.NbSamples = n
}
