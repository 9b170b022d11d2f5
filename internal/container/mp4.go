package container

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4/seekablebuffer"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"

	"github.com/zsiec/avtranscode/internal/media"
	"github.com/zsiec/avtranscode/internal/probe"
)

type mp4Track struct {
	id       int
	codec    mp4.Codec
	timeBase media.Rational
	params   media.CodecParams
	samples  []*fmp4.Sample
	baseTime int64
	nextDTS  int64
	started  bool
}

// mp4Writer writes fragmented MP4: an init segment followed by one
// moof/mdat part per fragment duration.
type mp4Writer struct {
	f           *os.File
	bw          *bufio.Writer
	tracks      []*mp4Track
	fragmentDur float64
	seq         uint32
	header      bool
}

func newMP4Writer(_ context.Context, f *os.File, _ string) (Writer, error) {
	return &mp4Writer{
		f:           f,
		bw:          bufio.NewWriterSize(f, 256*1024),
		fragmentDur: 1,
		seq:         1,
	}, nil
}

func (w *mp4Writer) FormatName() string { return "mp4" }

func (w *mp4Writer) AddStream(params media.CodecParams) (media.Rational, error) {
	if w.header {
		return media.Rational{}, fmt.Errorf("%w: mp4: stream added after header", media.ErrFormat)
	}
	t := &mp4Track{id: len(w.tracks) + 1, params: params}
	switch params.Codec {
	case "h264":
		sps, pps := probe.ParameterSets(params.Extradata)
		if sps == nil || pps == nil {
			return media.Rational{}, fmt.Errorf("%w: mp4: h264 stream without parameter sets", media.ErrCodec)
		}
		t.codec = &mp4.CodecH264{SPS: sps, PPS: pps}
		t.timeBase = media.TimeBaseMPEGTS
	case "aac":
		if params.Audio.SampleRate <= 0 || params.Audio.Channels <= 0 {
			return media.Rational{}, fmt.Errorf("%w: mp4: aac stream without sample rate", media.ErrCodec)
		}
		t.codec = &mp4.CodecMPEG4Audio{
			Config: mpeg4audio.AudioSpecificConfig{
				Type:         2, // AAC-LC
				SampleRate:   params.Audio.SampleRate,
				ChannelCount: params.Audio.Channels,
			},
		}
		t.timeBase = media.Rational{Num: 1, Den: params.Audio.SampleRate}
	default:
		return media.Rational{}, fmt.Errorf("%w: mp4: cannot store codec %s", media.ErrCodec, params.Codec)
	}
	w.tracks = append(w.tracks, t)
	return t.timeBase, nil
}

// SetOption supports fragment_duration in seconds.
func (w *mp4Writer) SetOption(key, value string) error {
	if key != "fragment_duration" {
		return unknownOption(key, value)
	}
	d, err := strconv.ParseFloat(value, 64)
	if err != nil || d <= 0 {
		return unknownOption(key, value)
	}
	w.fragmentDur = d
	return nil
}

func (w *mp4Writer) SetMetadata(string, string) bool { return false }

func (w *mp4Writer) WriteHeader() error {
	if len(w.tracks) == 0 {
		return fmt.Errorf("%w: mp4: no streams", media.ErrFormat)
	}
	init := &fmp4.Init{}
	for _, t := range w.tracks {
		init.Tracks = append(init.Tracks, &fmp4.InitTrack{
			ID:        t.id,
			TimeScale: uint32(t.timeBase.Den),
			Codec:     t.codec,
		})
	}
	var buf seekablebuffer.Buffer
	if err := init.Marshal(&buf); err != nil {
		return fmt.Errorf("%w: mp4: init segment: %w", media.ErrFormat, err)
	}
	if _, err := w.bw.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: mp4: %w", media.ErrResource, err)
	}
	w.header = true
	return nil
}

func (w *mp4Writer) WritePacket(pkt *media.Packet) error {
	if !w.header {
		return fmt.Errorf("%w: mp4: header not written", media.ErrFormat)
	}
	if pkt.StreamIndex < 0 || pkt.StreamIndex >= len(w.tracks) {
		return fmt.Errorf("%w: mp4: no stream %d", media.ErrFormat, pkt.StreamIndex)
	}
	t := w.tracks[pkt.StreamIndex]

	dts := pkt.DTS
	if dts == media.NoPTS {
		dts = pkt.PTS
	}
	if dts == media.NoPTS {
		dts = t.nextDTS
	}
	if !t.started || len(t.samples) == 0 {
		t.baseTime = dts
		t.started = true
	}

	switch t.params.Codec {
	case "h264":
		payload, err := avccPayload(pkt.Data)
		if err != nil {
			return fmt.Errorf("%w: mp4: %w", media.ErrCodec, err)
		}
		s := &fmp4.Sample{
			Duration:        uint32(max(pkt.Duration, 0)),
			IsNonSyncSample: !pkt.Keyframe,
			Payload:         payload,
		}
		if pkt.PTS != media.NoPTS {
			s.PTSOffset = int32(pkt.PTS - dts)
		}
		if s.Duration == 0 && t.params.Video.FPS > 0 {
			s.Duration = uint32(t.timeBase.FromSeconds(1 / t.params.Video.FPS))
		}
		t.samples = append(t.samples, s)
		t.nextDTS = dts + int64(s.Duration)
	case "aac":
		frames, err := probe.ParseADTS(pkt.Data)
		if err != nil || len(frames) == 0 {
			// Raw access unit without ADTS framing.
			t.samples = append(t.samples, &fmp4.Sample{
				Duration: probe.SamplesPerAACFrame,
				Payload:  append([]byte(nil), pkt.Data...),
			})
			t.nextDTS = dts + probe.SamplesPerAACFrame
			break
		}
		for _, fr := range frames {
			t.samples = append(t.samples, &fmp4.Sample{
				Duration: probe.SamplesPerAACFrame,
				Payload:  append([]byte(nil), fr.Raw()...),
			})
		}
		t.nextDTS = dts + int64(len(frames))*probe.SamplesPerAACFrame
	}

	if t.timeBase.Seconds(t.nextDTS-t.baseTime) >= w.fragmentDur {
		return w.flush()
	}
	return nil
}

// avccPayload converts an Annex-B access unit into length-prefixed NAL
// units.
func avccPayload(au []byte) ([]byte, error) {
	units := probe.ParseAnnexB(au)
	if len(units) == 0 {
		return append([]byte(nil), au...), nil
	}
	nalus := make([][]byte, 0, len(units))
	for _, u := range units {
		nalus = append(nalus, u.Data)
	}
	return h264.AVCC(nalus).Marshal()
}

// flush writes the buffered samples of every track as one part.
func (w *mp4Writer) flush() error {
	part := &fmp4.Part{SequenceNumber: w.seq}
	for _, t := range w.tracks {
		if len(t.samples) == 0 {
			continue
		}
		part.Tracks = append(part.Tracks, &fmp4.PartTrack{
			ID:       t.id,
			BaseTime: uint64(max(t.baseTime, 0)),
			Samples:  t.samples,
		})
		t.samples = nil
	}
	if len(part.Tracks) == 0 {
		return nil
	}
	var buf seekablebuffer.Buffer
	if err := part.Marshal(&buf); err != nil {
		return fmt.Errorf("%w: mp4: fragment: %w", media.ErrFormat, err)
	}
	if _, err := w.bw.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: mp4: %w", media.ErrResource, err)
	}
	w.seq++
	return nil
}

func (w *mp4Writer) WriteTrailer() error {
	if err := w.flush(); err != nil {
		return err
	}
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("%w: mp4: %w", media.ErrResource, err)
	}
	return nil
}

func (w *mp4Writer) Close() error {
	return w.f.Close()
}
