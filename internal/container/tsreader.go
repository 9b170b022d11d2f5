package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/zsiec/avtranscode/internal/media"
	"github.com/zsiec/avtranscode/internal/mpegts"
	"github.com/zsiec/avtranscode/internal/probe"
)

// tsStream is what the analysis pass learned about one elementary stream.
type tsStream struct {
	pid      uint16
	params   media.CodecParams
	firstPTS int64
	endPTS   int64
	packets  int
	bytes    int64
	frameDur int64 // 90 kHz ticks per video frame, 0 if unknown
}

type tsReader struct {
	ctx     context.Context
	f       *os.File
	dmx     *mpegts.Demuxer
	size    int64
	streams []*tsStream
	props   []probe.StreamProperties
	start   int64
	end     int64

	// seek state
	seekTo   int64
	needsKey []bool
}

func newTSReader(ctx context.Context, f *os.File) (Reader, error) {
	pktSize, err := detectTSPacketSize(f)
	if err != nil {
		return nil, err
	}
	r := &tsReader{
		ctx:    ctx,
		f:      f,
		size:   fileSize(f),
		dmx:    mpegts.NewDemuxer(ctx, f, mpegts.DemuxerOptPacketSize(pktSize)),
		seekTo: media.NoPTS,
	}
	if err := r.analyze(); err != nil {
		return nil, err
	}
	if err := r.rewind(); err != nil {
		return nil, err
	}
	return r, nil
}

// detectTSPacketSize looks for the sync byte at the start of two
// consecutive units of each candidate size.
func detectTSPacketSize(f *os.File) (int, error) {
	head := make([]byte, 2*204+4)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, fmt.Errorf("%w: reading transport stream: %w", media.ErrFormat, err)
	}
	head = head[:n]
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: %w", media.ErrResource, err)
	}
	synced := func(size, prefix int) bool {
		for i := 0; i < 2; i++ {
			p := i*size + prefix
			if p >= len(head) {
				return i > 0
			}
			if head[p] != 0x47 {
				return false
			}
		}
		return true
	}
	switch {
	case synced(188, 0):
		return 188, nil
	case synced(192, 4):
		return 192, nil
	case synced(204, 0):
		return 204, nil
	}
	return 0, fmt.Errorf("%w: no MPEG-TS sync byte found", media.ErrFormat)
}

func (r *tsReader) rewind() error {
	if _, err := r.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: rewinding: %w", media.ErrResource, err)
	}
	r.dmx.Reset(r.f)
	return nil
}

// analyze walks the whole file once to learn stream parameters, start
// time and duration.
func (r *tsReader) analyze() error {
	for {
		d, err := r.dmx.NextData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: analysing transport stream: %w", media.ErrFormat, err)
		}
		r.syncStreams()
		if d.PES == nil {
			continue
		}
		idx := r.dmx.StreamIndex(d.PID)
		if idx < 0 {
			continue
		}
		r.analyzePES(r.streams[idx], d.PES)
	}
	r.syncStreams()
	if len(r.streams) == 0 {
		return fmt.Errorf("%w: transport stream has no program", media.ErrFormat)
	}

	r.start, r.end = media.NoPTS, media.NoPTS
	for _, s := range r.streams {
		if s.firstPTS == media.NoPTS {
			continue
		}
		if r.start == media.NoPTS || s.firstPTS < r.start {
			r.start = s.firstPTS
		}
		if r.end == media.NoPTS || s.endPTS > r.end {
			r.end = s.endPTS
		}
	}
	if r.start == media.NoPTS {
		r.start, r.end = 0, 0
	}

	r.props = make([]probe.StreamProperties, len(r.streams))
	for i, s := range r.streams {
		sp := probe.NewStreamProperties(i, s.params)
		sp.NbPackets = s.packets
		if s.firstPTS != media.NoPTS {
			sp.StartTime = media.TimeBaseMPEGTS.Seconds(s.firstPTS)
			sp.Duration = media.TimeBaseMPEGTS.Seconds(s.endPTS - s.firstPTS)
		}
		if sp.Duration > 0 {
			sp.BitRate = int64(float64(s.bytes*8) / sp.Duration)
		}
		r.props[i] = sp
	}
	return nil
}

// syncStreams picks up elementary streams announced since the last call.
func (r *tsReader) syncStreams() {
	for _, es := range r.dmx.Streams()[len(r.streams):] {
		codec, kind := mpegts.CodecName(es.StreamType)
		p := media.CodecParams{Codec: codec, TimeBase: media.TimeBaseMPEGTS}
		switch kind {
		case "video":
			p.Type = media.MediaTypeVideo
		case "audio":
			p.Type = media.MediaTypeAudio
		default:
			p.Type = media.MediaTypeData
		}
		r.streams = append(r.streams, &tsStream{
			pid:      es.ElementaryPID,
			params:   p,
			firstPTS: media.NoPTS,
			endPTS:   media.NoPTS,
		})
	}
}

func (r *tsReader) analyzePES(s *tsStream, pes *mpegts.PESData) {
	s.packets++
	s.bytes += int64(len(pes.Data))

	switch s.params.Codec {
	case "h264":
		if s.params.Video.Width == 0 {
			if sps, pps := probe.ParameterSets(pes.Data); sps != nil {
				if info, err := probe.ParseSPS(sps); err == nil {
					s.params.Video.Width = info.Width
					s.params.Video.Height = info.Height
					s.params.Video.FPS = info.FPS
					if info.FPS > 0 {
						s.frameDur = int64(math.Round(90000 / info.FPS))
					}
					s.params.Extradata = annexB(sps, pps)
				}
			}
		}
	case "hevc":
		if s.params.Video.Width == 0 {
			if vps, sps, pps := probe.HEVCParameterSets(pes.Data); sps != nil {
				if info, err := probe.ParseHEVCSPS(sps); err == nil {
					s.params.Video.Width = info.Width
					s.params.Video.Height = info.Height
					s.params.Extradata = annexB(vps, sps, pps)
				}
			}
		}
	case "aac":
		if s.params.Audio.SampleRate == 0 {
			if frames, err := probe.ParseADTS(pes.Data); err == nil && len(frames) > 0 {
				s.params.Audio.SampleRate = frames[0].SampleRate
				s.params.Audio.Channels = frames[0].Channels
				s.params.Audio.FPS = float64(frames[0].SampleRate) / probe.SamplesPerAACFrame
			}
		}
	}

	pts, _, ok := pes.Timestamps()
	if !ok {
		return
	}
	if s.firstPTS == media.NoPTS || pts < s.firstPTS {
		s.firstPTS = pts
	}
	if end := pts + r.packetDuration(s, pes.Data); s.endPTS == media.NoPTS || end > s.endPTS {
		s.endPTS = end
	}
}

// packetDuration returns the duration of one PES payload in 90 kHz ticks.
func (r *tsReader) packetDuration(s *tsStream, data []byte) int64 {
	switch s.params.Codec {
	case "h264", "hevc":
		return s.frameDur
	case "aac":
		d, err := probe.ADTSDuration(data)
		if err != nil {
			return 0
		}
		return int64(math.Round(d * 90000))
	}
	return 0
}

func annexB(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		if n == nil {
			continue
		}
		out = append(out, 0, 0, 0, 1)
		out = append(out, n...)
	}
	return out
}

func (r *tsReader) FormatName() string                { return "mpegts" }
func (r *tsReader) Streams() []probe.StreamProperties { return r.props }
func (r *tsReader) Size() int64                       { return r.size }
func (r *tsReader) Metadata() map[string]string       { return nil }

func (r *tsReader) StartTime() float64 {
	return media.TimeBaseMPEGTS.Seconds(r.start)
}

func (r *tsReader) Duration() float64 {
	return media.TimeBaseMPEGTS.Seconds(r.end - r.start)
}

// SetOption rejects every option; the demuxer has none.
func (r *tsReader) SetOption(key, value string) error {
	return unknownOption(key, value)
}

func (r *tsReader) ReadPacket() (*media.Packet, error) {
	for {
		d, err := r.dmx.NextData()
		if err != nil {
			return nil, err
		}
		if d.PES == nil {
			continue
		}
		idx := r.dmx.StreamIndex(d.PID)
		if idx < 0 || idx >= len(r.streams) {
			continue
		}
		s := r.streams[idx]

		pkt := media.NewPacket()
		pkt.Data = d.PES.Data
		pkt.StreamIndex = idx
		pkt.TimeBase = media.TimeBaseMPEGTS
		pkt.Duration = r.packetDuration(s, d.PES.Data)
		pkt.Keyframe = true
		switch s.params.Codec {
		case "h264":
			pkt.Keyframe = probe.ContainsKeyframe(d.PES.Data)
		case "hevc":
			pkt.Keyframe = probe.ContainsHEVCKeyframe(d.PES.Data)
		}
		if pts, dts, ok := d.PES.Timestamps(); ok {
			pkt.PTS, pkt.DTS = pts, dts
		}

		if r.seekTo != media.NoPTS && r.dropForSeek(idx, pkt) {
			continue
		}
		return pkt, nil
	}
}

// dropForSeek reports whether pkt lies before the seek target. Video
// streams also wait for a keyframe at or after the target.
func (r *tsReader) dropForSeek(idx int, pkt *media.Packet) bool {
	if pkt.PTS != media.NoPTS && pkt.PTS < r.seekTo {
		return true
	}
	if r.needsKey[idx] {
		if !pkt.Keyframe {
			return true
		}
		r.needsKey[idx] = false
	}
	return false
}

func (r *tsReader) Seek(seconds float64) error {
	if err := r.rewind(); err != nil {
		return err
	}
	r.seekTo = media.TimeBaseMPEGTS.FromSeconds(seconds)
	if r.seekTo <= r.start {
		r.seekTo = media.NoPTS
		return nil
	}
	r.needsKey = make([]bool, len(r.streams))
	for i, s := range r.streams {
		r.needsKey[i] = s.params.Type == media.MediaTypeVideo
	}
	return nil
}

func (r *tsReader) Close() error {
	return r.f.Close()
}
