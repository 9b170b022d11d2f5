package container

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/asticode/go-astits"

	"github.com/zsiec/avtranscode/internal/media"
	"github.com/zsiec/avtranscode/internal/mpegts"
)

const tsFirstPID = 0x100

type tsOutStream struct {
	pid        uint16
	streamID   uint8
	streamType uint8
	video      bool
}

// tsWriter muxes streams into an MPEG transport stream. The muxer itself
// is created by WriteHeader, so options addressing it are deferred until
// then.
type tsWriter struct {
	ctx        context.Context
	f          *os.File
	bw         *bufio.Writer
	mx         *astits.Muxer
	streams    []tsOutStream
	kinds      map[string]int
	retransmit int
	pcrPID     uint16
}

func newTSWriter(ctx context.Context, f *os.File, _ string) (Writer, error) {
	return &tsWriter{
		ctx:        ctx,
		f:          f,
		bw:         bufio.NewWriterSize(f, 64*1024),
		kinds:      make(map[string]int),
		retransmit: 40,
	}, nil
}

func (w *tsWriter) FormatName() string { return "mpegts" }

func (w *tsWriter) AddStream(params media.CodecParams) (media.Rational, error) {
	if w.mx != nil {
		return media.Rational{}, fmt.Errorf("%w: mpegts: stream added after header", media.ErrFormat)
	}
	kind := params.Type.String()
	w.streams = append(w.streams, tsOutStream{
		pid:        uint16(tsFirstPID + len(w.streams)),
		streamID:   mpegts.PESStreamID(kind, w.kinds[kind]),
		streamType: mpegts.StreamTypeForCodec(params.Codec),
		video:      params.Type == media.MediaTypeVideo,
	})
	w.kinds[kind]++
	return media.TimeBaseMPEGTS, nil
}

// SetOption supports tables_retransmit_period (packets between PAT/PMT
// repeats, before the header only) and pcr_pid (stream index or PID
// carrying the PCR, once the muxer exists).
func (w *tsWriter) SetOption(key, value string) error {
	switch key {
	case "tables_retransmit_period":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 || w.mx != nil {
			return unknownOption(key, value)
		}
		w.retransmit = n
		return nil
	case "pcr_pid":
		if w.mx == nil {
			return deferredOption(key, value)
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return unknownOption(key, value)
		}
		pid := uint16(n)
		if n < len(w.streams) {
			pid = w.streams[n].pid
		}
		w.pcrPID = pid
		w.mx.SetPCRPID(pid)
		return nil
	}
	return unknownOption(key, value)
}

func (w *tsWriter) SetMetadata(string, string) bool { return false }

func (w *tsWriter) WriteHeader() error {
	if len(w.streams) == 0 {
		return fmt.Errorf("%w: mpegts: no streams", media.ErrFormat)
	}
	w.mx = astits.NewMuxer(w.ctx, w.bw, astits.MuxerOptTablesRetransmitPeriod(w.retransmit))
	w.pcrPID = w.streams[0].pid
	for _, s := range w.streams {
		if s.video {
			w.pcrPID = s.pid
			break
		}
	}
	for i, s := range w.streams {
		err := w.mx.AddElementaryStream(astits.PMTElementaryStream{
			ElementaryPID: s.pid,
			StreamType:    astits.StreamType(s.streamType),
		})
		if err != nil {
			return fmt.Errorf("%w: mpegts: adding stream %d: %w", media.ErrFormat, i, err)
		}
	}
	w.mx.SetPCRPID(w.pcrPID)
	return nil
}

func (w *tsWriter) WritePacket(pkt *media.Packet) error {
	if w.mx == nil {
		return fmt.Errorf("%w: mpegts: header not written", media.ErrFormat)
	}
	if pkt.StreamIndex < 0 || pkt.StreamIndex >= len(w.streams) {
		return fmt.Errorf("%w: mpegts: no stream %d", media.ErrFormat, pkt.StreamIndex)
	}
	s := w.streams[pkt.StreamIndex]

	oh := &astits.PESOptionalHeader{MarkerBits: 2}
	if pkt.PTS != media.NoPTS {
		oh.PTSDTSIndicator = astits.PTSDTSIndicatorOnlyPTS
		oh.PTS = &astits.ClockReference{Base: pkt.PTS & mpegts.ClockMask}
		if s.video && pkt.DTS != media.NoPTS && pkt.DTS != pkt.PTS {
			oh.PTSDTSIndicator = astits.PTSDTSIndicatorBothPresent
			oh.DTS = &astits.ClockReference{Base: pkt.DTS & mpegts.ClockMask}
		}
	}

	af := &astits.PacketAdaptationField{RandomAccessIndicator: pkt.Keyframe}
	if s.pid == w.pcrPID && pkt.PTS != media.NoPTS {
		pcr := pkt.DTS
		if pcr == media.NoPTS {
			pcr = pkt.PTS
		}
		af.HasPCR = true
		af.PCR = &astits.ClockReference{Base: pcr & mpegts.ClockMask}
	}

	_, err := w.mx.WriteData(&astits.MuxerData{
		PID:             s.pid,
		AdaptationField: af,
		PES: &astits.PESData{
			Header: &astits.PESHeader{
				StreamID:       s.streamID,
				OptionalHeader: oh,
			},
			Data: pkt.Data,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: mpegts: writing packet: %w", media.ErrResource, err)
	}
	return nil
}

func (w *tsWriter) WriteTrailer() error {
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("%w: mpegts: %w", media.ErrResource, err)
	}
	return nil
}

func (w *tsWriter) Close() error {
	return w.f.Close()
}
