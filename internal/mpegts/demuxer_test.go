package mpegts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

var avProgram = []PMTElementaryStream{
	{ElementaryPID: 0x0100, StreamType: StreamTypeH264},
	{ElementaryPID: 0x0101, StreamType: StreamTypeAAC},
}

func drain(t *testing.T, dmx *Demuxer) []*DemuxerData {
	t.Helper()
	var out []*DemuxerData
	for {
		data, err := dmx.NextData()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, data)
	}
}

func pesOn(all []*DemuxerData, pid uint16) []*PESData {
	var out []*PESData
	for _, d := range all {
		if d.PES != nil && d.PID == pid {
			out = append(out, d.PES)
		}
	}
	return out
}

func TestDemuxerProgram(t *testing.T) {
	t.Parallel()
	b := newTSBuilder()
	b.program(avProgram...)
	idr := append([]byte{0, 0, 0, 1, 0x65}, bytes.Repeat([]byte{0x88}, 300)...)
	b.unit(0x0100, pesPacket(0xE0, 93003, 90000, idr))
	b.unit(0x0101, pesPacket(0xC0, 90000, -1, []byte{0xFF, 0xF1, 0x50}))
	b.unit(0x0100, pesPacket(0xE0, 96006, 93003, []byte{0, 0, 0, 1, 0x41}))
	b.unit(0x0101, pesPacket(0xC0, 91920, -1, []byte{0xFF, 0xF1, 0x51}))

	all := drain(t, NewDemuxer(context.Background(), b))
	if len(all) != 6 {
		t.Fatalf("units = %d, want 6", len(all))
	}
	if all[0].PAT == nil || all[0].PID != pidPAT {
		t.Errorf("first unit = %+v, want PAT", all[0])
	}
	if all[1].PMT == nil || all[1].PID != 0x1000 {
		t.Errorf("second unit = %+v, want PMT", all[1])
	}

	video := pesOn(all, 0x0100)
	if len(video) != 2 {
		t.Fatalf("video PES = %d, want 2", len(video))
	}
	if !bytes.Equal(video[0].Data, idr) {
		t.Errorf("video data spanning packets = %d bytes, want %d", len(video[0].Data), len(idr))
	}
	if pts, dts, _ := video[1].Timestamps(); pts != 96006 || dts != 93003 {
		t.Errorf("second video = %d/%d, want 96006/93003", pts, dts)
	}
	audio := pesOn(all, 0x0101)
	if len(audio) != 2 || audio[0].PTS != 90000 || audio[1].PTS != 91920 {
		t.Errorf("audio PES = %+v", audio)
	}
}

func TestDemuxerUnwrapsTimestamps(t *testing.T) {
	t.Parallel()
	b := newTSBuilder()
	b.program(avProgram...)
	for i := int64(0); i < 4; i++ {
		dts := ClockMask - 3000 + i*3003
		b.unit(0x0100, pesPacket(0xE0, (dts+6006)&ClockMask, dts&ClockMask, []byte{0, 0, 0, 1, 0x41}))
		b.unit(0x0101, pesPacket(0xC0, (ClockMask-1000+i*1920)&ClockMask, -1, []byte{0xFF}))
	}

	all := drain(t, NewDemuxer(context.Background(), b))
	video := pesOn(all, 0x0100)
	if len(video) != 4 {
		t.Fatalf("video PES = %d, want 4", len(video))
	}
	for i, v := range video {
		dts := ClockMask - 3000 + int64(i)*3003
		if v.DTS != dts || v.PTS != dts+6006 {
			t.Errorf("video %d = %d/%d, want %d/%d", i, v.PTS, v.DTS, dts+6006, dts)
		}
	}
	audio := pesOn(all, 0x0101)
	for i, a := range audio {
		if want := ClockMask - 1000 + int64(i)*1920; a.PTS != want {
			t.Errorf("audio %d PTS = %d, want %d", i, a.PTS, want)
		}
	}
}

func TestDemuxerSkipsCorruptUnit(t *testing.T) {
	t.Parallel()
	b := newTSBuilder()
	b.unit(pidPAT, psiUnit(patSection(1, PATProgram{ProgramNumber: 1, ProgramMapID: 0x1000})))
	b.Write(make([]byte, tsPacketSize))
	b.unit(pidPAT, psiUnit(patSection(1, PATProgram{ProgramNumber: 1, ProgramMapID: 0x1000})))

	var pats int
	for _, d := range drain(t, NewDemuxer(context.Background(), b)) {
		if d.PAT != nil {
			pats++
		}
	}
	if pats != 2 {
		t.Errorf("PATs = %d, want 2", pats)
	}
}

func TestDemuxerEOFAndCancel(t *testing.T) {
	t.Parallel()
	if _, err := NewDemuxer(context.Background(), bytes.NewReader(nil)).NextData(); !errors.Is(err, io.EOF) {
		t.Errorf("empty input: err = %v, want io.EOF", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewDemuxer(ctx, bytes.NewReader(make([]byte, 1000))).NextData(); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: err = %v, want context.Canceled", err)
	}
}

func TestDemuxerStreamsInPMTOrder(t *testing.T) {
	t.Parallel()
	b := newTSBuilder()
	b.program(avProgram...)

	dmx := NewDemuxer(context.Background(), b)
	drain(t, dmx)

	if got := len(dmx.Streams()); got != 2 {
		t.Fatalf("streams = %d, want 2", got)
	}
	if got := dmx.StreamIndex(0x0101); got != 1 {
		t.Errorf("StreamIndex(0x101) = %d, want 1", got)
	}
	if got := dmx.StreamIndex(0x1FFF); got != -1 {
		t.Errorf("StreamIndex(0x1FFF) = %d, want -1", got)
	}
	if dmx.Pos() != 2*tsPacketSize {
		t.Errorf("Pos = %d, want %d", dmx.Pos(), 2*tsPacketSize)
	}
}

func TestDemuxerReset(t *testing.T) {
	t.Parallel()
	b := newTSBuilder()
	b.program(avProgram...)
	b.unit(0x0101, pesPacket(0xC0, ClockMask-10, -1, []byte{1}))
	b.unit(0x0101, pesPacket(0xC0, 1910, -1, []byte{2}))
	raw := b.Bytes()

	dmx := NewDemuxer(context.Background(), bytes.NewReader(raw))
	drain(t, dmx)

	// Only the second half: the wrapped timestamp is read back as is.
	dmx.Reset(bytes.NewReader(raw[len(raw)-tsPacketSize:]))
	if dmx.Pos() != 0 {
		t.Errorf("Pos after reset = %d, want 0", dmx.Pos())
	}
	if len(dmx.Streams()) != 2 {
		t.Errorf("streams after reset = %d, want 2", len(dmx.Streams()))
	}
	if audio := pesOn(drain(t, dmx), 0x0101); len(audio) != 1 || audio[0].PTS != 1910 {
		t.Errorf("audio from second half = %+v, want PTS 1910", audio)
	}

	dmx.Reset(bytes.NewReader(raw))
	audio := pesOn(drain(t, dmx), 0x0101)
	if len(audio) != 2 || audio[0].PTS != ClockMask-10 || audio[1].PTS != ClockMask+1911 {
		t.Errorf("audio after reset = %+v", audio)
	}
}

func TestDemuxerUnitSizes(t *testing.T) {
	t.Parallel()
	b := newTSBuilder()
	b.program(avProgram...)
	b.unit(0x0101, pesPacket(0xC0, 4500, -1, []byte{0xAA}))
	raw := b.Bytes()

	for _, size := range []int{m2tsUnitSize, fecUnitSize} {
		var units bytes.Buffer
		for off := 0; off < len(raw); off += tsPacketSize {
			if size == m2tsUnitSize {
				units.Write([]byte{0x40, 0, 0, 0})
			}
			units.Write(raw[off : off+tsPacketSize])
			if size == fecUnitSize {
				units.Write(make([]byte, 16))
			}
		}
		dmx := NewDemuxer(context.Background(), &units, DemuxerOptPacketSize(size))
		audio := pesOn(drain(t, dmx), 0x0101)
		if len(dmx.Streams()) != 2 || len(audio) != 1 || audio[0].PTS != 4500 {
			t.Errorf("%d-byte units: %d streams, audio %+v", size, len(dmx.Streams()), audio)
		}
	}
}

func TestCodecName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		streamType uint8
		codec      string
		kind       string
	}{
		{StreamTypeH264, "h264", "video"},
		{StreamTypeH265, "hevc", "video"},
		{StreamTypeAAC, "aac", "audio"},
		{StreamTypeMPEG1Audio, "mp3", "audio"},
		{StreamTypePrivateData, "data", "data"},
		{0x86, "data", "data"},
	}
	for _, tt := range tests {
		codec, kind := CodecName(tt.streamType)
		if codec != tt.codec || kind != tt.kind {
			t.Errorf("CodecName(0x%02X) = %s, %s; want %s, %s", tt.streamType, codec, kind, tt.codec, tt.kind)
		}
		if tt.codec != "data" && StreamTypeForCodec(codec) != tt.streamType {
			t.Errorf("StreamTypeForCodec(%s) = 0x%02X, want 0x%02X", codec, StreamTypeForCodec(codec), tt.streamType)
		}
	}
	if StreamTypeForCodec("pcm_s16le") != StreamTypePrivateData {
		t.Error("unknown codecs should map to private data")
	}
}
