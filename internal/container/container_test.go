package container

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/avtranscode/internal/media"
	"github.com/zsiec/avtranscode/internal/mpegts"
)

func TestFormatForFilename(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		want string
	}{
		{"a.ts", "mpegts"},
		{"A.M2TS", "mpegts"},
		{"b.wav", "wav"},
		{"c.mkv", "matroska"},
		{"d.webm", "webm"},
		{"e.mp4", "mp4"},
	}
	for _, tt := range tests {
		got, err := FormatForFilename(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := FormatForFilename("f.xyz")
	require.ErrorIs(t, err, media.ErrFormat)
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	require.ErrorIs(t, err, media.ErrResource)
}

func TestCreateUnknownFormat(t *testing.T) {
	t.Parallel()
	_, err := Create(context.Background(), filepath.Join(t.TempDir(), "out.wav"), "avi")
	require.ErrorIs(t, err, media.ErrFormat)
}

func stereoS16(rate int) media.CodecParams {
	return media.CodecParams{
		Type:     media.MediaTypeAudio,
		Codec:    "pcm_s16le",
		TimeBase: media.Rational{Num: 1, Den: rate},
		Audio: media.AudioFrameDesc{
			SampleRate:   rate,
			Channels:     2,
			SampleFormat: media.SampleFormatS16,
			FPS:          media.DefaultAudioFPS,
		},
	}
}

// writeWAV writes n samples of a ramp and returns the data bytes.
func writeWAV(t *testing.T, path string, rate, n int, meta map[string]string) []byte {
	t.Helper()
	w, err := Create(context.Background(), path, "")
	require.NoError(t, err)
	tb, err := w.AddStream(stereoS16(rate))
	require.NoError(t, err)
	assert.Equal(t, media.Rational{Num: 1, Den: rate}, tb)
	for k, v := range meta {
		assert.True(t, w.SetMetadata(k, v))
	}
	require.NoError(t, w.WriteHeader())

	data := make([]byte, n*4)
	for i := 0; i < n*2; i++ {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(i))
	}
	pkt := media.NewPacket()
	pkt.Data = data
	require.NoError(t, w.WritePacket(pkt))
	require.NoError(t, w.WriteTrailer())
	require.NoError(t, w.Close())
	return data
}

func TestWAVRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tone.wav")
	// 48000 / 25 = 1920 samples per packet; 5000 samples = 1920 + 1920 + 1160.
	data := writeWAV(t, path, 48000, 5000, map[string]string{"title": "Tone", "encoder": "avtranscode"})

	r, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, "wav", r.FormatName())
	require.Len(t, r.Streams(), 1)
	sp := r.Streams()[0]
	assert.Equal(t, "pcm_s16le", sp.Codec)
	assert.Equal(t, 48000, sp.SampleRate)
	assert.Equal(t, 2, sp.Channels)
	assert.Equal(t, 3, sp.NbPackets)
	assert.InDelta(t, 5000.0/48000, r.Duration(), 1e-9)
	assert.Equal(t, "Tone", r.Metadata()["title"])
	assert.Equal(t, "avtranscode", r.Metadata()["encoder"])

	var got []byte
	var sizes []int
	for {
		pkt, err := r.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, int64(len(got)/4), pkt.PTS)
		sizes = append(sizes, int(pkt.Duration))
		got = append(got, pkt.Data...)
	}
	assert.Equal(t, []int{1920, 1920, 1160}, sizes)
	assert.Equal(t, data, got)
}

func TestWAVSeek(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "seek.wav")
	data := writeWAV(t, path, 8000, 8000, nil)

	r, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Seek(0.5))
	pkt, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, int64(4000), pkt.PTS)
	assert.Equal(t, data[4000*4:4000*4+len(pkt.Data)], pkt.Data)
}

func TestWAVWriterRejects(t *testing.T) {
	t.Parallel()
	w, err := Create(context.Background(), filepath.Join(t.TempDir(), "x.wav"), "")
	require.NoError(t, err)
	defer w.Close()

	_, err = w.AddStream(media.CodecParams{Type: media.MediaTypeVideo, Codec: "rawvideo"})
	require.ErrorIs(t, err, media.ErrFormat)

	_, err = w.AddStream(stereoS16(48000))
	require.NoError(t, err)
	_, err = w.AddStream(stereoS16(48000))
	require.ErrorIs(t, err, media.ErrFormat)

	var oe *media.OptionError
	require.ErrorAs(t, w.SetOption("bogus", "1"), &oe)
	assert.Equal(t, "bogus", oe.Option)
	assert.False(t, w.SetMetadata("unknown", "x"))
}

// buildADTS builds one ADTS frame (no CRC) around payload.
func buildADTS(sampleRateIdx, channels int, payload []byte) []byte {
	frameLen := 7 + len(payload)
	header := []byte{
		0xFF,
		0xF1,
		byte(1<<6) | byte(sampleRateIdx<<2) | byte(channels>>2&0x01),
		byte(channels&0x03)<<6 | byte((frameLen>>11)&0x03),
		byte((frameLen >> 3) & 0xFF),
		byte((frameLen&0x07)<<5) | 0x1F,
		0xFC,
	}
	return append(header, payload...)
}

func TestTSRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "av.ts")
	ctx := context.Background()

	w, err := Create(ctx, path, "")
	require.NoError(t, err)
	aac := media.CodecParams{Type: media.MediaTypeAudio, Codec: "aac"}
	data := media.CodecParams{Type: media.MediaTypeData, Codec: "data"}
	tb, err := w.AddStream(aac)
	require.NoError(t, err)
	assert.Equal(t, media.TimeBaseMPEGTS, tb)
	_, err = w.AddStream(data)
	require.NoError(t, err)

	var oe *media.OptionError
	require.ErrorAs(t, w.SetOption("pcr_pid", "0"), &oe)
	require.ErrorIs(t, oe, media.ErrOptionDeferred)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.SetOption("pcr_pid", "0"))

	type sent struct {
		idx  int
		data []byte
		pts  int64
	}
	var want []sent
	for i := 0; i < 10; i++ {
		// 1024 samples at 48 kHz are 1920 ticks of 90 kHz.
		a := sent{0, buildADTS(3, 2, bytes.Repeat([]byte{byte(i)}, 300)), 90000 + int64(i)*1920}
		d := sent{1, bytes.Repeat([]byte{0xA0 + byte(i)}, 50+i), 90000 + int64(i)*1920}
		for _, s := range []sent{a, d} {
			pkt := media.NewPacket()
			pkt.StreamIndex = s.idx
			pkt.Data = s.data
			pkt.PTS, pkt.DTS = s.pts, s.pts
			pkt.Keyframe = true
			require.NoError(t, w.WritePacket(pkt))
			want = append(want, s)
		}
	}
	require.NoError(t, w.WriteTrailer())
	require.NoError(t, w.Close())

	r, err := Open(ctx, path)
	require.NoError(t, err)
	defer r.Close()

	require.Len(t, r.Streams(), 2)
	assert.Equal(t, "aac", r.Streams()[0].Codec)
	assert.Equal(t, 48000, r.Streams()[0].SampleRate)
	assert.Equal(t, 2, r.Streams()[0].Channels)
	assert.Equal(t, 10, r.Streams()[0].NbPackets)
	assert.Equal(t, media.MediaTypeData, r.Streams()[1].Params.Type)
	assert.InDelta(t, 1.0, r.StartTime(), 1e-9)
	assert.InDelta(t, 10*1920/90000.0, r.Duration(), 1e-6)

	var got []sent
	for {
		pkt, err := r.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, sent{pkt.StreamIndex, append([]byte(nil), pkt.Data...), pkt.PTS})
		if pkt.StreamIndex == 0 {
			assert.Equal(t, int64(1920), pkt.Duration)
		}
	}
	assert.Equal(t, want, got)

	require.NoError(t, r.Seek(1+5*1920/90000.0))
	pkt, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, int64(90000+5*1920), pkt.PTS)
}

func TestTSTimestampsCrossClockWrap(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "wrap.ts")
	ctx := context.Background()

	w, err := Create(ctx, path, "")
	require.NoError(t, err)
	_, err = w.AddStream(media.CodecParams{Type: media.MediaTypeAudio, Codec: "aac"})
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader())
	first := int64(mpegts.ClockMask - 3*1920)
	for i := 0; i < 8; i++ {
		pkt := media.NewPacket()
		pkt.Data = buildADTS(3, 2, bytes.Repeat([]byte{byte(i)}, 100))
		pkt.PTS = first + int64(i)*1920
		pkt.DTS = pkt.PTS
		pkt.Keyframe = true
		require.NoError(t, w.WritePacket(pkt))
	}
	require.NoError(t, w.WriteTrailer())
	require.NoError(t, w.Close())

	r, err := Open(ctx, path)
	require.NoError(t, err)
	defer r.Close()
	assert.InDelta(t, media.TimeBaseMPEGTS.Seconds(first), r.StartTime(), 1e-6)
	assert.InDelta(t, 8*1920/90000.0, r.Duration(), 1e-6)

	var pts []int64
	for {
		pkt, err := r.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		pts = append(pts, pkt.PTS)
	}
	require.Len(t, pts, 8)
	for i, p := range pts {
		assert.Equal(t, first+int64(i)*1920, p, "packet %d", i)
	}

	require.NoError(t, r.Seek(media.TimeBaseMPEGTS.Seconds(first+5*1920)))
	pkt, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, first+5*1920, pkt.PTS)
}

func TestDetectTSPacketSize(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for _, size := range []int{188, 192, 204} {
		buf := make([]byte, 3*size)
		prefix := 0
		if size == 192 {
			prefix = 4
		}
		for i := 0; i < 3; i++ {
			buf[i*size+prefix] = 0x47
		}
		path := filepath.Join(dir, "probe.ts")
		require.NoError(t, os.WriteFile(path, buf, 0o644))
		f, err := os.Open(path)
		require.NoError(t, err)
		got, err := detectTSPacketSize(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, size, got)
	}
}

func TestMKVWriter(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.mkv")
	w, err := Create(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, "matroska", w.FormatName())

	tb, err := w.AddStream(stereoS16(48000))
	require.NoError(t, err)
	assert.Equal(t, media.TimeBaseMilli, tb)
	_, err = w.AddStream(media.CodecParams{Type: media.MediaTypeData, Codec: "data"})
	require.ErrorIs(t, err, media.ErrCodec)

	require.NoError(t, w.WriteHeader())
	for i := 0; i < 3; i++ {
		pkt := media.NewPacket()
		pkt.Data = make([]byte, 1920*4)
		pkt.PTS = int64(i * 40)
		pkt.Keyframe = true
		require.NoError(t, w.WritePacket(pkt))
	}
	require.NoError(t, w.WriteTrailer())
	require.NoError(t, w.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(b), 3*1920*4)
	assert.Equal(t, []byte{0x1A, 0x45, 0xDF, 0xA3}, b[:4])
}

func TestMP4WriterAAC(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.mp4")
	w, err := Create(context.Background(), path, "")
	require.NoError(t, err)

	_, err = w.AddStream(media.CodecParams{Type: media.MediaTypeVideo, Codec: "h264"})
	require.ErrorIs(t, err, media.ErrCodec)

	tb, err := w.AddStream(media.CodecParams{
		Type:  media.MediaTypeAudio,
		Codec: "aac",
		Audio: media.AudioFrameDesc{SampleRate: 48000, Channels: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, media.Rational{Num: 1, Den: 48000}, tb)
	require.NoError(t, w.SetOption("fragment_duration", "0.5"))
	require.Error(t, w.SetOption("fragment_duration", "-1"))

	require.NoError(t, w.WriteHeader())
	for i := 0; i < 50; i++ {
		pkt := media.NewPacket()
		pkt.Data = buildADTS(3, 2, bytes.Repeat([]byte{byte(i)}, 100))
		pkt.PTS = int64(i * 1024)
		pkt.DTS = pkt.PTS
		pkt.Keyframe = true
		require.NoError(t, w.WritePacket(pkt))
	}
	require.NoError(t, w.WriteTrailer())
	require.NoError(t, w.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(b), 8)
	assert.Equal(t, "ftyp", string(b[4:8]))
	assert.Contains(t, string(b), "moof")
}
