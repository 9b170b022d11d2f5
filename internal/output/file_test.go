package output

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/avtranscode/internal/container/containertest"
	"github.com/zsiec/avtranscode/internal/media"
	"github.com/zsiec/avtranscode/internal/profile"
)

var tenth = media.Rational{Num: 1, Den: 10}

func newTestFile(t *testing.T, streams int) (*File, *containertest.Writer) {
	t.Helper()
	w := containertest.NewWriter("fake")
	f := NewFile("out.fake", w, nil)
	for i := 0; i < streams; i++ {
		_, err := f.AddAudioStream(media.CodecParams{Codec: "pcm_s16le", TimeBase: tenth})
		require.NoError(t, err)
	}
	require.NoError(t, f.BeginWrap())
	return f, w
}

func packet(pts, dur int64) *media.Packet {
	p := media.NewPacket()
	p.Data = []byte{1, 2, 3}
	p.PTS = pts
	p.DTS = pts
	p.Duration = dur
	p.TimeBase = tenth
	return p
}

func TestWrapEmptyPacket(t *testing.T) {
	t.Parallel()
	f, w := newTestFile(t, 1)
	st, err := f.Wrap(media.NewPacket(), 0)
	require.NoError(t, err)
	assert.Equal(t, WrappingSuccess, st)
	assert.Empty(t, w.Packets)
	assert.Zero(t, f.Clock())
}

func TestWrapInterleavingClock(t *testing.T) {
	t.Parallel()
	f, w := newTestFile(t, 2)

	st, err := f.Wrap(packet(0, 10), 0) // stream 0 reaches 1s
	require.NoError(t, err)
	assert.Equal(t, WrappingSuccess, st)
	assert.InDelta(t, 1.0, f.Clock(), 1e-9)

	st, err = f.Wrap(packet(0, 4), 1) // stream 1 at 0.4s is behind
	require.NoError(t, err)
	assert.Equal(t, WrappingWaitingForData, st)
	assert.InDelta(t, 1.0, f.Clock(), 1e-9)

	st, err = f.Wrap(packet(4, 6), 1) // catches up exactly
	require.NoError(t, err)
	assert.Equal(t, WrappingSuccess, st)

	st, err = f.Wrap(packet(10, 5), 1) // now ahead
	require.NoError(t, err)
	assert.Equal(t, WrappingSuccess, st)
	assert.InDelta(t, 1.5, f.Clock(), 1e-9)

	assert.Len(t, w.Packets, 4, "every packet is written, whatever the status")
	assert.Equal(t, 3, f.streams[1].NbFrames())
	assert.InDelta(t, 1.0, f.Duration(), 1e-9)
}

func TestClockNeverDecreases(t *testing.T) {
	t.Parallel()
	f, _ := newTestFile(t, 3)
	ends := make([]int64, 3)
	steps := []struct{ stream, dur int }{
		{0, 3}, {1, 1}, {1, 1}, {2, 7}, {0, 1}, {1, 5}, {0, 4}, {2, 1}, {1, 2}, {0, 2}, {2, 3},
	}
	prev := f.Clock()
	for _, s := range steps {
		st, err := f.Wrap(packet(ends[s.stream], int64(s.dur)), s.stream)
		require.NoError(t, err)
		ends[s.stream] += int64(s.dur)
		assert.GreaterOrEqual(t, f.Clock(), prev)
		if st == WrappingWaitingForData {
			assert.Less(t, tenth.Seconds(ends[s.stream]), f.Clock())
		}
		prev = f.Clock()
	}
}

func TestWrapRescalesToStreamTimeBase(t *testing.T) {
	t.Parallel()
	w := containertest.NewWriter("fake")
	f := NewFile("out.fake", w, nil)
	_, err := f.AddVideoStream(media.CodecParams{Codec: "rawvideo", TimeBase: media.TimeBaseMilli})
	require.NoError(t, err)
	require.NoError(t, f.BeginWrap())

	p := packet(3, 1) // 0.3s + 0.1s in tenths
	_, err = f.Wrap(p, 0)
	require.NoError(t, err)
	require.Len(t, w.Packets, 1)
	got := w.Packets[0]
	assert.Equal(t, int64(300), got.PTS)
	assert.Equal(t, int64(100), got.Duration)
	assert.Equal(t, media.TimeBaseMilli, got.TimeBase)
	assert.Equal(t, int64(3), p.PTS, "caller's packet is left untouched")
	assert.Equal(t, media.MediaTypeVideo, w.Params[0].Type)
}

func TestWrapErrors(t *testing.T) {
	t.Parallel()
	w := containertest.NewWriter("fake")
	f := NewFile("out.fake", w, nil)
	_, err := f.AddAudioStream(media.CodecParams{Codec: "pcm_s16le", TimeBase: tenth})
	require.NoError(t, err)

	st, err := f.Wrap(packet(0, 1), 0)
	assert.Equal(t, WrappingError, st)
	require.ErrorIs(t, err, media.ErrConfiguration, "not begun")

	require.NoError(t, f.BeginWrap())
	st, err = f.Wrap(packet(0, 1), 3)
	assert.Equal(t, WrappingError, st)
	require.ErrorIs(t, err, media.ErrFormat)

	w.WriteErr = errors.New("disk full")
	st, err = f.Wrap(packet(0, 1), 0)
	assert.Equal(t, WrappingError, st)
	require.ErrorIs(t, err, media.ErrResource)

	_, err = f.AddDataStream(media.CodecParams{})
	require.ErrorIs(t, err, media.ErrConfiguration)
}

func formatProfile(format string, opts map[string]string) profile.Profile {
	p := profile.Profile{
		profile.KeyName:     "fmt",
		profile.KeyLongName: "Format",
		profile.KeyType:     profile.TypeFormat,
		profile.KeyFormat:   format,
	}
	for k, v := range opts {
		p[k] = v
	}
	return p
}

func TestSetupWrappingDefersOptions(t *testing.T) {
	t.Parallel()
	w := containertest.NewWriter("fake")
	w.Accept["muxrate"] = true
	w.Deferred["pcr_pid"] = true
	f := NewFile("out.fake", w, nil)

	require.NoError(t, f.SetupWrapping(formatProfile("fake", map[string]string{
		"muxrate": "1000",
		"pcr_pid": "1",
		"bogus":   "x",
	})))
	assert.Equal(t, map[string]string{"muxrate": "1000"}, w.Options)

	_, err := f.AddAudioStream(media.CodecParams{Codec: "pcm_s16le", TimeBase: tenth})
	require.NoError(t, err)
	require.NoError(t, f.BeginWrap())
	assert.Equal(t, map[string]string{"muxrate": "1000", "pcr_pid": "1"}, w.Options)
	require.NoError(t, f.EndWrap())
	assert.True(t, w.TrailerWritten)
	assert.True(t, w.Closed)
}

func TestSetupWrappingRejectsFormat(t *testing.T) {
	t.Parallel()
	f := NewFile("out.fake", containertest.NewWriter("fake"), nil)
	require.ErrorIs(t, f.SetupWrapping(formatProfile("mp4", nil)), media.ErrConfiguration)
	require.ErrorIs(t, f.SetupWrapping(profile.Profile{profile.KeyName: "x"}), media.ErrConfiguration)
}

func TestAddMetadata(t *testing.T) {
	t.Parallel()
	w := containertest.NewWriter("fake")
	f := NewFile("out.fake", w, nil)
	f.AddMetadata("title", "hello")
	assert.Equal(t, "hello", w.Metadata["title"])
}
