package input

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/avtranscode/internal/container/containertest"
	"github.com/zsiec/avtranscode/internal/media"
	"github.com/zsiec/avtranscode/internal/probe"
	"github.com/zsiec/avtranscode/internal/profile"
)

var tb = media.Rational{Num: 1, Den: 10}

// interleaved builds n packets per stream, round robin over streams.
func interleaved(streams, n int) []*media.Packet {
	var pkts []*media.Packet
	for i := 0; i < n; i++ {
		for s := 0; s < streams; s++ {
			p := media.NewPacket()
			p.StreamIndex = s
			p.PTS = int64(i)
			p.Duration = 1
			p.TimeBase = tb
			p.Data = []byte{byte(s), byte(i)}
			pkts = append(pkts, p)
		}
	}
	return pkts
}

func newTestFile(streams, n int) (*File, *containertest.Reader) {
	props := make([]probe.StreamProperties, streams)
	for i := range props {
		props[i] = probe.StreamProperties{Index: i, Duration: float64(n) / 10}
	}
	r := containertest.NewReader(props, interleaved(streams, n))
	r.Length = float64(n) / 10
	return NewFile("test.fake", r, nil), r
}

func TestReadInactiveStream(t *testing.T) {
	t.Parallel()
	f, r := newTestFile(2, 3)
	s, err := f.Stream(0)
	require.NoError(t, err)
	_, err = s.ReadNextPacket()
	require.ErrorIs(t, err, media.ErrInactiveStream)
	assert.Zero(t, r.Reads)
}

func TestStreamOutOfRange(t *testing.T) {
	t.Parallel()
	f, _ := newTestFile(2, 3)
	_, err := f.Stream(2)
	require.ErrorIs(t, err, media.ErrFormat)
	require.ErrorIs(t, f.ActivateStream(-1, true), media.ErrFormat)
}

func TestCachesOtherActiveStreams(t *testing.T) {
	t.Parallel()
	f, r := newTestFile(3, 4)
	require.NoError(t, f.ActivateStream(0, true))
	require.NoError(t, f.ActivateStream(2, true))

	s2, _ := f.Stream(2)
	pkt, err := s2.ReadNextPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0}, pkt.Data)
	// 0 cached, 1 dropped, 2 returned.
	assert.Equal(t, 3, r.Reads)
	assert.Equal(t, 1, f.streams[0].CacheLen())
	assert.Equal(t, 0, f.streams[1].CacheLen())

	s0, _ := f.Stream(0)
	pkt, err = s0.ReadNextPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0}, pkt.Data)
	assert.Equal(t, 3, r.Reads, "cached packet served without a container read")
}

func TestCachePartitionInvariant(t *testing.T) {
	t.Parallel()
	f, _ := newTestFile(3, 20)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.ActivateStream(i, true))
	}
	order := []int{2, 2, 0, 1, 2, 2, 2, 0, 0, 1, 1, 1, 1, 2, 0, 2, 2, 1, 0, 0}
	next := make([]int, 3)
	for _, idx := range order {
		pkt, err := f.ReadNextPacket(idx)
		require.NoError(t, err)
		assert.Equal(t, idx, pkt.StreamIndex)
		assert.Equal(t, int64(next[idx]), pkt.PTS, "FIFO order for stream %d", idx)
		next[idx]++
		for _, s := range f.streams {
			for _, c := range s.cache {
				assert.Equal(t, s.index, c.StreamIndex)
			}
		}
	}
}

func TestEndOfStream(t *testing.T) {
	t.Parallel()
	f, _ := newTestFile(2, 2)
	require.NoError(t, f.ActivateStream(1, true))
	for i := 0; i < 2; i++ {
		_, err := f.ReadNextPacket(1)
		require.NoError(t, err)
	}
	_, err := f.ReadNextPacket(1)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadFailureEndsStream(t *testing.T) {
	t.Parallel()
	f, r := newTestFile(1, 5)
	r.FailAt = 2
	r.ReadErr = errors.New("disk on fire")
	require.NoError(t, f.ActivateStream(0, true))
	for i := 0; i < 2; i++ {
		_, err := f.ReadNextPacket(0)
		require.NoError(t, err)
	}
	_, err := f.ReadNextPacket(0)
	require.ErrorIs(t, err, io.EOF)
}

func TestSeekClearsCaches(t *testing.T) {
	t.Parallel()
	_, r := newTestFile(3, 10)
	r.Start = 2
	f := NewFile("test.fake", r, nil)
	assert.InDelta(t, 2, f.Origin(), 1e-9)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.ActivateStream(i, true))
	}
	for i := 0; i < 4; i++ {
		_, err := f.ReadNextPacket(2)
		require.NoError(t, err)
	}
	require.NotZero(t, f.streams[0].CacheLen())

	require.NoError(t, f.SeekAtTime(0.5))
	for _, s := range f.streams {
		assert.Zero(t, s.CacheLen())
	}
	assert.Equal(t, []float64{2.5}, r.Seeks)
	s, err := f.Stream(1)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, s.Origin(), 1e-9)
}

func TestSeekAtFrame(t *testing.T) {
	t.Parallel()
	props := []probe.StreamProperties{
		{Index: 0, Params: media.CodecParams{Type: media.MediaTypeAudio}},
		{Index: 1, Params: media.CodecParams{Type: media.MediaTypeVideo}, FPS: 25},
	}
	r := containertest.NewReader(props, nil)
	f := NewFile("v.fake", r, nil)
	require.NoError(t, f.SeekAtFrame(50))
	assert.Equal(t, []float64{2}, r.Seeks)

	noVideo := containertest.NewReader(props[:1], nil)
	f = NewFile("a.fake", noVideo, nil)
	require.NoError(t, f.SeekAtFrame(3))
	assert.Equal(t, []float64{3}, noVideo.Seeks)
}

func TestDeactivateDropsCache(t *testing.T) {
	t.Parallel()
	f, _ := newTestFile(2, 3)
	require.NoError(t, f.ActivateStream(0, true))
	require.NoError(t, f.ActivateStream(1, true))
	_, err := f.ReadNextPacket(1)
	require.NoError(t, err)
	require.Equal(t, 1, f.streams[0].CacheLen())
	require.NoError(t, f.ActivateStream(0, false))
	assert.Zero(t, f.streams[0].CacheLen())
}

func TestSetupUnwrapping(t *testing.T) {
	t.Parallel()
	f, r := newTestFile(1, 1)
	r.Accept["probesize"] = true
	f.SetupUnwrapping(profile.Profile{
		profile.KeyName:     "in",
		profile.KeyLongName: "In",
		profile.KeyType:     profile.TypeFormat,
		"probesize":         "1000",
		"bogus":             "x",
	})
	assert.Equal(t, map[string]string{"probesize": "1000"}, r.Options)
}
