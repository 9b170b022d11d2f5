package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/avtranscode/internal/media"
)

func TestParseStreamSpec(t *testing.T) {
	t.Parallel()
	tests := []struct {
		spec    string
		file    string
		index   int
		channel int
		profile string
		offset  float64
	}{
		{"in.ts#1", "in.ts", 1, -1, "", 0},
		{"in.wav#0.1", "in.wav", 0, 1, "", 0},
		{"in.wav#0=wave16b48kmono", "in.wav", 0, -1, "wave16b48kmono", 0},
		{"dir#x/in.wav#2.0=wave24b48kmono@-1.5", "dir#x/in.wav", 2, 0, "wave24b48kmono", -1.5},
		{"in.ts#0@2", "in.ts", 0, -1, "", 2},
	}
	for _, tt := range tests {
		s, err := parseStreamSpec(tt.spec)
		require.NoError(t, err, tt.spec)
		assert.Equal(t, tt.file, s.File, tt.spec)
		assert.Equal(t, tt.index, s.Index, tt.spec)
		assert.Equal(t, tt.channel, s.ChannelOrAll(), tt.spec)
		assert.Equal(t, tt.profile, s.Profile, tt.spec)
		assert.InDelta(t, tt.offset, s.Offset, 1e-9, tt.spec)
	}
}

func TestParseStreamSpecErrors(t *testing.T) {
	t.Parallel()
	for _, spec := range []string{"in.ts", "#1", "in.ts#x", "in.ts#1.y", "in.ts#1=", "in.ts#1@soon", "in.ts#-1"} {
		_, err := parseStreamSpec(spec)
		require.ErrorIs(t, err, media.ErrConfiguration, spec)
	}
}

func TestParseGeneratorSpec(t *testing.T) {
	t.Parallel()
	g, err := parseGeneratorSpec("audio=wave16b48kmono")
	require.NoError(t, err)
	assert.Equal(t, "audio", g.Type)
	assert.Equal(t, "wave16b48kmono", g.Profile)

	g, err = parseGeneratorSpec("video")
	require.NoError(t, err)
	assert.Empty(t, g.Profile)

	_, err = parseGeneratorSpec("subtitles")
	require.ErrorIs(t, err, media.ErrConfiguration)
}
