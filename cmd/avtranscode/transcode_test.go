package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/avtranscode/internal/config"
	"github.com/zsiec/avtranscode/internal/input"
	"github.com/zsiec/avtranscode/internal/job"
	"github.com/zsiec/avtranscode/internal/profile"
)

func TestTranscodeOptionsJob(t *testing.T) {
	t.Parallel()
	opts := transcodeOptions{
		output:     "out.wav",
		streams:    []string{"in.wav#0=wave16b48kmono@1"},
		generators: []string{"video=rawvideo_pal"},
		method:     "longest",
		metadata:   []string{"title=Test=1"},
	}
	j, err := opts.job()
	require.NoError(t, err)
	require.Len(t, j.Streams, 1)
	assert.Equal(t, "wave16b48kmono", j.Streams[0].Profile)
	assert.Equal(t, 1.0, j.Streams[0].Offset)
	require.Len(t, j.Generators, 1)
	assert.Equal(t, "video", j.Generators[0].Type)
	assert.Equal(t, "Test=1", j.Metadata["title"])

	_, err = (&transcodeOptions{output: "out.wav"}).job()
	require.Error(t, err)

	_, err = (&transcodeOptions{output: "out.wav", streams: []string{"in.wav#0"}, metadata: []string{"novalue"}}).job()
	require.Error(t, err)
}

func TestRunJobGeneratesAndRewraps(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	loader := profile.NewLoader(nil)
	mgr := job.NewManager(nil)
	ctx := context.Background()

	silence := filepath.Join(dir, "silence.wav")
	stat, err := runJob(ctx, config.Job{
		ID:         "gen",
		Output:     silence,
		Method:     "duration",
		Duration:   0.2,
		Metadata:   map[string]string{"title": "silence"},
		Generators: []config.Generator{{Type: "audio", Profile: "wave16b48kmono"}},
	}, loader, mgr, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, stat.Duration, 0.041)

	in, err := input.Open(ctx, silence, nil)
	require.NoError(t, err)
	props := in.Properties()
	require.NoError(t, in.Close())
	require.Len(t, props.Streams, 1)
	assert.Equal(t, 1, props.Streams[0].Channels)
	assert.Equal(t, "pcm_s16le", props.Streams[0].Codec)
	assert.Equal(t, "silence", props.Metadata["title"])

	copied := filepath.Join(dir, "copy.wav")
	stat, err = runJob(ctx, config.Job{
		Output:  copied,
		Streams: []config.Stream{{File: silence, Index: 0}},
	}, loader, mgr, nil)
	require.NoError(t, err)
	assert.InDelta(t, props.Duration, stat.Duration, 1e-6)

	snaps := mgr.Snapshots()
	require.Len(t, snaps, 2)
	for _, s := range snaps {
		assert.Equal(t, job.StateDone, s.State)
	}
	_, ok := mgr.Get("gen")
	assert.True(t, ok)
}

func TestRunJobUnknownProfile(t *testing.T) {
	t.Parallel()
	_, err := runJob(context.Background(), config.Job{
		Output:     filepath.Join(t.TempDir(), "out.wav"),
		Generators: []config.Generator{{Type: "audio", Profile: "nope"}},
	}, profile.NewLoader(nil), job.NewManager(nil), nil)
	require.Error(t, err)
}
