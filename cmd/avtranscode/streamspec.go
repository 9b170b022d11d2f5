package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zsiec/avtranscode/internal/config"
	"github.com/zsiec/avtranscode/internal/media"
)

// parseStreamSpec parses FILE#INDEX[.CHANNEL][=PROFILE][@OFFSET].
func parseStreamSpec(spec string) (config.Stream, error) {
	var s config.Stream
	bad := func(reason string) (config.Stream, error) {
		return config.Stream{}, fmt.Errorf("%w: stream %q: %s", media.ErrConfiguration, spec, reason)
	}

	hash := strings.LastIndex(spec, "#")
	if hash <= 0 {
		return bad("expected FILE#INDEX")
	}
	s.File, spec = spec[:hash], spec[hash+1:]

	if at := strings.LastIndex(spec, "@"); at >= 0 {
		off, err := strconv.ParseFloat(spec[at+1:], 64)
		if err != nil {
			return bad("invalid offset")
		}
		s.Offset, spec = off, spec[:at]
	}
	if eq := strings.Index(spec, "="); eq >= 0 {
		s.Profile, spec = spec[eq+1:], spec[:eq]
		if s.Profile == "" {
			return bad("empty profile")
		}
	}
	index, channel, hasChannel := strings.Cut(spec, ".")
	n, err := strconv.Atoi(index)
	if err != nil || n < 0 {
		return bad("invalid stream index")
	}
	s.Index = n
	if hasChannel {
		c, err := strconv.Atoi(channel)
		if err != nil || c < 0 {
			return bad("invalid channel")
		}
		s.Channel = &c
	}
	return s, nil
}

// parseGeneratorSpec parses TYPE[=PROFILE].
func parseGeneratorSpec(spec string) (config.Generator, error) {
	typ, prof, _ := strings.Cut(spec, "=")
	if _, err := generatorParams(typ); err != nil {
		return config.Generator{}, err
	}
	return config.Generator{Type: typ, Profile: prof}, nil
}

// generatorParams returns the default shape of a generated stream.
func generatorParams(typ string) (media.CodecParams, error) {
	switch typ {
	case "audio":
		return media.CodecParams{
			Type:  media.MediaTypeAudio,
			Codec: "pcm_s16le",
			Audio: media.AudioFrameDesc{SampleRate: 48000, Channels: 2, SampleFormat: media.SampleFormatS16, FPS: media.DefaultAudioFPS},
		}, nil
	case "video":
		return media.CodecParams{
			Type:  media.MediaTypeVideo,
			Codec: "rawvideo",
			Video: media.VideoFrameDesc{Width: 720, Height: 576, PixelFormat: media.PixelFormatYUV420P, FPS: 25},
		}, nil
	}
	return media.CodecParams{}, fmt.Errorf("%w: unknown generator type %q (audio or video)", media.ErrConfiguration, typ)
}
