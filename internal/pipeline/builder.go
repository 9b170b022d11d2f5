package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/zsiec/avtranscode/internal/codec"
	"github.com/zsiec/avtranscode/internal/input"
	"github.com/zsiec/avtranscode/internal/media"
	"github.com/zsiec/avtranscode/internal/output"
	"github.com/zsiec/avtranscode/internal/profile"
	"github.com/zsiec/avtranscode/internal/transform"
)

// TranscodeOptions tune a transcoding pipeline.
type TranscodeOptions struct {
	// Offset is the number of seconds of generated content written before
	// the input starts. A negative offset is the amount the input was
	// seeked forward and shortens the stream.
	Offset float64
	// SubStream selects one channel of a multichannel audio input; -1
	// keeps all channels.
	SubStream int
}

// NewRewrap adds an output stream copying in unchanged. When the codec can
// be encoded locally the pipeline also gets a generator so it can outlast
// its input. offset only counts when negative, for an input seeked forward.
func NewRewrap(in *input.Stream, out *output.File, offset float64, log *slog.Logger) (*Pipeline, error) {
	params := in.Params()
	sink, err := out.AddStream(params)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	cfg := Config{
		Name:   streamName(in),
		Input:  in,
		Sink:   sink,
		Offset: min(offset, 0),
	}
	if params.Type == media.MediaTypeAudio || params.Type == media.MediaTypeVideo {
		if codec.HasEncoder(params.Codec) {
			if err := attachGenerator(&cfg, params); err != nil {
				logger(log).Debug("no generator for rewrapped stream", "stream", cfg.Name, "error", err)
				cfg.Encoder, cfg.Generator = nil, nil
			}
		}
	}
	return New(cfg, log)
}

// NewTranscode adds an output stream encoding in according to prof.
func NewTranscode(in *input.Stream, out *output.File, prof profile.Profile, opts TranscodeOptions, log *slog.Logger) (*Pipeline, error) {
	if err := profile.Check(prof); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	params := in.Params()
	if prof.Type() != params.Type.String() {
		return nil, fmt.Errorf("pipeline: %w: profile %q is for %s streams, stream %d is %s",
			media.ErrConfiguration, prof.Name(), prof.Type(), in.Index(), params.Type)
	}
	dec, err := codec.NewDecoder(params)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	source := codec.NewInputDecoder(in, dec)
	if opts.SubStream >= 0 {
		if err := source.SetSubStream(opts.SubStream); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}
	srcParams := source.Params()

	encParams, err := encoderParams(srcParams, prof)
	if err != nil {
		return nil, fmt.Errorf("pipeline: profile %q: %w", prof.Name(), err)
	}
	cfg := Config{
		Name:    streamName(in),
		Input:   in,
		Decoder: source,
		Offset:  opts.Offset,
	}
	if err := attachGenerator(&cfg, encParams); err != nil {
		return nil, fmt.Errorf("pipeline: profile %q: %w", prof.Name(), err)
	}
	cfg.SourceFrame = newFrame(srcParams)
	applyCodecOptions(logger(log), prof)

	sink, err := out.AddStream(cfg.Encoder.Params())
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	cfg.Sink = sink
	return New(cfg, log)
}

// NewGenerator adds an output stream of generated frames shaped by params,
// encoded according to prof. A nil prof encodes with params.Codec.
func NewGenerator(params media.CodecParams, out *output.File, prof profile.Profile, log *slog.Logger) (*Pipeline, error) {
	encParams := params
	if prof != nil {
		if err := profile.Check(prof); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		var err error
		if encParams, err = encoderParams(params, prof); err != nil {
			return nil, fmt.Errorf("pipeline: profile %q: %w", prof.Name(), err)
		}
		applyCodecOptions(logger(log), prof)
	}
	cfg := Config{Name: "generator"}
	if err := attachGenerator(&cfg, encParams); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	sink, err := out.AddStream(cfg.Encoder.Params())
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	cfg.Sink = sink
	return New(cfg, log)
}

// attachGenerator sets up the encoder, transform, generator and frames for
// encParams. The source frame defaults to the target shape.
func attachGenerator(cfg *Config, encParams media.CodecParams) error {
	enc, err := codec.NewEncoder(encParams)
	if err != nil {
		return err
	}
	tr, err := transform.New(encParams.Type)
	if err != nil {
		return err
	}
	cfg.Encoder = enc
	cfg.Transform = tr
	cfg.Generator = codec.NewGenerator()
	cfg.TargetFrame = newFrame(enc.Params())
	cfg.SourceFrame = newFrame(enc.Params())
	return nil
}

// encoderParams derives the encoded stream shape from the decoded one and
// the profile overrides.
func encoderParams(src media.CodecParams, prof profile.Profile) (media.CodecParams, error) {
	p := media.CodecParams{Type: src.Type, Codec: prof[profile.KeyCodec]}
	switch src.Type {
	case media.MediaTypeAudio:
		desc, err := prof.AudioDesc(src.Audio)
		if err != nil {
			return p, err
		}
		p.Audio = desc
		if p.Codec == "" {
			p.Codec = codec.PCMCodecFor(desc.SampleFormat, prof.BitsPerSample())
		}
	case media.MediaTypeVideo:
		desc, err := prof.VideoDesc(src.Video)
		if err != nil {
			return p, err
		}
		p.Video = desc
	default:
		return p, fmt.Errorf("%w: %s streams cannot be encoded", media.ErrConfiguration, src.Type)
	}
	return p, nil
}

// applyCodecOptions reports the profile options the built-in codecs have
// no use for.
func applyCodecOptions(log *slog.Logger, prof profile.Profile) {
	for _, kv := range prof.Options() {
		log.Warn("codec option ignored", "profile", prof.Name(), "option", kv[0], "value", kv[1])
	}
}

func newFrame(params media.CodecParams) *media.Frame {
	if params.Type == media.MediaTypeVideo {
		return media.NewVideoFrame(params.Video)
	}
	return media.NewAudioFrame(params.Audio)
}

func streamName(in *input.Stream) string {
	return fmt.Sprintf("%s#%d", in.File().Filename(), in.Index())
}

func logger(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
