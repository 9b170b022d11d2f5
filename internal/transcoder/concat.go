package transcoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/zsiec/avtranscode/internal/input"
	"github.com/zsiec/avtranscode/internal/media"
	"github.com/zsiec/avtranscode/internal/output"
)

// Concat rewraps the first stream of every input, one after the other,
// into a single stream of out. Each input continues where the previous
// one ended. All inputs must carry the same codec and frame layout.
func Concat(ctx context.Context, out *output.File, inputs []*input.File, log *slog.Logger) (float64, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "concat", "output", out.Filename())
	if len(inputs) == 0 {
		return 0, fmt.Errorf("transcoder: %w: nothing to concatenate", media.ErrConfiguration)
	}

	streams := make([]*input.Stream, len(inputs))
	for i, f := range inputs {
		if err := f.ActivateStream(0, true); err != nil {
			return 0, fmt.Errorf("transcoder: concat %s: %w", f.Filename(), err)
		}
		s, _ := f.Stream(0)
		if i > 0 {
			if why := concatMismatch(streams[0].Params(), s.Params()); why != "" {
				return 0, fmt.Errorf("transcoder: %w: %s carries %s", media.ErrConfiguration, f.Filename(), why)
			}
		}
		streams[i] = s
	}

	sink, err := out.AddStream(streams[0].Params())
	if err != nil {
		return 0, fmt.Errorf("transcoder: %w", err)
	}
	if err := out.BeginWrap(); err != nil {
		return 0, fmt.Errorf("transcoder: %w", err)
	}

	for _, s := range streams {
		base := sink.Duration()
		log.Info("appending", "file", s.File().Filename(), "at", base)
		var shift int64
		first := true
		for {
			if err := ctx.Err(); err != nil {
				_ = out.EndWrap()
				return 0, err
			}
			pkt, err := s.ReadNextPacket()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				_ = out.EndWrap()
				return 0, fmt.Errorf("transcoder: concat: %w", err)
			}
			if first && pkt.PTS != media.NoPTS {
				start := pkt.PTS
				if pkt.DTS != media.NoPTS {
					start = pkt.DTS
				}
				shift = pkt.TimeBase.FromSeconds(base) - start
				first = false
			}
			if pkt.PTS != media.NoPTS {
				pkt.PTS += shift
			}
			if pkt.DTS != media.NoPTS {
				pkt.DTS += shift
			}
			if _, err := sink.Wrap(pkt); err != nil {
				_ = out.EndWrap()
				return 0, fmt.Errorf("transcoder: concat: %w", err)
			}
		}
	}

	d := sink.Duration()
	if err := out.EndWrap(); err != nil {
		return 0, fmt.Errorf("transcoder: %w", err)
	}
	log.Info("concatenated", "inputs", len(inputs), "duration", d)
	return d, nil
}

// concatMismatch describes how p differs from the parameters of the first
// input, or returns "" when the two can share one output stream.
func concatMismatch(first, p media.CodecParams) string {
	if p.Type != first.Type {
		return fmt.Sprintf("a %s stream, expected %s", p.Type, first.Type)
	}
	if p.Codec != first.Codec {
		return fmt.Sprintf("%s, expected %s", p.Codec, first.Codec)
	}
	switch p.Type {
	case media.MediaTypeAudio:
		a, b := first.Audio, p.Audio
		if a.SampleRate != b.SampleRate || a.Channels != b.Channels || a.SampleFormat != b.SampleFormat {
			return fmt.Sprintf("%d Hz %d ch %s, expected %d Hz %d ch %s",
				b.SampleRate, b.Channels, b.SampleFormat, a.SampleRate, a.Channels, a.SampleFormat)
		}
	case media.MediaTypeVideo:
		a, b := first.Video, p.Video
		if a.Width != b.Width || a.Height != b.Height || a.PixelFormat != b.PixelFormat {
			return fmt.Sprintf("%dx%d %s, expected %dx%d %s",
				b.Width, b.Height, b.PixelFormat, a.Width, a.Height, a.PixelFormat)
		}
		// Frame rates probed from containers are estimates.
		if a.FPS > 0 && b.FPS > 0 && math.Abs(a.FPS-b.FPS) > 0.01 {
			return fmt.Sprintf("%.3f fps, expected %.3f fps", b.FPS, a.FPS)
		}
	}
	return ""
}
