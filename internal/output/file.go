// Package output writes transcoded streams into a destination container.
// File keeps an interleaving clock, the furthest written duration of any
// stream, and reports WrappingWaitingForData to a stream that is still
// behind it so its caller keeps feeding that stream before moving on.
package output

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/zsiec/avtranscode/internal/container"
	"github.com/zsiec/avtranscode/internal/media"
	"github.com/zsiec/avtranscode/internal/profile"
)

// WrappingStatus is the outcome of handing a packet to a File.
type WrappingStatus int

const (
	// WrappingSuccess means the packet was written and its stream is at or
	// ahead of the clock.
	WrappingSuccess WrappingStatus = iota
	// WrappingWaitingForData means the packet was written but its stream
	// is behind the clock and needs more data.
	WrappingWaitingForData
	// WrappingError means the packet could not be written.
	WrappingError
)

func (s WrappingStatus) String() string {
	switch s {
	case WrappingSuccess:
		return "success"
	case WrappingWaitingForData:
		return "waiting-for-data"
	case WrappingError:
		return "error"
	default:
		return fmt.Sprintf("WrappingStatus(%d)", int(s))
	}
}

// File is a destination container. It is not safe for concurrent use.
type File struct {
	log      *slog.Logger
	uri      string
	writer   container.Writer
	streams  []*Stream
	clock    float64
	deferred [][2]string
	began    bool
	ended    bool
}

// Create creates the container at uri, choosing the format from its
// extension. If log is nil, slog.Default() is used.
func Create(ctx context.Context, uri string, log *slog.Logger) (*File, error) {
	w, err := container.Create(ctx, uri, "")
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	return NewFile(uri, w, log), nil
}

// NewFile wraps an already created container writer.
func NewFile(uri string, w container.Writer, log *slog.Logger) *File {
	if log == nil {
		log = slog.Default()
	}
	return &File{
		log:    log.With("component", "output", "file", uri),
		uri:    uri,
		writer: w,
	}
}

// Filename returns the uri the file was created at.
func (f *File) Filename() string { return f.uri }

// FormatName returns the container format.
func (f *File) FormatName() string { return f.writer.FormatName() }

// AddVideoStream adds a video stream described by params.
func (f *File) AddVideoStream(params media.CodecParams) (*Stream, error) {
	return f.addStream(media.MediaTypeVideo, params)
}

// AddAudioStream adds an audio stream described by params.
func (f *File) AddAudioStream(params media.CodecParams) (*Stream, error) {
	return f.addStream(media.MediaTypeAudio, params)
}

// AddDataStream adds an opaque data stream.
func (f *File) AddDataStream(params media.CodecParams) (*Stream, error) {
	return f.addStream(media.MediaTypeData, params)
}

// AddStream adds a stream of the type params declares.
func (f *File) AddStream(params media.CodecParams) (*Stream, error) {
	return f.addStream(params.Type, params)
}

func (f *File) addStream(t media.MediaType, params media.CodecParams) (*Stream, error) {
	if f.began {
		return nil, fmt.Errorf("output: %w: cannot add a stream to %s after wrapping began", media.ErrConfiguration, f.uri)
	}
	params.Type = t
	tb, err := f.writer.AddStream(params)
	if err != nil {
		return nil, fmt.Errorf("output: adding %s stream to %s: %w", t, f.uri, err)
	}
	s := &Stream{file: f, index: len(f.streams), params: params, timeBase: tb}
	f.streams = append(f.streams, s)
	f.log.Info("stream added", "stream", s.index, "type", t, "codec", params.Codec, "timebase", tb)
	return s, nil
}

// NbStreams returns the number of streams added.
func (f *File) NbStreams() int { return len(f.streams) }

// Stream returns the stream at index.
func (f *File) Stream(index int) (*Stream, error) {
	if index < 0 || index >= len(f.streams) {
		return nil, fmt.Errorf("output: %w: no stream %d in %s", media.ErrFormat, index, f.uri)
	}
	return f.streams[index], nil
}

// SetupWrapping validates a format profile against the file and applies
// its options. Options the container cannot take yet are kept and retried
// by BeginWrap.
func (f *File) SetupWrapping(p profile.Profile) error {
	if err := profile.CheckFormatProfile(p); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if format := p[profile.KeyFormat]; format != f.writer.FormatName() {
		return fmt.Errorf("output: %w: format %q does not match %s (%s)",
			media.ErrConfiguration, format, f.uri, f.writer.FormatName())
	}
	f.log.Info("setup wrapping", "profile", p.Name())
	for _, kv := range p.FormatOptions() {
		if err := f.writer.SetOption(kv[0], kv[1]); err != nil {
			f.log.Info("wrapping option deferred", "option", kv[0], "value", kv[1], "reason", err)
			f.deferred = append(f.deferred, kv)
		}
	}
	return nil
}

// AddMetadata sets a container tag.
func (f *File) AddMetadata(key, value string) {
	if !f.writer.SetMetadata(key, value) {
		f.log.Warn("metadata not supported by format", "key", key, "format", f.writer.FormatName())
	}
}

// BeginWrap writes the container header, then applies the options that
// SetupWrapping deferred. Options that still fail are logged and dropped.
func (f *File) BeginWrap() error {
	if f.began {
		return nil
	}
	f.log.Debug("begin wrap")
	if err := f.writer.WriteHeader(); err != nil {
		return fmt.Errorf("output: writing header of %s: %w", f.uri, err)
	}
	f.began = true
	for _, kv := range f.deferred {
		if err := f.writer.SetOption(kv[0], kv[1]); err != nil {
			f.log.Warn("can't set wrapping option", "option", kv[0], "value", kv[1], "error", err)
		}
	}
	f.deferred = nil
	for _, s := range f.streams {
		s.nbFrames = 0
	}
	return nil
}

// Wrap writes pkt to the stream at index. Empty packets are accepted
// without writing. After writing, a stream whose written duration is below
// the clock gets WrappingWaitingForData; otherwise the clock advances to
// that duration.
func (f *File) Wrap(pkt *media.Packet, index int) (WrappingStatus, error) {
	if pkt.Empty() {
		return WrappingSuccess, nil
	}
	s, err := f.Stream(index)
	if err != nil {
		return WrappingError, err
	}
	if !f.began || f.ended {
		return WrappingError, fmt.Errorf("output: %w: %s is not wrapping", media.ErrConfiguration, f.uri)
	}

	out := *pkt
	src := pkt.TimeBase
	if src.IsZero() {
		src = s.timeBase
	}
	out.StreamIndex = index
	out.TimeBase = s.timeBase
	out.PTS = src.Rescale(pkt.PTS, s.timeBase)
	out.DTS = src.Rescale(pkt.DTS, s.timeBase)
	out.Duration = src.Rescale(pkt.Duration, s.timeBase)
	if out.PTS == media.NoPTS {
		out.PTS = s.end
	}
	if out.DTS == media.NoPTS {
		out.DTS = out.PTS
	}

	f.log.Debug("wrap", "stream", index, "size", out.Size(), "frame", s.nbFrames, "pts", out.PTS)
	if err := f.writer.WritePacket(&out); err != nil {
		if !errors.Is(err, media.ErrResource) {
			err = fmt.Errorf("%w: %w", media.ErrResource, err)
		}
		return WrappingError, fmt.Errorf("output: writing stream %d of %s: %w", index, f.uri, err)
	}
	s.nbFrames++
	if end := out.PTS + out.Duration; end > s.end {
		s.end = end
	}

	d := s.Duration()
	if d < f.clock {
		return WrappingWaitingForData, nil
	}
	f.clock = d
	return WrappingSuccess, nil
}

// EndWrap writes the trailer and closes the container.
func (f *File) EndWrap() error {
	if f.ended {
		return nil
	}
	f.ended = true
	f.log.Debug("end wrap", "clock", f.clock)
	var err error
	if f.began {
		if werr := f.writer.WriteTrailer(); werr != nil {
			err = fmt.Errorf("output: writing trailer of %s: %w", f.uri, werr)
		}
	}
	if cerr := f.writer.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("output: closing %s: %w: %w", f.uri, media.ErrResource, cerr)
	}
	return err
}

// Clock returns the furthest written stream duration in seconds.
func (f *File) Clock() float64 { return f.clock }

// Duration returns the written duration of the shortest stream.
func (f *File) Duration() float64 {
	if len(f.streams) == 0 {
		return 0
	}
	d := math.MaxFloat64
	for _, s := range f.streams {
		d = min(d, s.Duration())
	}
	return d
}
