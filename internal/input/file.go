// Package input reads elementary streams out of a source container. One
// File owns the sequential container reader; its Streams pull packets for
// themselves and the File caches packets read on behalf of other active
// streams until those streams ask for them.
package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/zsiec/avtranscode/internal/container"
	"github.com/zsiec/avtranscode/internal/media"
	"github.com/zsiec/avtranscode/internal/probe"
	"github.com/zsiec/avtranscode/internal/profile"
)

// File is an opened source container. It is not safe for concurrent use.
type File struct {
	log     *slog.Logger
	uri     string
	reader  container.Reader
	props   probe.FileProperties
	streams []*Stream
	origin  float64
}

// Open opens the container at uri and analyses its streams. If log is nil,
// slog.Default() is used.
func Open(ctx context.Context, uri string, log *slog.Logger) (*File, error) {
	r, err := container.Open(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	return NewFile(uri, r, log), nil
}

// NewFile wraps an already opened container reader.
func NewFile(uri string, r container.Reader, log *slog.Logger) *File {
	if log == nil {
		log = slog.Default()
	}
	f := &File{
		log:    log.With("component", "input", "file", uri),
		uri:    uri,
		reader: r,
	}
	f.props = probe.FileProperties{
		Filename:   uri,
		FormatName: r.FormatName(),
		Duration:   r.Duration(),
		StartTime:  r.StartTime(),
		Size:       r.Size(),
		Metadata:   r.Metadata(),
		Streams:    r.Streams(),
	}
	f.origin = f.props.StartTime
	if f.props.Duration > 0 {
		f.props.BitRate = int64(float64(f.props.Size*8) / f.props.Duration)
	}
	for i, sp := range f.props.Streams {
		f.streams = append(f.streams, &Stream{file: f, index: i, props: sp})
	}
	f.log.Info("input opened", "format", f.props.FormatName, "streams", len(f.streams), "duration", f.props.Duration)
	return f
}

// Filename returns the uri the file was opened from.
func (f *File) Filename() string { return f.uri }

// Properties describes the container and its streams.
func (f *File) Properties() probe.FileProperties { return f.props }

// NbStreams returns the number of elementary streams.
func (f *File) NbStreams() int { return len(f.streams) }

// Stream returns the stream at index.
func (f *File) Stream(index int) (*Stream, error) {
	if index < 0 || index >= len(f.streams) {
		return nil, fmt.Errorf("input: %w: no stream %d in %s (%d streams)", media.ErrFormat, index, f.uri, len(f.streams))
	}
	return f.streams[index], nil
}

// ActivateStream enables or disables caching and reading of a stream.
// Deactivating drops whatever the stream had cached.
func (f *File) ActivateStream(index int, activate bool) error {
	s, err := f.Stream(index)
	if err != nil {
		return err
	}
	s.active = activate
	if !activate {
		s.clearBuffering()
	}
	return nil
}

// ReadNextPacket returns the next packet of the stream at index. Packets
// of other active streams met on the way are cached for them; packets of
// inactive streams are dropped. io.EOF reports the end of the stream; a
// read failure is logged and also reported as io.EOF.
func (f *File) ReadNextPacket(index int) (*media.Packet, error) {
	s, err := f.Stream(index)
	if err != nil {
		return nil, err
	}
	if !s.active {
		return nil, fmt.Errorf("input: stream %d of %s: %w", index, f.uri, media.ErrInactiveStream)
	}
	if pkt := s.popPacket(); pkt != nil {
		return pkt, nil
	}
	for {
		pkt, err := f.reader.ReadPacket()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				f.log.Warn("read failed, ending stream", "stream", index, "error", err)
			}
			return nil, io.EOF
		}
		if pkt.StreamIndex == index {
			return pkt, nil
		}
		if pkt.StreamIndex >= 0 && pkt.StreamIndex < len(f.streams) {
			f.streams[pkt.StreamIndex].addPacket(pkt)
		}
	}
}

// SeekAtTime moves every stream to the given position in seconds,
// relative to the container start time. All caches are cleared and the
// position becomes the file's origin.
func (f *File) SeekAtTime(seconds float64) error {
	target := f.props.StartTime + seconds
	f.log.Debug("seek", "position", seconds, "target", target)
	for _, s := range f.streams {
		s.clearBuffering()
	}
	if err := f.reader.Seek(target); err != nil {
		return fmt.Errorf("input: seek %s to %.3fs: %w", f.uri, seconds, err)
	}
	f.origin = target
	return nil
}

// Origin returns the container time, in seconds, that rewrapped streams
// map to zero: the start time, or the target of the last seek.
func (f *File) Origin() float64 { return f.origin }

// SeekAtFrame seeks to a frame index counted at the frame rate of the
// first video stream (1 fps when there is none).
func (f *File) SeekAtFrame(frame int64) error {
	return f.SeekAtTime(float64(frame) / f.props.FirstVideoFPS())
}

// SetupUnwrapping applies the options of a format profile to the reader.
// Options the reader rejects are logged and ignored.
func (f *File) SetupUnwrapping(p profile.Profile) {
	if format := p[profile.KeyFormat]; format != "" && format != f.props.FormatName {
		f.log.Warn("unwrapping profile targets another format", "profile", p.Name(), "format", format)
	}
	for _, kv := range p.FormatOptions() {
		if err := f.reader.SetOption(kv[0], kv[1]); err != nil {
			f.log.Warn("unwrapping option ignored", "option", kv[0], "value", kv[1], "error", err)
		}
	}
}

// Close releases the container reader.
func (f *File) Close() error {
	return f.reader.Close()
}
