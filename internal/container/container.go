// Package container reads and writes media containers. Readers split a
// container into timestamped packets tagged with their stream index;
// writers interleave packets from several streams into one file.
//
// Formats are looked up by name or by file extension:
//
//	mpegts    .ts .m2ts .mts   read + write
//	wav       .wav             read + write
//	matroska  .mkv             write
//	webm      .webm            write
//	mp4       .mp4 .m4a        write (fragmented)
package container

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zsiec/avtranscode/internal/media"
	"github.com/zsiec/avtranscode/internal/probe"
)

// Reader demultiplexes a container. It is not safe for concurrent use.
type Reader interface {
	FormatName() string
	// Streams describes every elementary stream, indexed by position.
	Streams() []probe.StreamProperties
	// ReadPacket returns the next packet of any stream, or io.EOF.
	ReadPacket() (*media.Packet, error)
	// Seek repositions the reader so the next packets start at the given
	// container time in seconds.
	Seek(seconds float64) error
	StartTime() float64
	Duration() float64
	Size() int64
	Metadata() map[string]string
	SetOption(key, value string) error
	Close() error
}

// Writer multiplexes packets into a container. Streams are added before
// WriteHeader; packets carry timestamps in the time base AddStream
// returned for their stream. It is not safe for concurrent use.
type Writer interface {
	FormatName() string
	// AddStream registers a stream and returns the time base its packets
	// must use.
	AddStream(params media.CodecParams) (media.Rational, error)
	// SetOption applies a muxer option. Options that need the muxer to
	// exist fail with media.ErrOptionDeferred until WriteHeader ran.
	SetOption(key, value string) error
	// SetMetadata records a container-level tag and reports whether the
	// format stores it.
	SetMetadata(key, value string) bool
	WriteHeader() error
	WritePacket(pkt *media.Packet) error
	WriteTrailer() error
	Close() error
}

type readerFactory func(ctx context.Context, f *os.File) (Reader, error)

type writerFactory func(ctx context.Context, f *os.File, format string) (Writer, error)

var (
	formatsByExt = map[string]string{
		".ts":   "mpegts",
		".m2ts": "mpegts",
		".mts":  "mpegts",
		".wav":  "wav",
		".mkv":  "matroska",
		".webm": "webm",
		".mp4":  "mp4",
		".m4a":  "mp4",
	}
	readers = map[string]readerFactory{
		"mpegts": newTSReader,
		"wav":    newWAVReader,
	}
	writers = map[string]writerFactory{
		"mpegts":   newTSWriter,
		"wav":      newWAVWriter,
		"matroska": newMKVWriter,
		"webm":     newMKVWriter,
		"mp4":      newMP4Writer,
	}
)

// FormatForFilename returns the format name implied by a file extension.
func FormatForFilename(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	f, ok := formatsByExt[ext]
	if !ok {
		return "", fmt.Errorf("container: %w: no format for extension %q", media.ErrFormat, ext)
	}
	return f, nil
}

// WriterFormats returns the names of the formats that can be written.
func WriterFormats() []string {
	names := make([]string, 0, len(writers))
	for n := range writers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HasWriter reports whether format can be written.
func HasWriter(format string) bool {
	_, ok := writers[format]
	return ok
}

// Open opens the container at path and analyses its streams.
func Open(ctx context.Context, path string) (Reader, error) {
	format, err := FormatForFilename(path)
	if err != nil {
		return nil, err
	}
	newReader, ok := readers[format]
	if !ok {
		return nil, fmt.Errorf("container: %w: %s cannot be read", media.ErrFormat, format)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("container: open %s: %w: %w", path, media.ErrResource, err)
	}
	r, err := newReader(ctx, f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("container: open %s: %w", path, err)
	}
	return r, nil
}

// Create creates path and returns a writer for format, or for the format
// implied by the extension when format is empty.
func Create(ctx context.Context, path, format string) (Writer, error) {
	if format == "" {
		var err error
		if format, err = FormatForFilename(path); err != nil {
			return nil, err
		}
	}
	newWriter, ok := writers[format]
	if !ok {
		return nil, fmt.Errorf("container: %w: %s cannot be written", media.ErrFormat, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("container: create %s: %w: %w", path, media.ErrResource, err)
	}
	w, err := newWriter(ctx, f, format)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("container: create %s: %w", path, err)
	}
	return w, nil
}

func unknownOption(key, value string) error {
	return &media.OptionError{Option: key, Value: value, Err: media.ErrConfiguration}
}

func deferredOption(key, value string) error {
	return &media.OptionError{Option: key, Value: value, Err: media.ErrOptionDeferred}
}

// fileSize returns the size of f, or 0 when it cannot be determined.
func fileSize(f *os.File) int64 {
	st, err := f.Stat()
	if err != nil {
		return 0
	}
	return st.Size()
}
