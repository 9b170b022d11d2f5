package container

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"

	"github.com/zsiec/avtranscode/internal/media"
)

const (
	mkvTrackVideo = 1
	mkvTrackAudio = 2
)

var mkvCodecIDs = map[string]string{
	"pcm_u8":    "A_PCM/INT/LIT",
	"pcm_s16le": "A_PCM/INT/LIT",
	"pcm_s24le": "A_PCM/INT/LIT",
	"pcm_s32le": "A_PCM/INT/LIT",
	"pcm_s16be": "A_PCM/INT/BIG",
	"pcm_f32le": "A_PCM/FLOAT/IEEE",
	"rawvideo":  "V_UNCOMPRESSED",
	"h264":      "V_MPEG4/ISO/AVC",
	"aac":       "A_AAC",
}

// fileWriteCloser adapts the buffered output file to the io.WriteCloser
// the block writers expect. Close flushes; the file is closed by Close on
// the container writer.
type fileWriteCloser struct {
	bw *bufio.Writer
}

func (w *fileWriteCloser) Write(p []byte) (int, error) { return w.bw.Write(p) }
func (w *fileWriteCloser) Close() error                { return w.bw.Flush() }

// mkvWriter writes Matroska/WebM files with millisecond timestamps.
type mkvWriter struct {
	format  string
	f       *os.File
	out     *fileWriteCloser
	tracks  []webm.TrackEntry
	blocks  []webm.BlockWriteCloser
	fatal   error
	started bool
}

func newMKVWriter(_ context.Context, f *os.File, format string) (Writer, error) {
	return &mkvWriter{
		format: format,
		f:      f,
		out:    &fileWriteCloser{bw: bufio.NewWriterSize(f, 64*1024)},
	}, nil
}

func (w *mkvWriter) FormatName() string { return w.format }

func (w *mkvWriter) AddStream(params media.CodecParams) (media.Rational, error) {
	if w.started {
		return media.Rational{}, fmt.Errorf("%w: %s: stream added after header", media.ErrFormat, w.format)
	}
	id, ok := mkvCodecIDs[params.Codec]
	if !ok {
		return media.Rational{}, fmt.Errorf("%w: %s: cannot store codec %s", media.ErrCodec, w.format, params.Codec)
	}
	n := uint64(len(w.tracks) + 1)
	te := webm.TrackEntry{
		Name:        params.Type.String() + strconv.Itoa(int(n)),
		TrackNumber: n,
		TrackUID:    n,
		CodecID:     id,
	}
	if d := params.FrameDuration(); d > 0 {
		te.DefaultDuration = uint64(d * 1e9)
	}
	switch params.Type {
	case media.MediaTypeVideo:
		te.TrackType = mkvTrackVideo
		te.Video = &webm.Video{
			PixelWidth:  uint64(params.Video.Width),
			PixelHeight: uint64(params.Video.Height),
		}
	case media.MediaTypeAudio:
		te.TrackType = mkvTrackAudio
		te.Audio = &webm.Audio{
			SamplingFrequency: float64(params.Audio.SampleRate),
			Channels:          uint64(params.Audio.Channels),
		}
	default:
		return media.Rational{}, fmt.Errorf("%w: %s: cannot store %s streams", media.ErrFormat, w.format, params.Type)
	}
	if len(params.Extradata) > 0 {
		te.CodecPrivate = params.Extradata
	}
	w.tracks = append(w.tracks, te)
	return media.TimeBaseMilli, nil
}

func (w *mkvWriter) SetOption(key, value string) error {
	return unknownOption(key, value)
}

func (w *mkvWriter) SetMetadata(string, string) bool { return false }

func (w *mkvWriter) WriteHeader() error {
	if len(w.tracks) == 0 {
		return fmt.Errorf("%w: %s: no streams", media.ErrFormat, w.format)
	}
	blocks, err := webm.NewSimpleBlockWriter(w.out, w.tracks,
		mkvcore.WithOnFatalHandler(func(err error) {
			w.fatal = err
		}))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", media.ErrResource, w.format, err)
	}
	w.blocks = blocks
	w.started = true
	return nil
}

func (w *mkvWriter) WritePacket(pkt *media.Packet) error {
	if !w.started {
		return fmt.Errorf("%w: %s: header not written", media.ErrFormat, w.format)
	}
	if w.fatal != nil {
		return fmt.Errorf("%w: %s: %w", media.ErrResource, w.format, w.fatal)
	}
	if pkt.StreamIndex < 0 || pkt.StreamIndex >= len(w.blocks) {
		return fmt.Errorf("%w: %s: no stream %d", media.ErrFormat, w.format, pkt.StreamIndex)
	}
	ts := pkt.PTS
	if ts == media.NoPTS {
		ts = 0
	}
	if _, err := w.blocks[pkt.StreamIndex].Write(pkt.Keyframe, ts, pkt.Data); err != nil {
		return fmt.Errorf("%w: %s: %w", media.ErrResource, w.format, err)
	}
	return nil
}

// WriteTrailer closes every block writer; the last one to close finalises
// the segment and flushes the output.
func (w *mkvWriter) WriteTrailer() error {
	for _, b := range w.blocks {
		if err := b.Close(); err != nil {
			return fmt.Errorf("%w: %s: %w", media.ErrResource, w.format, err)
		}
	}
	w.blocks = nil
	if w.fatal != nil {
		return fmt.Errorf("%w: %s: %w", media.ErrResource, w.format, w.fatal)
	}
	return w.out.Close()
}

func (w *mkvWriter) Close() error {
	return w.f.Close()
}
