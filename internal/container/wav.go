package container

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/zsiec/avtranscode/internal/codec"
	"github.com/zsiec/avtranscode/internal/media"
	"github.com/zsiec/avtranscode/internal/probe"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

// RIFF INFO chunk ids for the metadata keys the writer understands.
var wavInfoKeys = map[string]string{
	"title":     "INAM",
	"artist":    "IART",
	"comment":   "ICMT",
	"encoder":   "ISFT",
	"date":      "ICRD",
	"copyright": "ICOP",
	"genre":     "IGNR",
}

type wavReader struct {
	f          *os.File
	size       int64
	params     media.CodecParams
	props      []probe.StreamProperties
	blockAlign int
	dataOff    int64
	dataSize   int64
	pos        int64 // samples read
	metadata   map[string]string
}

func newWAVReader(_ context.Context, f *os.File) (Reader, error) {
	r := &wavReader{f: f, size: fileSize(f), metadata: make(map[string]string)}
	if err := r.parse(); err != nil {
		return nil, err
	}
	if _, err := f.Seek(r.dataOff, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: wav: %w", media.ErrResource, err)
	}
	return r, nil
}

func (r *wavReader) parse() error {
	br := bufio.NewReader(r.f)
	var riff [12]byte
	if _, err := io.ReadFull(br, riff[:]); err != nil {
		return fmt.Errorf("%w: wav: short header: %w", media.ErrFormat, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return fmt.Errorf("%w: wav: not a RIFF/WAVE file", media.ErrFormat)
	}

	var (
		off       int64 = 12
		haveFmt   bool
		format    uint16
		channels  uint16
		rate      uint32
		bits      uint16
		chunkHead [8]byte
	)
	for {
		if _, err := io.ReadFull(br, chunkHead[:]); err != nil {
			return fmt.Errorf("%w: wav: no data chunk", media.ErrFormat)
		}
		id := string(chunkHead[0:4])
		size := int64(binary.LittleEndian.Uint32(chunkHead[4:8]))
		off += 8

		if id == "data" {
			if !haveFmt {
				return fmt.Errorf("%w: wav: data chunk before fmt chunk", media.ErrFormat)
			}
			r.dataOff = off
			if size == 0 || size == math.MaxUint32 || off+size > r.size {
				size = r.size - off
			}
			r.dataSize = size
			break
		}

		body := make([]byte, size+size%2)
		if _, err := io.ReadFull(br, body); err != nil {
			return fmt.Errorf("%w: wav: truncated %q chunk", media.ErrFormat, id)
		}
		off += int64(len(body))

		switch id {
		case "fmt ":
			if size < 16 {
				return fmt.Errorf("%w: wav: fmt chunk too short", media.ErrFormat)
			}
			format = binary.LittleEndian.Uint16(body[0:2])
			channels = binary.LittleEndian.Uint16(body[2:4])
			rate = binary.LittleEndian.Uint32(body[4:8])
			bits = binary.LittleEndian.Uint16(body[14:16])
			if format == wavFormatExtensible && size >= 26 {
				format = binary.LittleEndian.Uint16(body[24:26])
			}
			haveFmt = true
		case "LIST":
			r.parseInfo(body[:size])
		}
	}

	var name string
	switch {
	case format == wavFormatFloat && bits == 32:
		name = "pcm_f32le"
	case format == wavFormatPCM && bits == 8:
		name = "pcm_u8"
	case format == wavFormatPCM && bits == 16:
		name = "pcm_s16le"
	case format == wavFormatPCM && bits == 24:
		name = "pcm_s24le"
	case format == wavFormatPCM && bits == 32:
		name = "pcm_s32le"
	default:
		return fmt.Errorf("%w: wav: unsupported format tag %#x with %d bits", media.ErrCodec, format, bits)
	}
	if channels == 0 || rate == 0 {
		return fmt.Errorf("%w: wav: %d channels at %d Hz", media.ErrFormat, channels, rate)
	}
	sf, _ := codec.PCMSampleFormat(name)
	r.params = media.CodecParams{
		Type:     media.MediaTypeAudio,
		Codec:    name,
		TimeBase: media.Rational{Num: 1, Den: int(rate)},
		Audio: media.AudioFrameDesc{
			SampleRate:   int(rate),
			Channels:     int(channels),
			SampleFormat: sf,
			FPS:          media.DefaultAudioFPS,
		},
		BitRate: int64(rate) * int64(channels) * int64(bits),
	}
	r.blockAlign = int(channels) * int(bits) / 8
	r.dataSize -= r.dataSize % int64(r.blockAlign)

	sp := probe.NewStreamProperties(0, r.params)
	sp.Duration = r.Duration()
	spf := int64(r.params.Audio.SamplesPerFrame())
	sp.NbPackets = int((r.totalSamples() + spf - 1) / spf)
	r.props = []probe.StreamProperties{sp}
	return nil
}

func (r *wavReader) parseInfo(body []byte) {
	if len(body) < 4 || string(body[0:4]) != "INFO" {
		return
	}
	names := make(map[string]string, len(wavInfoKeys))
	for k, id := range wavInfoKeys {
		names[id] = k
	}
	for p := 4; p+8 <= len(body); {
		id := string(body[p : p+4])
		n := int(binary.LittleEndian.Uint32(body[p+4 : p+8]))
		p += 8
		if p+n > len(body) {
			return
		}
		val := string(body[p : p+n])
		for len(val) > 0 && val[len(val)-1] == 0 {
			val = val[:len(val)-1]
		}
		if key, ok := names[id]; ok {
			r.metadata[key] = val
		}
		p += n + n%2
	}
}

func (r *wavReader) totalSamples() int64 {
	return r.dataSize / int64(r.blockAlign)
}

func (r *wavReader) FormatName() string                { return "wav" }
func (r *wavReader) Streams() []probe.StreamProperties { return r.props }
func (r *wavReader) StartTime() float64                { return 0 }
func (r *wavReader) Size() int64                       { return r.size }
func (r *wavReader) Metadata() map[string]string       { return r.metadata }

func (r *wavReader) Duration() float64 {
	return float64(r.totalSamples()) / float64(r.params.Audio.SampleRate)
}

func (r *wavReader) SetOption(key, value string) error {
	return unknownOption(key, value)
}

// ReadPacket returns one frame's worth of samples; the last packet may be
// shorter.
func (r *wavReader) ReadPacket() (*media.Packet, error) {
	remaining := r.totalSamples() - r.pos
	if remaining <= 0 {
		return nil, io.EOF
	}
	n := min(int64(r.params.Audio.SamplesPerFrame()), remaining)
	pkt := media.NewPacket()
	pkt.Data = make([]byte, n*int64(r.blockAlign))
	read, err := io.ReadFull(r.f, pkt.Data)
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		n = int64(read / r.blockAlign)
		if n == 0 {
			return nil, io.EOF
		}
		pkt.Data = pkt.Data[:n*int64(r.blockAlign)]
	} else if err != nil {
		return nil, fmt.Errorf("%w: wav: %w", media.ErrResource, err)
	}
	pkt.TimeBase = r.params.TimeBase
	pkt.PTS = r.pos
	pkt.DTS = r.pos
	pkt.Duration = n
	pkt.Keyframe = true
	r.pos += n
	return pkt, nil
}

func (r *wavReader) Seek(seconds float64) error {
	sample := int64(math.Round(seconds * float64(r.params.Audio.SampleRate)))
	sample = max(0, min(sample, r.totalSamples()))
	if _, err := r.f.Seek(r.dataOff+sample*int64(r.blockAlign), io.SeekStart); err != nil {
		return fmt.Errorf("%w: wav: %w", media.ErrResource, err)
	}
	r.pos = sample
	return nil
}

func (r *wavReader) Close() error {
	return r.f.Close()
}

// wavWriter writes a single PCM stream. Chunk sizes are patched by
// WriteTrailer, which needs a seekable file.
type wavWriter struct {
	f          *os.File
	bw         *bufio.Writer
	params     *media.CodecParams
	metadata   map[string]string
	dataOff    int64
	dataSize   int64
	headerDone bool
}

func newWAVWriter(_ context.Context, f *os.File, _ string) (Writer, error) {
	return &wavWriter{
		f:        f,
		bw:       bufio.NewWriterSize(f, 64*1024),
		metadata: make(map[string]string),
	}, nil
}

func (w *wavWriter) FormatName() string { return "wav" }

func (w *wavWriter) AddStream(params media.CodecParams) (media.Rational, error) {
	if w.params != nil {
		return media.Rational{}, fmt.Errorf("%w: wav: only one stream supported", media.ErrFormat)
	}
	if params.Type != media.MediaTypeAudio {
		return media.Rational{}, fmt.Errorf("%w: wav: cannot store %s", media.ErrFormat, params.Type)
	}
	bits := codec.BitsPerCodedSample(params.Codec)
	if bits == 0 || params.Codec == "pcm_s16be" {
		return media.Rational{}, fmt.Errorf("%w: wav: cannot store codec %s", media.ErrCodec, params.Codec)
	}
	p := params
	w.params = &p
	return media.Rational{Num: 1, Den: params.Audio.SampleRate}, nil
}

func (w *wavWriter) SetOption(key, value string) error {
	return unknownOption(key, value)
}

func (w *wavWriter) SetMetadata(key, value string) bool {
	if _, ok := wavInfoKeys[key]; !ok {
		return false
	}
	w.metadata[key] = value
	return true
}

func (w *wavWriter) WriteHeader() error {
	if w.params == nil {
		return fmt.Errorf("%w: wav: no stream", media.ErrFormat)
	}
	p := w.params
	bits := codec.BitsPerCodedSample(p.Codec)
	blockAlign := p.Audio.Channels * bits / 8
	format := uint16(wavFormatPCM)
	if p.Codec == "pcm_f32le" {
		format = wavFormatFloat
	}

	var hdr []byte
	hdr = append(hdr, "RIFF"...)
	hdr = binary.LittleEndian.AppendUint32(hdr, 0)
	hdr = append(hdr, "WAVE"...)
	hdr = append(hdr, "fmt "...)
	hdr = binary.LittleEndian.AppendUint32(hdr, 16)
	hdr = binary.LittleEndian.AppendUint16(hdr, format)
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(p.Audio.Channels))
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(p.Audio.SampleRate))
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(p.Audio.SampleRate*blockAlign))
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(blockAlign))
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(bits))
	hdr = append(hdr, w.infoChunk()...)
	hdr = append(hdr, "data"...)
	hdr = binary.LittleEndian.AppendUint32(hdr, 0)

	if _, err := w.bw.Write(hdr); err != nil {
		return fmt.Errorf("%w: wav: %w", media.ErrResource, err)
	}
	w.dataOff = int64(len(hdr))
	w.headerDone = true
	return nil
}

func (w *wavWriter) infoChunk() []byte {
	if len(w.metadata) == 0 {
		return nil
	}
	keys := make([]string, 0, len(w.metadata))
	for k := range w.metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	body := []byte("INFO")
	for _, k := range keys {
		v := append([]byte(w.metadata[k]), 0)
		body = append(body, wavInfoKeys[k]...)
		body = binary.LittleEndian.AppendUint32(body, uint32(len(v)))
		body = append(body, v...)
		if len(v)%2 == 1 {
			body = append(body, 0)
		}
	}
	chunk := []byte("LIST")
	chunk = binary.LittleEndian.AppendUint32(chunk, uint32(len(body)))
	return append(chunk, body...)
}

func (w *wavWriter) WritePacket(pkt *media.Packet) error {
	if !w.headerDone {
		return fmt.Errorf("%w: wav: header not written", media.ErrFormat)
	}
	if pkt.StreamIndex != 0 {
		return fmt.Errorf("%w: wav: no stream %d", media.ErrFormat, pkt.StreamIndex)
	}
	n, err := w.bw.Write(pkt.Data)
	w.dataSize += int64(n)
	if err != nil {
		return fmt.Errorf("%w: wav: %w", media.ErrResource, err)
	}
	return nil
}

func (w *wavWriter) WriteTrailer() error {
	if w.dataSize%2 == 1 {
		if err := w.bw.WriteByte(0); err != nil {
			return fmt.Errorf("%w: wav: %w", media.ErrResource, err)
		}
	}
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("%w: wav: %w", media.ErrResource, err)
	}
	riffSize := w.dataOff - 8 + w.dataSize + w.dataSize%2
	if err := w.patch(4, uint32(riffSize)); err != nil {
		return err
	}
	return w.patch(w.dataOff-4, uint32(w.dataSize))
}

func (w *wavWriter) patch(off int64, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	if _, err := w.f.WriteAt(b[:], off); err != nil {
		return fmt.Errorf("%w: wav: patching header: %w", media.ErrResource, err)
	}
	return nil
}

func (w *wavWriter) Close() error {
	return w.f.Close()
}
