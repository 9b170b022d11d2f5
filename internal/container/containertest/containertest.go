// Package containertest provides in-memory container readers and writers
// for tests.
package containertest

import (
	"fmt"
	"io"

	"github.com/zsiec/avtranscode/internal/container"
	"github.com/zsiec/avtranscode/internal/media"
	"github.com/zsiec/avtranscode/internal/probe"
)

var (
	_ container.Reader = (*Reader)(nil)
	_ container.Writer = (*Writer)(nil)
)

// Reader replays a fixed packet sequence.
type Reader struct {
	Props   []probe.StreamProperties
	Packets []*media.Packet
	Start   float64
	Length  float64
	// FailAt makes ReadPacket fail with ReadErr once the cursor reaches
	// it; -1 disables the failure.
	FailAt  int
	ReadErr error
	Options map[string]string
	// Accept lists the option keys SetOption accepts.
	Accept map[string]bool

	pos   int
	Seeks []float64
	Reads int
}

// NewReader returns a reader over packets with the given streams.
func NewReader(props []probe.StreamProperties, packets []*media.Packet) *Reader {
	return &Reader{Props: props, Packets: packets, FailAt: -1, Options: make(map[string]string), Accept: make(map[string]bool)}
}

func (r *Reader) FormatName() string                { return "fake" }
func (r *Reader) Streams() []probe.StreamProperties { return r.Props }
func (r *Reader) StartTime() float64                { return r.Start }
func (r *Reader) Duration() float64                 { return r.Length }
func (r *Reader) Size() int64                       { return 0 }
func (r *Reader) Metadata() map[string]string       { return nil }
func (r *Reader) Close() error                      { return nil }

// ReadPacket returns a copy of the next packet so tests can compare
// against the originals.
func (r *Reader) ReadPacket() (*media.Packet, error) {
	r.Reads++
	if r.FailAt >= 0 && r.pos >= r.FailAt {
		return nil, r.ReadErr
	}
	if r.pos >= len(r.Packets) {
		return nil, io.EOF
	}
	p := *r.Packets[r.pos]
	r.pos++
	return &p, nil
}

// Seek moves to the first packet whose time is at or after seconds.
func (r *Reader) Seek(seconds float64) error {
	r.Seeks = append(r.Seeks, seconds)
	r.pos = 0
	for r.pos < len(r.Packets) {
		p := r.Packets[r.pos]
		if p.PTS == media.NoPTS || p.TimeBase.Seconds(p.PTS) >= seconds {
			break
		}
		r.pos++
	}
	return nil
}

func (r *Reader) SetOption(key, value string) error {
	if !r.Accept[key] {
		return &media.OptionError{Option: key, Value: value, Err: media.ErrConfiguration}
	}
	r.Options[key] = value
	return nil
}

// Writer records what is written to it.
type Writer struct {
	Format    string
	Params    []media.CodecParams
	TimeBases []media.Rational
	Packets   []media.Packet
	Options   map[string]string
	Metadata  map[string]string
	// Deferred option keys fail with media.ErrOptionDeferred until the
	// header is written.
	Deferred map[string]bool
	// Accept lists the option keys accepted immediately.
	Accept   map[string]bool
	WriteErr error

	HeaderWritten  bool
	TrailerWritten bool
	Closed         bool
}

// NewWriter returns an empty writer reporting format. Streams keep their
// own time base, milliseconds when they have none.
func NewWriter(format string) *Writer {
	return &Writer{
		Format:   format,
		Options:  make(map[string]string),
		Metadata: make(map[string]string),
		Deferred: make(map[string]bool),
		Accept:   make(map[string]bool),
	}
}

func (w *Writer) FormatName() string { return w.Format }

func (w *Writer) AddStream(params media.CodecParams) (media.Rational, error) {
	if w.HeaderWritten {
		return media.Rational{}, fmt.Errorf("%w: stream added after header", media.ErrFormat)
	}
	tb := params.TimeBase
	if tb.IsZero() {
		tb = media.TimeBaseMilli
	}
	w.Params = append(w.Params, params)
	w.TimeBases = append(w.TimeBases, tb)
	return tb, nil
}

func (w *Writer) SetOption(key, value string) error {
	switch {
	case w.Deferred[key] && !w.HeaderWritten:
		return &media.OptionError{Option: key, Value: value, Err: media.ErrOptionDeferred}
	case w.Deferred[key] || w.Accept[key]:
		w.Options[key] = value
		return nil
	}
	return &media.OptionError{Option: key, Value: value, Err: media.ErrConfiguration}
}

func (w *Writer) SetMetadata(key, value string) bool {
	w.Metadata[key] = value
	return true
}

func (w *Writer) WriteHeader() error {
	w.HeaderWritten = true
	return nil
}

// WritePacket stores a copy of pkt with its own copy of the payload.
func (w *Writer) WritePacket(pkt *media.Packet) error {
	if w.WriteErr != nil {
		return w.WriteErr
	}
	p := *pkt
	p.Data = append([]byte(nil), pkt.Data...)
	w.Packets = append(w.Packets, p)
	return nil
}

func (w *Writer) WriteTrailer() error {
	w.TrailerWritten = true
	return nil
}

func (w *Writer) Close() error {
	w.Closed = true
	return nil
}

// StreamPackets returns the written packets of one stream in order.
func (w *Writer) StreamPackets(index int) []media.Packet {
	var out []media.Packet
	for _, p := range w.Packets {
		if p.StreamIndex == index {
			out = append(out, p)
		}
	}
	return out
}
