package input

import (
	"github.com/zsiec/avtranscode/internal/media"
	"github.com/zsiec/avtranscode/internal/probe"
)

// Stream is one elementary stream of a File. Its cache holds packets the
// File read while serving other streams, oldest first.
type Stream struct {
	file   *File
	index  int
	props  probe.StreamProperties
	active bool
	cache  []*media.Packet
}

// ReadNextPacket returns the next packet of this stream, or io.EOF. It
// fails with media.ErrInactiveStream unless the stream was activated.
func (s *Stream) ReadNextPacket() (*media.Packet, error) {
	return s.file.ReadNextPacket(s.index)
}

// File returns the container the stream belongs to.
func (s *Stream) File() *File { return s.file }

// Origin returns the origin of the file the stream belongs to.
func (s *Stream) Origin() float64 { return s.file.Origin() }

// Index returns the stream position in its file.
func (s *Stream) Index() int { return s.index }

// Properties describes the stream.
func (s *Stream) Properties() probe.StreamProperties { return s.props }

// Params returns the codec parameters of the stream.
func (s *Stream) Params() media.CodecParams { return s.props.Params }

// Duration returns the stream duration in seconds.
func (s *Stream) Duration() float64 { return s.props.Duration }

// IsActive reports whether the stream was activated.
func (s *Stream) IsActive() bool { return s.active }

// CacheLen returns the number of packets waiting in the cache.
func (s *Stream) CacheLen() int { return len(s.cache) }

// addPacket queues a packet read on behalf of this stream. Packets for an
// inactive stream are dropped.
func (s *Stream) addPacket(pkt *media.Packet) {
	if !s.active {
		return
	}
	s.cache = append(s.cache, pkt)
}

func (s *Stream) popPacket() *media.Packet {
	if len(s.cache) == 0 {
		return nil
	}
	pkt := s.cache[0]
	s.cache[0] = nil
	s.cache = s.cache[1:]
	return pkt
}

// clearBuffering drops every cached packet.
func (s *Stream) clearBuffering() {
	clear(s.cache)
	s.cache = s.cache[:0]
}
