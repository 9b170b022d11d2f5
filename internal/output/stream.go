package output

import "github.com/zsiec/avtranscode/internal/media"

// Stream is one stream of an output File.
type Stream struct {
	file     *File
	index    int
	params   media.CodecParams
	timeBase media.Rational
	end      int64
	nbFrames int
}

// Wrap writes pkt to this stream. See File.Wrap.
func (s *Stream) Wrap(pkt *media.Packet) (WrappingStatus, error) {
	return s.file.Wrap(pkt, s.index)
}

// Index returns the stream position in its file.
func (s *Stream) Index() int { return s.index }

// Params returns the parameters the stream was added with.
func (s *Stream) Params() media.CodecParams { return s.params }

// TimeBase returns the time base packets are written in.
func (s *Stream) TimeBase() media.Rational { return s.timeBase }

// Duration returns the written duration in seconds.
func (s *Stream) Duration() float64 { return s.timeBase.Seconds(s.end) }

// NbFrames returns the number of packets written since BeginWrap.
func (s *Stream) NbFrames() int { return s.nbFrames }
