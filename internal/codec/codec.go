// Package codec provides the decoders, encoders and frame generators used
// by stream pipelines. Codecs are looked up by name in a process-wide
// registry; the built-in set covers PCM audio and raw video.
package codec

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zsiec/avtranscode/internal/media"
)

// ErrCodecNotSupported is returned when no factory is registered for a
// codec name. It matches media.ErrCodec.
var ErrCodecNotSupported = fmt.Errorf("%w: codec not supported", media.ErrCodec)

// PacketReader yields the packets of one stream. io.EOF signals the end of
// the stream.
type PacketReader interface {
	ReadNextPacket() (*media.Packet, error)
}

// Decoder turns packets into frames.
type Decoder interface {
	// Decode decodes pkt into dst and reports whether a frame was produced.
	// A nil pkt drains frames buffered inside the decoder.
	Decode(pkt *media.Packet, dst *media.Frame) (bool, error)
	// Params describes the decoded frames.
	Params() media.CodecParams
}

// Encoder turns frames into packets.
type Encoder interface {
	// Encode encodes src and reports whether dst received a packet.
	Encode(src *media.Frame, dst *media.Packet) (bool, error)
	// Flush emits one buffered packet, reporting false once empty.
	Flush(dst *media.Packet) (bool, error)
	// Latency is the number of frames the encoder holds before emitting.
	Latency() int
	// FrameCount is the number of frames encoded so far.
	FrameCount() int
	// Params describes the encoded stream.
	Params() media.CodecParams
}

// FrameSource produces decoded frames, either from an input stream or by
// synthesising them.
type FrameSource interface {
	// DecodeNextFrame fills dst and reports false once the source is
	// exhausted.
	DecodeNextFrame(dst *media.Frame) (bool, error)
}

// DecoderFactory builds a decoder for the given stream parameters.
type DecoderFactory func(params media.CodecParams) (Decoder, error)

// EncoderFactory builds an encoder. params carries the requested frame
// shape; the factory fills in what the codec dictates.
type EncoderFactory func(params media.CodecParams) (Encoder, error)

type codecRegistry struct {
	mu       sync.RWMutex
	decoders map[string]DecoderFactory
	encoders map[string]EncoderFactory
}

var registry = &codecRegistry{
	decoders: make(map[string]DecoderFactory),
	encoders: make(map[string]EncoderFactory),
}

// RegisterDecoder registers a decoder factory under a codec name.
func RegisterDecoder(name string, f DecoderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.decoders[name] = f
}

// RegisterEncoder registers an encoder factory under a codec name.
func RegisterEncoder(name string, f EncoderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.encoders[name] = f
}

// NewDecoder creates a decoder for params.Codec.
func NewDecoder(params media.CodecParams) (Decoder, error) {
	registry.mu.RLock()
	f, ok := registry.decoders[params.Codec]
	registry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("codec: %w: no decoder for %s", ErrCodecNotSupported, params.Codec)
	}
	return f(params)
}

// NewEncoder creates an encoder for params.Codec.
func NewEncoder(params media.CodecParams) (Encoder, error) {
	registry.mu.RLock()
	f, ok := registry.encoders[params.Codec]
	registry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("codec: %w: no encoder for %s", ErrCodecNotSupported, params.Codec)
	}
	return f(params)
}

// HasEncoder reports whether an encoder is registered for name.
func HasEncoder(name string) bool {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	_, ok := registry.encoders[name]
	return ok
}

// HasDecoder reports whether a decoder is registered for name.
func HasDecoder(name string) bool {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	_, ok := registry.decoders[name]
	return ok
}

// Encoders returns the registered encoder names, sorted.
func Encoders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	names := make([]string, 0, len(registry.encoders))
	for n := range registry.encoders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
