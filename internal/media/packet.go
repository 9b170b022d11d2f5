package media

import "math"

// NoPTS marks an absent timestamp.
const NoPTS int64 = math.MinInt64

// Packet is a unit of encoded data belonging to one elementary stream.
// Packets move by pointer from the container reader (or an encoder) to
// whichever cache or pipeline currently owns them and are dropped once the
// output has consumed them.
type Packet struct {
	Data        []byte
	StreamIndex int
	PTS         int64
	DTS         int64
	Duration    int64
	TimeBase    Rational
	Keyframe    bool
}

// NewPacket returns an empty packet with unset timestamps.
func NewPacket() *Packet {
	return &Packet{PTS: NoPTS, DTS: NoPTS}
}

// Size returns the payload length.
func (p *Packet) Size() int {
	if p == nil {
		return 0
	}
	return len(p.Data)
}

// Empty reports whether p carries no payload.
func (p *Packet) Empty() bool {
	return p.Size() == 0
}

// Reset clears the packet for reuse, keeping its payload capacity.
func (p *Packet) Reset() {
	p.Data = p.Data[:0]
	p.StreamIndex = 0
	p.PTS = NoPTS
	p.DTS = NoPTS
	p.Duration = 0
	p.Keyframe = false
}

// EndPTS returns PTS + Duration, or NoPTS if the packet is untimed.
func (p *Packet) EndPTS() int64 {
	if p.PTS == NoPTS {
		return NoPTS
	}
	return p.PTS + p.Duration
}
