package mpegts

import "fmt"

const (
	tsPacketSize = 188
	m2tsUnitSize = 192
	fecUnitSize  = 204
	syncByte     = 0x47
)

// tsPacket holds the header fields the demuxer acts on. payload aliases
// the unit it was parsed from.
type tsPacket struct {
	pid           uint16
	cc            uint8
	unitStart     bool
	transportErr  bool
	discontinuity bool
	payload       []byte
}

// parsePacket decodes one transport unit. M2TS units prefix the packet
// with a 4-byte arrival timestamp; 204-byte units append 16 bytes of
// Reed-Solomon parity.
func parsePacket(unit []byte) (*tsPacket, error) {
	var b []byte
	switch len(unit) {
	case tsPacketSize:
		b = unit
	case m2tsUnitSize:
		b = unit[4:]
	case fecUnitSize:
		b = unit[:tsPacketSize]
	default:
		return nil, fmt.Errorf("mpegts: unsupported unit size %d", len(unit))
	}
	if b[0] != syncByte {
		return nil, fmt.Errorf("mpegts: lost sync, got 0x%02X", b[0])
	}

	p := &tsPacket{
		pid:          uint16(b[1]&0x1F)<<8 | uint16(b[2]),
		cc:           b[3] & 0x0F,
		unitStart:    b[1]&0x40 != 0,
		transportErr: b[1]&0x80 != 0,
	}
	control := b[3] >> 4 & 0x03
	pos := 4
	if control&0x02 != 0 {
		afLen := int(b[4])
		if afLen > 0 {
			p.discontinuity = b[5]&0x80 != 0
		}
		pos += 1 + afLen
	}
	if control&0x01 != 0 && pos < tsPacketSize {
		p.payload = b[pos:]
	}
	return p, nil
}
