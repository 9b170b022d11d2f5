package mpegts

import (
	"errors"
	"fmt"
)

var errNotPES = errors.New("mpegts: missing PES start code")

func hasPESStartCode(b []byte) bool {
	return len(b) >= 3 && b[0] == 0 && b[1] == 0 && b[2] == 1
}

// hasOptionalHeader reports whether PES packets of stream id carry the
// optional header with flags and timestamps.
func hasOptionalHeader(id uint8) bool {
	switch id {
	case 0xBC, 0xBE, 0xBF, 0xF0, 0xF1, 0xF2, 0xF8, 0xFF:
		return false
	}
	return true
}

// parsePES decodes a reassembled PES packet. Timestamps are returned as
// read from the wire; the demuxer unwraps them. A zero PES_packet_length
// means the packet runs to the end of the unit.
func parsePES(b []byte) (*PESData, error) {
	if len(b) < 6 {
		return nil, fmt.Errorf("mpegts: PES packet of %d bytes", len(b))
	}
	if !hasPESStartCode(b) {
		return nil, errNotPES
	}
	pes := &PESData{StreamID: b[3]}
	end := len(b)
	if n := int(b[4])<<8 | int(b[5]); n > 0 && 6+n < end {
		end = 6 + n
	}
	if !hasOptionalHeader(pes.StreamID) {
		pes.Data = b[6:end]
		return pes, nil
	}
	if len(b) < 9 {
		return nil, errors.New("mpegts: PES header truncated")
	}

	flags := b[7] >> 6
	if flags&0x02 != 0 && len(b) >= 14 {
		pes.HasPTS = true
		pes.PTS = readTimestamp(b[9:14])
		pes.DTS = pes.PTS
		if flags == 0x03 && len(b) >= 19 {
			pes.DTS = readTimestamp(b[14:19])
		}
	}
	pes.Data = b[min(9+int(b[8]), end):end]
	return pes, nil
}

// readTimestamp decodes a PTS or DTS: 3, 15 and 15 bits, each group
// followed by a marker bit.
func readTimestamp(b []byte) int64 {
	hi := int64(b[0]>>1) & 0x07
	mid := int64(b[1])<<7 | int64(b[2]>>1)
	lo := int64(b[3])<<7 | int64(b[4]>>1)
	return hi<<30 | mid<<15 | lo
}

// clockUnwrapper extends one PID's 33-bit timestamps into a continuous
// timeline. Each value lands within half a clock period of the previous
// one, so forward wraps and small backward steps both resolve.
type clockUnwrapper struct {
	last int64
	init bool
}

func (u *clockUnwrapper) unwrap(raw int64) int64 {
	if !u.init {
		u.last, u.init = raw, true
		return raw
	}
	u.last = nearestClock(u.last, raw)
	return u.last
}

// nearestClock returns the value congruent to raw modulo 2^33 that is
// closest to ref.
func nearestClock(ref, raw int64) int64 {
	d := (raw - ref) & ClockMask
	if d > ClockMask/2 {
		d -= ClockMask + 1
	}
	return ref + d
}
