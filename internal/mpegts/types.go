// Package mpegts demuxes MPEG transport streams. It follows PAT and PMT
// tables to learn the elementary streams, reassembles PES packets per PID
// and extends their 33-bit timestamps across clock wraps. 188-byte TS,
// 192-byte M2TS and 204-byte FEC units are accepted.
package mpegts

// DemuxerData is one logical unit read from the stream. Exactly one of
// PAT, PMT or PES is set.
type DemuxerData struct {
	PID uint16
	PAT *PATData
	PMT *PMTData
	PES *PESData
}

// PATData is a Program Association Table section.
type PATData struct {
	TransportStreamID uint16
	Programs          []PATProgram
}

// PATProgram maps a program number to the PID carrying its PMT.
type PATProgram struct {
	ProgramNumber uint16
	ProgramMapID  uint16
}

// PMTData is a Program Map Table section.
type PMTData struct {
	ProgramNumber     uint16
	PCRPID            uint16
	ElementaryStreams []*PMTElementaryStream
}

// PMTElementaryStream is one stream entry of a PMT.
type PMTElementaryStream struct {
	ElementaryPID uint16
	StreamType    uint8
}

// PESData is a reassembled PES packet. PTS and DTS are 90 kHz ticks
// unwrapped per PID, so they keep increasing past 2^33. DTS equals PTS when
// the packet carries no DTS.
type PESData struct {
	StreamID uint8
	HasPTS   bool
	PTS      int64
	DTS      int64
	Data     []byte
}

// ClockMask bounds the PTS, DTS and PCR fields written on the wire.
const ClockMask = 1<<33 - 1

// Timestamps returns the PES PTS and DTS. ok is false when the packet
// carries no PTS.
func (p *PESData) Timestamps() (pts, dts int64, ok bool) {
	if p == nil || !p.HasPTS {
		return 0, 0, false
	}
	return p.PTS, p.DTS, true
}
