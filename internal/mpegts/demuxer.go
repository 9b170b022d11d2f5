package mpegts

import (
	"context"
	"errors"
	"io"
	"maps"
	"slices"
)

// Demuxer reads transport units from a reader and produces DemuxerData
// for every PAT, PMT and PES packet. It records the elementary streams
// announced by every PMT so callers can map PIDs to stream indexes in
// announcement order.
type Demuxer struct {
	ctx     context.Context
	r       io.Reader
	unit    []byte
	pmtPIDs map[uint16]bool
	asm     map[uint16]*pidAssembler
	clocks  map[uint16]*clockUnwrapper
	queue   []*DemuxerData
	eof     bool
	streams []*PMTElementaryStream
	pos     int64
}

// NewDemuxer creates a demuxer reading from r.
func NewDemuxer(ctx context.Context, r io.Reader, opts ...func(*Demuxer)) *Demuxer {
	d := &Demuxer{
		ctx:  ctx,
		unit: make([]byte, tsPacketSize),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.Reset(r)
	return d
}

// DemuxerOptPacketSize sets the transport unit size: 188 (default), 192
// for M2TS or 204 for TS with FEC parity.
func DemuxerOptPacketSize(size int) func(*Demuxer) {
	return func(d *Demuxer) {
		d.unit = make([]byte, size)
	}
}

// Reset discards all buffered state, including timestamp unwrapping, and
// continues demuxing from r. Known elementary streams are kept so stream
// indexes stay stable across seeks.
func (d *Demuxer) Reset(r io.Reader) {
	d.r = r
	d.pmtPIDs = make(map[uint16]bool)
	d.asm = make(map[uint16]*pidAssembler)
	d.clocks = make(map[uint16]*clockUnwrapper)
	d.queue = nil
	d.eof = false
	d.pos = 0
}

// Streams returns the elementary streams seen so far, in PMT order.
func (d *Demuxer) Streams() []*PMTElementaryStream {
	return d.streams
}

// StreamIndex returns the position of pid in Streams, or -1.
func (d *Demuxer) StreamIndex(pid uint16) int {
	for i, es := range d.streams {
		if es.ElementaryPID == pid {
			return i
		}
	}
	return -1
}

// Pos returns the number of bytes consumed from the reader since the last
// Reset.
func (d *Demuxer) Pos() int64 {
	return d.pos
}

// NextData returns the next parsed unit. Units still buffered when the
// reader is exhausted are flushed before io.EOF.
func (d *Demuxer) NextData() (*DemuxerData, error) {
	for len(d.queue) == 0 {
		if d.eof {
			return nil, io.EOF
		}
		if err := d.ctx.Err(); err != nil {
			return nil, err
		}
		if err := d.readUnit(); err != nil {
			return nil, err
		}
	}
	data := d.queue[0]
	d.queue = d.queue[1:]
	return data, nil
}

// readUnit consumes one transport unit and queues whatever it completes.
// Units that fail to parse are skipped.
func (d *Demuxer) readUnit() error {
	n, err := io.ReadFull(d.r, d.unit)
	d.pos += int64(n)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		d.eof = true
		d.flushAll()
		return nil
	case err != nil:
		return err
	}

	p, err := parsePacket(d.unit)
	if err != nil {
		return nil
	}
	a := d.asm[p.pid]
	if a == nil {
		a = &pidAssembler{}
		d.asm[p.pid] = a
	}
	if payload := a.add(p, d.isPSI(p.pid)); payload != nil {
		d.emit(p.pid, payload)
	}
	return nil
}

// flushAll emits every partial unit in PID order, so the PAT is seen
// before the PMTs it announces.
func (d *Demuxer) flushAll() {
	for _, pid := range slices.Sorted(maps.Keys(d.asm)) {
		if payload := d.asm[pid].take(); payload != nil {
			d.emit(pid, payload)
		}
	}
}

func (d *Demuxer) isPSI(pid uint16) bool {
	return pid == pidPAT || d.pmtPIDs[pid]
}

// emit decodes a completed unit and queues the result. Undecodable PES
// packets are dropped; a bad section drops the sections after it.
func (d *Demuxer) emit(pid uint16, payload []byte) {
	if d.isPSI(pid) {
		sections, _ := parseSections(pid, payload)
		for _, s := range sections {
			d.learn(s)
		}
		d.queue = append(d.queue, sections...)
		return
	}

	pes, err := parsePES(payload)
	if err != nil {
		return
	}
	if pes.HasPTS {
		c := d.clocks[pid]
		if c == nil {
			c = &clockUnwrapper{}
			d.clocks[pid] = c
		}
		pes.DTS = c.unwrap(pes.DTS)
		pes.PTS = nearestClock(pes.DTS, pes.PTS)
	}
	d.queue = append(d.queue, &DemuxerData{PID: pid, PES: pes})
}

// learn registers PMT PIDs from a PAT and elementary streams from a PMT.
func (d *Demuxer) learn(s *DemuxerData) {
	if s.PAT != nil {
		for _, p := range s.PAT.Programs {
			d.pmtPIDs[p.ProgramMapID] = true
		}
	}
	if s.PMT != nil {
		for _, es := range s.PMT.ElementaryStreams {
			if d.StreamIndex(es.ElementaryPID) < 0 {
				d.streams = append(d.streams, es)
			}
		}
	}
}
