package mpegts

// pidAssembler collects the payload of one PID until a unit is complete:
// at the next payload_unit_start for PES, or at the end of the last
// section for PSI.
type pidAssembler struct {
	buf    []byte
	lastCC uint8
	seenCC bool
}

// add feeds p and returns a completed unit, or nil. A gap in the
// continuity counter drops the partial unit and everything up to the next
// unit start.
func (a *pidAssembler) add(p *tsPacket, psi bool) []byte {
	if p.transportErr {
		a.buf, a.seenCC = nil, false
		return nil
	}
	if p.payload == nil {
		return nil
	}
	if a.seenCC && !p.discontinuity {
		switch p.cc {
		case (a.lastCC + 1) & 0x0F:
		case a.lastCC:
			return nil // duplicate
		default:
			a.buf = nil
		}
	}
	a.lastCC, a.seenCC = p.cc, true

	var unit []byte
	if p.unitStart {
		unit = a.take()
	} else if a.buf == nil {
		return nil
	}
	a.buf = append(a.buf, p.payload...)
	if unit == nil && psi && sectionsComplete(a.buf) {
		unit = a.take()
	}
	return unit
}

func (a *pidAssembler) take() []byte {
	b := a.buf
	a.buf = nil
	if len(b) == 0 {
		return nil
	}
	return b
}

// sectionsComplete reports whether payload, which starts with a pointer
// field, holds every section it begins. Stuffing or a header without
// section_syntax_indicator ends the walk.
func sectionsComplete(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	pos := 1 + int(payload[0])
	if pos >= len(payload) {
		return false
	}
	for pos < len(payload) {
		if payload[pos] == 0xFF {
			return true
		}
		if pos+3 > len(payload) {
			return false
		}
		if payload[pos+1]&0x80 == 0 {
			return true
		}
		pos += 3 + sectionLength(payload[pos:])
		if pos > len(payload) {
			return false
		}
	}
	return true
}

func sectionLength(section []byte) int {
	return int(section[1]&0x0F)<<8 | int(section[2])
}
