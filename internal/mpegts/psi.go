package mpegts

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	pidPAT     = 0x0000
	tableIDPAT = 0x00
	tableIDPMT = 0x02
)

// parseSections decodes the PATs and PMTs of a PSI unit that starts with
// a pointer field. Other tables are skipped. On error the sections decoded
// so far are returned.
func parseSections(pid uint16, payload []byte) ([]*DemuxerData, error) {
	if len(payload) == 0 {
		return nil, errors.New("mpegts: empty PSI unit")
	}
	pos := 1 + int(payload[0])
	if pos >= len(payload) {
		return nil, fmt.Errorf("mpegts: pointer field %d past end of unit", payload[0])
	}

	var out []*DemuxerData
	for pos+3 <= len(payload) {
		s := payload[pos:]
		if s[0] == 0xFF || s[1]&0x80 == 0 {
			break
		}
		n := 3 + sectionLength(s)
		if n > len(s) {
			break
		}
		s = s[:n]
		pos += n

		d := &DemuxerData{PID: pid}
		var err error
		switch s[0] {
		case tableIDPAT:
			d.PAT, err = parsePAT(s)
		case tableIDPMT:
			d.PMT, err = parsePMT(s)
		default:
			continue
		}
		if err != nil {
			return out, err
		}
		out = append(out, d)
	}
	return out, nil
}

// parsePAT decodes a PAT section: an 8-byte header, 4-byte program entries
// and the CRC. Program 0 points at the network table and is skipped.
func parsePAT(s []byte) (*PATData, error) {
	if len(s) < 12 {
		return nil, errors.New("mpegts: PAT section too short")
	}
	if err := checkSectionCRC(s); err != nil {
		return nil, fmt.Errorf("PAT: %w", err)
	}
	pat := &PATData{TransportStreamID: be16(s[3:])}
	for e := s[8 : len(s)-4]; len(e) >= 4; e = e[4:] {
		num := be16(e)
		if num == 0 {
			continue
		}
		pat.Programs = append(pat.Programs, PATProgram{
			ProgramNumber: num,
			ProgramMapID:  be16(e[2:]) & 0x1FFF,
		})
	}
	return pat, nil
}

// parsePMT decodes a PMT section: a 12-byte header, program descriptors,
// 5-byte stream entries each followed by their descriptors, and the CRC.
func parsePMT(s []byte) (*PMTData, error) {
	if len(s) < 16 {
		return nil, errors.New("mpegts: PMT section too short")
	}
	if err := checkSectionCRC(s); err != nil {
		return nil, fmt.Errorf("PMT: %w", err)
	}
	pmt := &PMTData{
		ProgramNumber: be16(s[3:]),
		PCRPID:        be16(s[8:]) & 0x1FFF,
	}
	body := s[:len(s)-4]
	es := body[min(12+int(be16(s[10:])&0x0FFF), len(body)):]
	for len(es) >= 5 {
		pmt.ElementaryStreams = append(pmt.ElementaryStreams, &PMTElementaryStream{
			StreamType:    es[0],
			ElementaryPID: be16(es[1:]) & 0x1FFF,
		})
		es = es[min(5+int(be16(es[3:])&0x0FFF), len(es)):]
	}
	return pmt, nil
}

func be16(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}
