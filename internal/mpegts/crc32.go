package mpegts

import "errors"

var errSectionCRC = errors.New("mpegts: section CRC mismatch")

// PSI sections use CRC-32/MPEG-2: polynomial 0x04C11DB7, MSB first, all
// ones preset, no final xor. Over a whole section, CRC included, it
// yields zero.
var crcTable = func() (t [256]uint32) {
	for i := range t {
		c := uint32(i) << 24
		for range 8 {
			if c&(1<<31) != 0 {
				c = c<<1 ^ 0x04C11DB7
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}()

func crcMPEG2(b []byte) uint32 {
	c := ^uint32(0)
	for _, v := range b {
		c = c<<8 ^ crcTable[byte(c>>24)^v]
	}
	return c
}

func checkSectionCRC(section []byte) error {
	if len(section) < 4 || crcMPEG2(section) != 0 {
		return errSectionCRC
	}
	return nil
}
