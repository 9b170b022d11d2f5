package probe

// H.265 NAL unit types (ITU-T H.265 Table 7-1).
const (
	HEVCNALBlaWLP    = 16
	HEVCNALCraNut    = 21
	HEVCNALVPS       = 32
	HEVCNALSPS       = 33
	HEVCNALPPS       = 34
	HEVCNALSEIPrefix = 39
)

// HEVCNALType extracts the type from the first byte of the 2-byte HEVC
// NAL header.
func HEVCNALType(b byte) byte { return (b >> 1) & 0x3F }

// IsHEVCKeyframe reports whether nalType is a random access point (BLA,
// IDR or CRA).
func IsHEVCKeyframe(nalType byte) bool {
	return nalType >= HEVCNALBlaWLP && nalType <= HEVCNALCraNut
}

// ParseAnnexBHEVC splits an HEVC Annex B byte stream into NAL units.
func ParseAnnexBHEVC(data []byte) []NALUnit {
	return parseAnnexBGeneric(data, 2, func(d []byte) byte { return HEVCNALType(d[0]) })
}

// ContainsHEVCKeyframe reports whether an HEVC access unit carries a
// random access picture.
func ContainsHEVCKeyframe(au []byte) bool {
	for _, n := range ParseAnnexBHEVC(au) {
		if IsHEVCKeyframe(n.Type) {
			return true
		}
	}
	return false
}

// HEVCParameterSets returns the first VPS, SPS and PPS of an access unit.
func HEVCParameterSets(au []byte) (vps, sps, pps []byte) {
	for _, n := range ParseAnnexBHEVC(au) {
		switch n.Type {
		case HEVCNALVPS:
			if vps == nil {
				vps = n.Data
			}
		case HEVCNALSPS:
			if sps == nil {
				sps = n.Data
			}
		case HEVCNALPPS:
			if pps == nil {
				pps = n.Data
			}
		}
	}
	return vps, sps, pps
}

// HEVCSPSInfo holds the geometry and profile of an HEVC SPS.
type HEVCSPSInfo struct {
	Width           int
	Height          int
	ProfileIDC      byte
	TierFlag        byte
	LevelIDC        byte
	ChromaFormatIdc byte
	BitDepthLuma    int
	BitDepthChroma  int
}

// ParseHEVCSPS parses an HEVC SPS NAL unit, 2-byte header included. The
// geometry is cropped by the conformance window. Bit depths default to 8
// when the SPS is truncated after the picture size.
func ParseHEVCSPS(nalu []byte) (HEVCSPSInfo, error) {
	if len(nalu) < 4 {
		return HEVCSPSInfo{}, errSPSTooShort
	}
	br := newBitReader(removeEmulationPrevention(nalu[2:]))
	info := HEVCSPSInfo{BitDepthLuma: 8, BitDepthChroma: 8}

	// vps_id(4) max_sub_layers_minus1(3) temporal_id_nesting(1)
	hdr, err := br.readBits(8)
	if err != nil {
		return info, err
	}
	if err := parseHEVCProfileTierLevel(br, &info, (hdr>>1)&0x07); err != nil {
		return info, err
	}
	if _, err := br.readUE(); err != nil { // sps_seq_parameter_set_id
		return info, err
	}
	chroma, err := br.readUE()
	if err != nil {
		return info, err
	}
	info.ChromaFormatIdc = byte(chroma)
	if chroma == 3 {
		if _, err := br.readBit(); err != nil { // separate_colour_plane_flag
			return info, err
		}
	}
	w, err := br.readUE()
	if err != nil {
		return info, err
	}
	h, err := br.readUE()
	if err != nil {
		return info, err
	}
	info.Width, info.Height = int(w), int(h)

	conf, err := br.readBit()
	if err != nil {
		return info, nil
	}
	if conf == 1 {
		var win [4]uint
		for i := range win {
			if win[i], err = br.readUE(); err != nil {
				return info, nil
			}
		}
		subW, subH := uint(1), uint(1)
		switch chroma {
		case 1:
			subW, subH = 2, 2
		case 2:
			subW = 2
		}
		info.Width -= int((win[0] + win[1]) * subW)
		info.Height -= int((win[2] + win[3]) * subH)
	}

	luma, err := br.readUE()
	if err != nil {
		return info, nil
	}
	chromaDepth, err := br.readUE()
	if err != nil {
		return info, nil
	}
	info.BitDepthLuma = int(luma) + 8
	info.BitDepthChroma = int(chromaDepth) + 8
	return info, nil
}

func parseHEVCProfileTierLevel(br *bitReader, info *HEVCSPSInfo, maxSubLayersMinus1 uint) error {
	// profile_space(2) tier(1) profile_idc(5)
	b, err := br.readBits(8)
	if err != nil {
		return err
	}
	info.TierFlag = byte((b >> 5) & 1)
	info.ProfileIDC = byte(b & 0x1F)

	// compatibility flags(32) + constraint flags(48)
	for i := 0; i < 5; i++ {
		if _, err := br.readBits(16); err != nil {
			return err
		}
	}
	level, err := br.readBits(8)
	if err != nil {
		return err
	}
	info.LevelIDC = byte(level)

	if maxSubLayersMinus1 == 0 {
		return nil
	}
	var profilePresent, levelPresent [8]bool
	for i := uint(0); i < maxSubLayersMinus1; i++ {
		p, err := br.readBits(2)
		if err != nil {
			return err
		}
		profilePresent[i] = p&2 != 0
		levelPresent[i] = p&1 != 0
	}
	for i := maxSubLayersMinus1; i < 8; i++ {
		if _, err := br.readBits(2); err != nil {
			return err
		}
	}
	for i := uint(0); i < maxSubLayersMinus1; i++ {
		if profilePresent[i] {
			// 88 bits of sub-layer profile
			for _, n := range []int{32, 32, 24} {
				if _, err := br.readBits(n); err != nil {
					return err
				}
			}
		}
		if levelPresent[i] {
			if _, err := br.readBits(8); err != nil {
				return err
			}
		}
	}
	return nil
}
