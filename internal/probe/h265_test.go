package probe

import "testing"

// 320x240 Main profile, level 3.1, no conformance window.
var hevcSPS320x240 = []byte{
	0x42, 0x01,
	0x01,
	0x01,
	0x40, 0x00, 0x00, 0x00,
	0xB0, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x5D,
	0xA0, 0x0A, 0x08, 0x0F, 0x10,
}

func TestHEVCNALType(t *testing.T) {
	t.Parallel()
	tests := []struct {
		first byte
		want  byte
	}{
		{0x40, HEVCNALVPS},
		{0x42, HEVCNALSPS},
		{0x44, HEVCNALPPS},
		{0x26, 19},
		{0x2A, HEVCNALCraNut},
		{0x02, 1},
		{0x4E, HEVCNALSEIPrefix},
	}
	for _, tt := range tests {
		if got := HEVCNALType(tt.first); got != tt.want {
			t.Errorf("HEVCNALType(0x%02X) = %d, want %d", tt.first, got, tt.want)
		}
	}
}

func TestIsHEVCKeyframe(t *testing.T) {
	t.Parallel()
	for typ := byte(0); typ < 40; typ++ {
		want := typ >= 16 && typ <= 21
		if got := IsHEVCKeyframe(typ); got != want {
			t.Errorf("IsHEVCKeyframe(%d) = %v, want %v", typ, got, want)
		}
	}
}

func TestParseHEVCSPS(t *testing.T) {
	t.Parallel()
	info, err := ParseHEVCSPS(hevcSPS320x240)
	if err != nil {
		t.Fatalf("ParseHEVCSPS: %v", err)
	}
	if info.Width != 320 || info.Height != 240 {
		t.Errorf("geometry = %dx%d, want 320x240", info.Width, info.Height)
	}
	if info.ProfileIDC != 1 || info.TierFlag != 0 || info.LevelIDC != 93 {
		t.Errorf("profile/tier/level = %d/%d/%d, want 1/0/93", info.ProfileIDC, info.TierFlag, info.LevelIDC)
	}
	if info.ChromaFormatIdc != 1 {
		t.Errorf("chroma = %d, want 1", info.ChromaFormatIdc)
	}

	if _, err := ParseHEVCSPS([]byte{0x42, 0x01, 0x01}); err == nil {
		t.Error("expected error for short SPS")
	}
}

func TestHEVCAccessUnit(t *testing.T) {
	t.Parallel()
	au := []byte{0, 0, 0, 1, 0x40, 0x01, 0xAA}
	au = append(au, 0, 0, 0, 1)
	au = append(au, hevcSPS320x240...)
	au = append(au, 0, 0, 1, 0x44, 0x01, 0xBB)
	au = append(au, 0, 0, 1, 0x26, 0x01, 0xCC)

	vps, sps, pps := HEVCParameterSets(au)
	if vps == nil || pps == nil || len(sps) != len(hevcSPS320x240) {
		t.Fatalf("parameter sets: vps=%x sps=%x pps=%x", vps, sps, pps)
	}
	if !ContainsHEVCKeyframe(au) {
		t.Error("IDR access unit not detected as keyframe")
	}
	if ContainsHEVCKeyframe([]byte{0, 0, 1, 0x02, 0x01, 0xDD}) {
		t.Error("trailing picture detected as keyframe")
	}
}
