package mpegts

import (
	"bytes"
	"testing"
)

func pkt(cc uint8, start bool, payload string) *tsPacket {
	return &tsPacket{pid: 0x0100, cc: cc, unitStart: start, payload: []byte(payload)}
}

func TestAssemblerPES(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		packets []*tsPacket
		want    []string
		pending string
	}{
		{
			name:    "unit start flushes",
			packets: []*tsPacket{pkt(0, true, "ab"), pkt(1, false, "cd"), pkt(2, true, "ef")},
			want:    []string{"abcd"},
			pending: "ef",
		},
		{
			name:    "continuity counter wraps",
			packets: []*tsPacket{pkt(15, true, "ab"), pkt(0, false, "cd"), pkt(1, true, "ef")},
			want:    []string{"abcd"},
			pending: "ef",
		},
		{
			name:    "duplicate dropped",
			packets: []*tsPacket{pkt(4, true, "ab"), pkt(4, true, "ab"), pkt(5, false, "cd")},
			pending: "abcd",
		},
		{
			name:    "gap drops partial unit",
			packets: []*tsPacket{pkt(0, true, "ab"), pkt(2, false, "cd"), pkt(3, false, "ef"), pkt(4, true, "gh")},
			pending: "gh",
		},
		{
			name:    "signalled discontinuity keeps unit",
			packets: []*tsPacket{pkt(0, true, "ab"), {pid: 0x0100, cc: 9, discontinuity: true, payload: []byte("cd")}},
			pending: "abcd",
		},
		{
			name:    "transport error drops unit",
			packets: []*tsPacket{pkt(0, true, "ab"), {pid: 0x0100, cc: 1, transportErr: true, payload: []byte("xx")}, pkt(7, false, "cd")},
		},
		{
			name:    "adaptation only ignored",
			packets: []*tsPacket{pkt(0, true, "ab"), {pid: 0x0100, cc: 0}, pkt(1, false, "cd")},
			pending: "abcd",
		},
		{
			name:    "continuation before any start",
			packets: []*tsPacket{pkt(3, false, "ab"), pkt(4, true, "cd")},
			pending: "cd",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var a pidAssembler
			var got []string
			for _, p := range tt.packets {
				if unit := a.add(p, false); unit != nil {
					got = append(got, string(unit))
				}
			}
			if len(got) != len(tt.want) {
				t.Fatalf("units = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("unit %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
			if rest := string(a.take()); rest != tt.pending {
				t.Errorf("pending = %q, want %q", rest, tt.pending)
			}
		})
	}
}

func TestAssemblerSectionSpansPackets(t *testing.T) {
	t.Parallel()
	pmt := pmtSection(1, 0x0100,
		PMTElementaryStream{ElementaryPID: 0x0100, StreamType: StreamTypeH264},
		PMTElementaryStream{ElementaryPID: 0x0101, StreamType: StreamTypeAAC},
	)
	unit := psiUnit(pmt)
	var a pidAssembler
	if got := a.add(&tsPacket{cc: 0, unitStart: true, payload: unit[:10]}, true); got != nil {
		t.Fatalf("flushed %d bytes before the section was complete", len(got))
	}
	got := a.add(&tsPacket{cc: 1, payload: unit[10:]}, true)
	if !bytes.Equal(got, unit) {
		t.Errorf("unit = %x, want %x", got, unit)
	}
}

func TestSectionsComplete(t *testing.T) {
	t.Parallel()
	pat := patSection(1, PATProgram{ProgramNumber: 1, ProgramMapID: 0x1000})
	tests := []struct {
		name    string
		payload []byte
		want    bool
	}{
		{"empty", nil, false},
		{"pointer only", []byte{0}, false},
		{"whole section", psiUnit(pat), true},
		{"partial section", psiUnit(pat)[:8], false},
		{"partial header", psiUnit(pat)[:3], false},
		{"stuffing after section", append(psiUnit(pat), 0xFF), true},
		{"second section partial", psiUnit(pat, pat[:6]), false},
	}
	for _, tt := range tests {
		if got := sectionsComplete(tt.payload); got != tt.want {
			t.Errorf("%s: sectionsComplete = %v, want %v", tt.name, got, tt.want)
		}
	}
}
