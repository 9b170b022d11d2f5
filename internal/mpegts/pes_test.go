package mpegts

import (
	"bytes"
	"errors"
	"testing"
)

func TestParsePES(t *testing.T) {
	t.Parallel()
	adts := []byte{0xFF, 0xF1, 0x50, 0x80}
	idr := []byte{0, 0, 0, 1, 0x65, 0x88}

	padding := []byte{0, 0, 1, 0xBE, 0, 4, 0xFF, 0xFF, 0xFF, 0xFF, 0xAA}

	tests := []struct {
		name   string
		in     []byte
		want   PESData
		wantOK bool
	}{
		{
			name:   "audio pts",
			in:     pesPacket(0xC0, 126000, -1, adts),
			want:   PESData{StreamID: 0xC0, HasPTS: true, PTS: 126000, DTS: 126000, Data: adts},
			wantOK: true,
		},
		{
			name:   "video pts and dts",
			in:     pesPacket(0xE0, 93003, 90000, idr),
			want:   PESData{StreamID: 0xE0, HasPTS: true, PTS: 93003, DTS: 90000, Data: idr},
			wantOK: true,
		},
		{
			name: "no timestamps",
			in:   pesPacket(0xC1, -1, -1, adts),
			want: PESData{StreamID: 0xC1, Data: adts},
		},
		{
			name:   "largest timestamp",
			in:     pesPacket(0xC0, ClockMask, -1, adts),
			want:   PESData{StreamID: 0xC0, HasPTS: true, PTS: ClockMask, DTS: ClockMask, Data: adts},
			wantOK: true,
		},
		{
			name:   "bounded length ignores trailing bytes",
			in:     append(pesPacket(0xC0, 0, -1, adts), 0xFF, 0xFF),
			want:   PESData{StreamID: 0xC0, HasPTS: true, Data: adts},
			wantOK: true,
		},
		{
			name: "padding stream has no optional header",
			in:   padding,
			want: PESData{StreamID: 0xBE, Data: padding[6:10]},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parsePES(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if got.StreamID != tt.want.StreamID || got.HasPTS != tt.want.HasPTS ||
				got.PTS != tt.want.PTS || got.DTS != tt.want.DTS {
				t.Errorf("header = %#x %v %d %d, want %#x %v %d %d",
					got.StreamID, got.HasPTS, got.PTS, got.DTS,
					tt.want.StreamID, tt.want.HasPTS, tt.want.PTS, tt.want.DTS)
			}
			if !bytes.Equal(got.Data, tt.want.Data) {
				t.Errorf("data = %x, want %x", got.Data, tt.want.Data)
			}
			if _, _, ok := got.Timestamps(); ok != tt.wantOK {
				t.Errorf("Timestamps ok = %v, want %v", ok, tt.wantOK)
			}
		})
	}
}

func TestParsePESRejects(t *testing.T) {
	t.Parallel()
	if _, err := parsePES([]byte{0, 0, 1, 0xE0}); err == nil {
		t.Error("expected error for truncated packet")
	}
	if _, err := parsePES([]byte{0, 0, 2, 0xE0, 0, 0, 0x80, 0, 0}); !errors.Is(err, errNotPES) {
		t.Errorf("err = %v, want errNotPES", err)
	}
	if _, err := parsePES([]byte{0, 0, 1, 0xE0, 0, 0, 0x80}); err == nil {
		t.Error("expected error for truncated optional header")
	}
}

func TestNearestClock(t *testing.T) {
	t.Parallel()
	const period = ClockMask + 1
	tests := []struct {
		name     string
		ref, raw int64
		want     int64
	}{
		{"same epoch forward", 90000, 93600, 93600},
		{"same epoch backward", 93600, 90000, 90000},
		{"wrap forward", ClockMask - 1800, 1200, period + 1200},
		{"backward across wrap", period + 600, ClockMask - 600, ClockMask - 600},
		{"second epoch", 2*period + 10, 50, 2*period + 50},
	}
	for _, tt := range tests {
		if got := nearestClock(tt.ref, tt.raw); got != tt.want {
			t.Errorf("%s: nearestClock(%d, %d) = %d, want %d", tt.name, tt.ref, tt.raw, got, tt.want)
		}
	}
}

func TestClockUnwrapper(t *testing.T) {
	t.Parallel()
	var u clockUnwrapper
	raw := []int64{ClockMask - 3840, ClockMask - 1920, 1919, 3839, 1919}
	want := []int64{ClockMask - 3840, ClockMask - 1920, ClockMask + 1920, ClockMask + 3840, ClockMask + 1920}
	for i, r := range raw {
		if got := u.unwrap(r); got != want[i] {
			t.Errorf("unwrap #%d (%d) = %d, want %d", i, r, got, want[i])
		}
	}
}
