package media

import (
	"fmt"
	"math"
)

// Rational is a fraction used for time bases and frame rates.
type Rational struct {
	Num int
	Den int
}

// Common time bases.
var (
	TimeBaseMPEGTS = Rational{1, 90000}
	TimeBaseMilli  = Rational{1, 1000}
)

// IsZero reports whether r cannot be used as a time base.
func (r Rational) IsZero() bool {
	return r.Num == 0 || r.Den == 0
}

// Float64 returns r as a floating point value.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Invert returns Den/Num.
func (r Rational) Invert() Rational {
	return Rational{Num: r.Den, Den: r.Num}
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Rescale converts v from time base r to time base to, rounding to the
// nearest integer. NoPTS passes through unchanged.
func (r Rational) Rescale(v int64, to Rational) int64 {
	if v == NoPTS || r == to || r.IsZero() || to.IsZero() {
		return v
	}
	num := int64(r.Num) * int64(to.Den)
	den := int64(r.Den) * int64(to.Num)
	return int64(math.Round(float64(v) * float64(num) / float64(den)))
}

// Seconds converts v expressed in time base r to seconds.
func (r Rational) Seconds(v int64) float64 {
	if v == NoPTS {
		return 0
	}
	return float64(v) * r.Float64()
}

// FromSeconds converts seconds to a timestamp in time base r.
func (r Rational) FromSeconds(s float64) int64 {
	if r.IsZero() {
		return 0
	}
	return int64(math.Round(s * float64(r.Den) / float64(r.Num)))
}

// RationalFromFPS approximates a frame rate as a fraction, keeping the
// NTSC rates exact.
func RationalFromFPS(fps float64) Rational {
	switch {
	case fps <= 0:
		return Rational{}
	case math.Abs(fps-29.97) < 0.01:
		return Rational{30000, 1001}
	case math.Abs(fps-23.976) < 0.01:
		return Rational{24000, 1001}
	case math.Abs(fps-59.94) < 0.01:
		return Rational{60000, 1001}
	case fps == math.Trunc(fps):
		return Rational{int(fps), 1}
	}
	return Rational{int(math.Round(fps * 1000)), 1000}
}
