// Package profile describes encoding and wrapping presets. A profile is a
// flat set of string options: a few well-known keys identify it and shape
// the frames, every other key is handed to the codec or container as an
// option.
package profile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zsiec/avtranscode/internal/media"
)

// Well-known profile keys.
const (
	KeyName         = "avProfileName"
	KeyLongName     = "avProfileLongName"
	KeyType         = "avProfileType"
	KeyFormat       = "format"
	KeyCodec        = "codec"
	KeyPixelFormat  = "pix_fmt"
	KeyWidth        = "width"
	KeyHeight       = "height"
	KeyFrameRate    = "r"
	KeySampleRate   = "ar"
	KeyChannels     = "ac"
	KeySampleFormat = "sample_fmt"
	KeyBitsPerRaw   = "bits_per_raw_sample"
)

// Profile types.
const (
	TypeVideo  = "video"
	TypeAudio  = "audio"
	TypeFormat = "format"
)

var identityKeys = map[string]bool{
	KeyName:     true,
	KeyLongName: true,
	KeyType:     true,
}

// shapeKeys are consumed when building frame descriptors and are not
// passed on as codec options.
var shapeKeys = map[string]bool{
	KeyCodec:        true,
	KeyPixelFormat:  true,
	KeyWidth:        true,
	KeyHeight:       true,
	KeyFrameRate:    true,
	KeySampleRate:   true,
	KeyChannels:     true,
	KeySampleFormat: true,
	KeyBitsPerRaw:   true,
	KeyFormat:       true,
}

// Profile is a named set of options.
type Profile map[string]string

// Name returns the profile identifier.
func (p Profile) Name() string { return p[KeyName] }

// LongName returns the human readable name.
func (p Profile) LongName() string { return p[KeyLongName] }

// Type returns video, audio or format.
func (p Profile) Type() string { return p[KeyType] }

// Clone returns a copy that can be modified freely.
func (p Profile) Clone() Profile {
	c := make(Profile, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Options returns the keys that are neither identity nor shape keys,
// sorted by key.
func (p Profile) Options() [][2]string {
	var out [][2]string
	for k, v := range p {
		if identityKeys[k] || shapeKeys[k] {
			continue
		}
		out = append(out, [2]string{k, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// FormatOptions returns the options a container receives: everything but
// the identity keys and the format name itself.
func (p Profile) FormatOptions() [][2]string {
	var out [][2]string
	for k, v := range p {
		if identityKeys[k] || k == KeyFormat {
			continue
		}
		out = append(out, [2]string{k, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func (p Profile) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%s", k, p[k])
	}
	return b.String()
}

func check(p Profile, typ string, required ...string) error {
	var missing []string
	for _, k := range append([]string{KeyName, KeyLongName, KeyType}, required...) {
		if p[k] == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("profile: %w: %q is missing %s", media.ErrConfiguration, p.Name(), strings.Join(missing, ", "))
	}
	if p.Type() != typ {
		return fmt.Errorf("profile: %w: %q has type %q, want %q", media.ErrConfiguration, p.Name(), p.Type(), typ)
	}
	return nil
}

// CheckFormatProfile validates a wrapping profile.
func CheckFormatProfile(p Profile) error {
	return check(p, TypeFormat, KeyFormat)
}

// CheckVideoProfile validates a video encoding profile.
func CheckVideoProfile(p Profile) error {
	return check(p, TypeVideo, KeyCodec)
}

// CheckAudioProfile validates an audio encoding profile.
func CheckAudioProfile(p Profile) error {
	return check(p, TypeAudio, KeyCodec)
}

// Check validates p according to its declared type.
func Check(p Profile) error {
	switch p.Type() {
	case TypeVideo:
		return CheckVideoProfile(p)
	case TypeAudio:
		return CheckAudioProfile(p)
	case TypeFormat:
		return CheckFormatProfile(p)
	}
	return fmt.Errorf("profile: %w: %q has unknown type %q", media.ErrConfiguration, p.Name(), p.Type())
}

func (p Profile) intValue(key string) (int, bool, error) {
	s, ok := p[key]
	if !ok || s == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false, &media.OptionError{Option: key, Value: s, Err: media.ErrConfiguration}
	}
	return n, true, nil
}

// ParseFrameRate accepts "25", "29.97" or "30000/1001".
func ParseFrameRate(s string) (float64, error) {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || n <= 0 || d <= 0 {
			return 0, &media.OptionError{Option: KeyFrameRate, Value: s, Err: media.ErrConfiguration}
		}
		return n / d, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, &media.OptionError{Option: KeyFrameRate, Value: s, Err: media.ErrConfiguration}
	}
	return f, nil
}

// AudioDesc overrides the fields of base that p sets.
func (p Profile) AudioDesc(base media.AudioFrameDesc) (media.AudioFrameDesc, error) {
	d := base
	if n, ok, err := p.intValue(KeySampleRate); err != nil {
		return d, err
	} else if ok {
		d.SampleRate = n
	}
	if n, ok, err := p.intValue(KeyChannels); err != nil {
		return d, err
	} else if ok {
		d.Channels = n
	}
	if s := p[KeySampleFormat]; s != "" {
		sf, err := media.ParseSampleFormat(s)
		if err != nil {
			return d, &media.OptionError{Option: KeySampleFormat, Value: s, Err: err}
		}
		d.SampleFormat = sf
	}
	if d.FPS <= 0 {
		d.FPS = media.DefaultAudioFPS
	}
	return d, nil
}

// VideoDesc overrides the fields of base that p sets.
func (p Profile) VideoDesc(base media.VideoFrameDesc) (media.VideoFrameDesc, error) {
	d := base
	if n, ok, err := p.intValue(KeyWidth); err != nil {
		return d, err
	} else if ok {
		d.Width = n
	}
	if n, ok, err := p.intValue(KeyHeight); err != nil {
		return d, err
	} else if ok {
		d.Height = n
	}
	if s := p[KeyPixelFormat]; s != "" {
		pf, err := media.ParsePixelFormat(s)
		if err != nil {
			return d, &media.OptionError{Option: KeyPixelFormat, Value: s, Err: err}
		}
		d.PixelFormat = pf
	}
	if s := p[KeyFrameRate]; s != "" {
		fps, err := ParseFrameRate(s)
		if err != nil {
			return d, err
		}
		d.FPS = fps
	}
	return d, nil
}

// BitsPerSample returns the requested coded sample size, or 0.
func (p Profile) BitsPerSample() int {
	n, _, _ := p.intValue(KeyBitsPerRaw)
	return n
}
