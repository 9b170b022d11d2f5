// Package transform converts decoded frames between shapes: audio sample
// format, channel layout and sample rate; video pixel format and size.
package transform

import (
	"fmt"

	"github.com/zsiec/avtranscode/internal/media"
)

// Transform converts src into dst, honouring both frames' descriptors.
type Transform interface {
	Convert(src, dst *media.Frame) error
}

// New returns the transform for frames of type t.
func New(t media.MediaType) (Transform, error) {
	switch t {
	case media.MediaTypeAudio:
		return NewAudio(), nil
	case media.MediaTypeVideo:
		return NewVideo(), nil
	default:
		return nil, fmt.Errorf("transform: %w: no transform for %s frames", media.ErrConfiguration, t)
	}
}
