package media

// CodecParams describes an elementary stream: what it carries, how it is
// coded and its natural time base.
type CodecParams struct {
	Type      MediaType
	Codec     string
	TimeBase  Rational
	Video     VideoFrameDesc
	Audio     AudioFrameDesc
	Extradata []byte
	BitRate   int64
}

// FrameDuration returns the nominal duration of one frame in seconds, or 0
// when unknown.
func (c CodecParams) FrameDuration() float64 {
	switch c.Type {
	case MediaTypeVideo:
		if c.Video.FPS > 0 {
			return 1 / c.Video.FPS
		}
	case MediaTypeAudio:
		fps := c.Audio.FPS
		if fps <= 0 {
			fps = DefaultAudioFPS
		}
		return 1 / fps
	}
	return 0
}
