package probe

import (
	"testing"

	"github.com/zsiec/avtranscode/internal/media"
)

func TestFilePropertiesStreamsOfType(t *testing.T) {
	t.Parallel()
	props := FileProperties{
		Streams: []StreamProperties{
			NewStreamProperties(0, media.CodecParams{Type: media.MediaTypeAudio, Codec: "aac", Audio: media.AudioFrameDesc{SampleRate: 48000, Channels: 2}}),
			NewStreamProperties(1, media.CodecParams{Type: media.MediaTypeVideo, Codec: "h264", Video: media.VideoFrameDesc{Width: 640, Height: 360, FPS: 50}}),
		},
	}

	if got := len(props.StreamsOfType(media.MediaTypeVideo)); got != 1 {
		t.Fatalf("video streams = %d, want 1", got)
	}
	if got := props.FirstVideoFPS(); got != 50 {
		t.Errorf("FirstVideoFPS = %f, want 50", got)
	}
	if props.Streams[0].Type != "audio" || props.Streams[0].SampleRate != 48000 {
		t.Errorf("audio properties = %+v", props.Streams[0])
	}
	if got := (FileProperties{}).FirstVideoFPS(); got != 1 {
		t.Errorf("FirstVideoFPS without video = %f, want 1", got)
	}
}
