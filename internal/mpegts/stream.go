package mpegts

// Elementary stream types carried in PMT entries.
const (
	StreamTypeMPEG1Audio  uint8 = 0x03
	StreamTypeMPEG2Audio  uint8 = 0x04
	StreamTypePrivateData uint8 = 0x06
	StreamTypeAAC         uint8 = 0x0F
	StreamTypeMetadata    uint8 = 0x15
	StreamTypeH264        uint8 = 0x1B
	StreamTypeH265        uint8 = 0x24
	StreamTypeAC3         uint8 = 0x81
)

// CodecName returns the codec identifier used for a PMT stream type, and
// whether the stream carries video, audio or opaque data.
func CodecName(streamType uint8) (codec string, kind string) {
	switch streamType {
	case StreamTypeH264:
		return "h264", "video"
	case StreamTypeH265:
		return "hevc", "video"
	case StreamTypeAAC:
		return "aac", "audio"
	case StreamTypeMPEG1Audio, StreamTypeMPEG2Audio:
		return "mp3", "audio"
	case StreamTypeAC3:
		return "ac3", "audio"
	default:
		return "data", "data"
	}
}

// StreamTypeForCodec is the inverse of CodecName. Unknown codecs are
// carried as private PES data.
func StreamTypeForCodec(codec string) uint8 {
	switch codec {
	case "h264":
		return StreamTypeH264
	case "hevc":
		return StreamTypeH265
	case "aac":
		return StreamTypeAAC
	case "mp3":
		return StreamTypeMPEG1Audio
	case "ac3":
		return StreamTypeAC3
	default:
		return StreamTypePrivateData
	}
}

// PESStreamID returns the PES stream_id conventionally used for the n-th
// stream of the given kind.
func PESStreamID(kind string, n int) uint8 {
	switch kind {
	case "video":
		return 0xE0 + uint8(n&0x0F)
	case "audio":
		return 0xC0 + uint8(n&0x1F)
	default:
		return 0xBD
	}
}
