package profile

// Built-in presets, available without a profiles directory.
var presets = []Profile{
	{KeyName: "wav", KeyLongName: "RIFF WAVE", KeyType: TypeFormat, KeyFormat: "wav"},
	{KeyName: "mpegts", KeyLongName: "MPEG transport stream", KeyType: TypeFormat, KeyFormat: "mpegts"},
	{KeyName: "matroska", KeyLongName: "Matroska", KeyType: TypeFormat, KeyFormat: "matroska"},
	{KeyName: "webm", KeyLongName: "WebM", KeyType: TypeFormat, KeyFormat: "webm"},
	{KeyName: "mp4", KeyLongName: "Fragmented MP4", KeyType: TypeFormat, KeyFormat: "mp4", "fragment_duration": "1"},

	{KeyName: "wave16b48kmono", KeyLongName: "Wave 16bits 48kHz mono", KeyType: TypeAudio,
		KeyCodec: "pcm_s16le", KeySampleFormat: "s16", KeySampleRate: "48000", KeyChannels: "1"},
	{KeyName: "wave16b48kstereo", KeyLongName: "Wave 16bits 48kHz stereo", KeyType: TypeAudio,
		KeyCodec: "pcm_s16le", KeySampleFormat: "s16", KeySampleRate: "48000", KeyChannels: "2"},
	{KeyName: "wave24b48kmono", KeyLongName: "Wave 24bits 48kHz mono", KeyType: TypeAudio,
		KeyCodec: "pcm_s24le", KeySampleFormat: "s32", KeySampleRate: "48000", KeyChannels: "1"},
	{KeyName: "wave24b48kstereo", KeyLongName: "Wave 24bits 48kHz stereo", KeyType: TypeAudio,
		KeyCodec: "pcm_s24le", KeySampleFormat: "s32", KeySampleRate: "48000", KeyChannels: "2"},
	{KeyName: "wave32fb48kstereo", KeyLongName: "Wave 32bits float 48kHz stereo", KeyType: TypeAudio,
		KeyCodec: "pcm_f32le", KeySampleFormat: "flt", KeySampleRate: "48000", KeyChannels: "2"},
	{KeyName: "wave16b44kstereo", KeyLongName: "Wave 16bits 44.1kHz stereo", KeyType: TypeAudio,
		KeyCodec: "pcm_s16le", KeySampleFormat: "s16", KeySampleRate: "44100", KeyChannels: "2"},

	{KeyName: "rawvideo_yuv420p", KeyLongName: "Raw video YUV 4:2:0", KeyType: TypeVideo,
		KeyCodec: "rawvideo", KeyPixelFormat: "yuv420p"},
	{KeyName: "rawvideo_rgb24", KeyLongName: "Raw video RGB 24bits", KeyType: TypeVideo,
		KeyCodec: "rawvideo", KeyPixelFormat: "rgb24"},
	{KeyName: "rawvideo_gray", KeyLongName: "Raw video grayscale", KeyType: TypeVideo,
		KeyCodec: "rawvideo", KeyPixelFormat: "gray"},
	{KeyName: "rawvideo_pal", KeyLongName: "Raw video 720x576 25fps YUV 4:2:0", KeyType: TypeVideo,
		KeyCodec: "rawvideo", KeyPixelFormat: "yuv420p", KeyWidth: "720", KeyHeight: "576", KeyFrameRate: "25"},
}
