package ffmpeg

import "time"

// Config controls how the ffmpeg binary is invoked to extract MP3 audio. The
// defaults are chosen for playback compatibility with strict (mobile) decoders.
// Fields which may legitimately be zero take their default from DefaultConfig.
type Config struct {
	FfmpegBinaryPath string        `toml:"ffmpeg_binary_path" env:"FFMPEG_BINARY_PATH" env-default:"/usr/bin/ffmpeg" validate:"required"`
	AudioCodec       string        `toml:"audio_codec" env:"FFMPEG_AUDIO_CODEC" env-default:"libmp3lame" validate:"required"`
	AudioBitrate     string        `toml:"audio_bitrate" env:"FFMPEG_AUDIO_BITRATE" env-default:"192k" validate:"required"`
	SampleRate       int           `toml:"force_sample_rate" env:"FFMPEG_FORCE_SAMPLE_RATE" validate:"gte=0"`
	Channels         int           `toml:"force_channels" env:"FFMPEG_FORCE_CHANNELS" validate:"gte=0"`
	WriteXingHeader  bool          `toml:"write_xing_header" env:"FFMPEG_WRITE_XING_HEADER"`
	ID3Version       int           `toml:"id3v2_version" env:"FFMPEG_ID3V2_VERSION" env-default:"3" validate:"oneof=3 4"`
	Timeout          time.Duration `toml:"timeout" env:"FFMPEG_TIMEOUT" env-default:"120s"`
}

func DefaultConfig() Config {
	return Config{
		FfmpegBinaryPath: "/usr/bin/ffmpeg",
		AudioCodec:       "libmp3lame",
		AudioBitrate:     "192k",
		SampleRate:       44100,
		Channels:         2,
		WriteXingHeader:  false,
		ID3Version:       3,
		Timeout:          120 * time.Second,
	}
}
