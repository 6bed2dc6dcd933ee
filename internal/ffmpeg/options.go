package ffmpeg

import (
	"strconv"

	"github.com/floostack/transcoder"
	"github.com/floostack/transcoder/ffmpeg"
)

const (
	stdinPipe  = "pipe:0"
	stdoutPipe = "pipe:1"
	mp3Format  = "mp3"
)

// TranscodeOptions returns the ffmpeg output options used to produce MP3 audio
// according to this configuration. Sample rate and channel forcing are omitted
// when configured as zero, leaving them derived from the source.
func (config Config) TranscodeOptions() transcoder.Options {
	format := mp3Format
	codec := config.AudioCodec
	bitrate := config.AudioBitrate
	skipVideo := true

	xing := "0"
	if config.WriteXingHeader {
		xing = "1"
	}

	opts := &ffmpeg.Options{
		OutputFormat: &format,
		AudioCodec:   &codec,
		AudioBitrate: &bitrate,
		SkipVideo:    &skipVideo,
		ExtraArgs: map[string]interface{}{
			"-write_xing":     xing,
			"-id3v2_version": strconv.Itoa(config.ID3Version),
		},
	}

	if config.SampleRate > 0 {
		rate := config.SampleRate
		opts.AudioRate = &rate
	}
	if config.Channels > 0 {
		channels := config.Channels
		opts.AudioChannels = &channels
	}

	return opts
}

// Arguments builds the complete ffmpeg argument list, reading the source
// from stdin and writing MP3 to stdout.
func (config Config) Arguments() []string {
	args := []string{"-hide_banner", "-nostats", "-loglevel", "error", "-i", stdinPipe}
	args = append(args, config.TranscodeOptions().GetStrArguments()...)
	return append(args, "-y", stdoutPipe)
}
